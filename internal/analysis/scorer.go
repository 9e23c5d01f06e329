package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/models"
)

// ErrMiss signals that a scorer tier could not produce a valid Result
// and the pipeline should fall through to the next tier. Misses are
// internal; they never surface to participants.
var ErrMiss = errors.New("analysis: scorer miss")

// Scorer is one tier of the analysis fallback chain.
type Scorer interface {
	Name() string
	AttemptScore(ctx context.Context, t *Transcript) (*models.Result, error)
}

// ParticipantTranscript groups one participant's arguments in
// submission order. WordCounts is kept per argument for the structural
// sub-scores (length variance).
type ParticipantTranscript struct {
	ParticipantID uuid.UUID
	JoinIndex     int
	Arguments     []string
	Combined      string
	WordCounts    []int
}

// ArgumentCount returns how many arguments the participant submitted.
func (pt *ParticipantTranscript) ArgumentCount() int {
	return len(pt.Arguments)
}

// Transcript is the full ordered input to a scoring run. Participants
// are ordered by join order, which resolves winner ties.
type Transcript struct {
	DebateID     uuid.UUID
	Topic        string
	Participants []*ParticipantTranscript
}

// BuildTranscript groups the debate's arguments by participant,
// preserving submission order within each group.
func BuildTranscript(debate *models.Debate, args []*models.Argument) *Transcript {
	t := &Transcript{
		DebateID: debate.ID,
		Topic:    debate.Topic,
	}
	byID := make(map[uuid.UUID]*ParticipantTranscript, len(debate.Participants))
	for i, pid := range debate.Participants {
		pt := &ParticipantTranscript{ParticipantID: pid, JoinIndex: i}
		byID[pid] = pt
		t.Participants = append(t.Participants, pt)
	}
	for _, arg := range args {
		pt, ok := byID[arg.AuthorID]
		if !ok {
			continue
		}
		pt.Arguments = append(pt.Arguments, arg.Text)
		pt.WordCounts = append(pt.WordCounts, len(strings.Fields(arg.Text)))
	}
	for _, pt := range t.Participants {
		pt.Combined = strings.Join(pt.Arguments, "\n")
	}
	return t
}

// pickWinner selects the participant with the strictly highest total.
// Transcript order is join order, so iterating with a strict ">"
// leaves ties with the earliest-joined participant.
func pickWinner(t *Transcript, totals map[uuid.UUID]int) uuid.UUID {
	var winner uuid.UUID
	best := -1
	for _, pt := range t.Participants {
		if total := totals[pt.ParticipantID]; total > best {
			best = total
			winner = pt.ParticipantID
		}
	}
	return winner
}
