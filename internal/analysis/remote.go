package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/models"
)

// RemoteModelScorer calls the purpose-built scoring service over HTTP.
// Any transport failure, non-2xx status, or schema mismatch is a miss;
// retries are left to the transport layer, not this adapter.
type RemoteModelScorer struct {
	url    string
	client *http.Client
}

func NewRemoteModelScorer(url string, timeout time.Duration) *RemoteModelScorer {
	return &RemoteModelScorer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *RemoteModelScorer) Name() string { return "remote-model" }

type remoteArgument struct {
	ParticipantID string `json:"participant_id"`
	Text          string `json:"argument_text"`
}

type remoteRequest struct {
	Topic     string           `json:"topic"`
	Arguments []remoteArgument `json:"arguments"`
}

type remoteScore struct {
	Coherence      *int `json:"coherence"`
	Evidence       *int `json:"evidence"`
	Logic          *int `json:"logic"`
	Persuasiveness *int `json:"persuasiveness"`
}

type remoteResponse struct {
	Scores map[string]remoteScore `json:"scores"`
	Winner string                 `json:"winner"`
}

func (s *RemoteModelScorer) AttemptScore(ctx context.Context, t *Transcript) (*models.Result, error) {
	if s.url == "" {
		return nil, fmt.Errorf("%w: no scoring service configured", ErrMiss)
	}
	reqBody := remoteRequest{Topic: t.Topic}
	for _, pt := range t.Participants {
		for _, text := range pt.Arguments {
			reqBody.Arguments = append(reqBody.Arguments, remoteArgument{
				ParticipantID: pt.ParticipantID.String(),
				Text:          text,
			})
		}
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrMiss, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrMiss, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: scoring service returned %d", ErrMiss, resp.StatusCode)
	}

	var payload remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrMiss, err)
	}
	return resultFromPayload(t, payload.Scores, payload.Winner, models.SourceRemoteModel)
}

// resultFromPayload validates an upstream score map against the debate's
// participant set and builds a canonical Result. Shared by the remote
// and generative adapters.
func resultFromPayload(t *Transcript, scores map[string]remoteScore, winner string, source models.AnalysisSource) (*models.Result, error) {
	result := &models.Result{
		DebateID:    t.DebateID,
		Scores:      make(map[uuid.UUID]models.ScoreVector, len(t.Participants)),
		Totals:      make(map[uuid.UUID]int, len(t.Participants)),
		Source:      source,
		GeneratedAt: time.Now().UTC(),
	}
	for _, pt := range t.Participants {
		sc, ok := scores[pt.ParticipantID.String()]
		if !ok {
			return nil, fmt.Errorf("%w: missing scores for participant %s", ErrMiss, pt.ParticipantID)
		}
		if sc.Coherence == nil || sc.Evidence == nil || sc.Logic == nil || sc.Persuasiveness == nil {
			return nil, fmt.Errorf("%w: incomplete score vector for participant %s", ErrMiss, pt.ParticipantID)
		}
		vec := models.ScoreVector{
			Coherence:      clamp(*sc.Coherence, 0, 100),
			Evidence:       clamp(*sc.Evidence, 0, 100),
			Logic:          clamp(*sc.Logic, 0, 100),
			Persuasiveness: clamp(*sc.Persuasiveness, 0, 100),
		}
		result.Scores[pt.ParticipantID] = vec
		result.Totals[pt.ParticipantID] = vec.Total()
	}
	if winner == "" {
		return nil, fmt.Errorf("%w: winner missing", ErrMiss)
	}
	winnerID, err := uuid.Parse(winner)
	if err != nil || !hasParticipant(t, winnerID) {
		return nil, fmt.Errorf("%w: winner %q is not a participant", ErrMiss, winner)
	}
	// Upstream winner declarations must agree with join-order
	// tie-breaking; recompute locally from the totals.
	result.WinnerID = pickWinner(t, result.Totals)
	return result, nil
}

func hasParticipant(t *Transcript, id uuid.UUID) bool {
	for _, pt := range t.Participants {
		if pt.ParticipantID == id {
			return true
		}
	}
	return false
}
