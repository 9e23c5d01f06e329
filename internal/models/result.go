package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisSource tags which scorer tier produced a Result.
type AnalysisSource string

const (
	SourceRemoteModel AnalysisSource = "remote-model"
	SourceGenerative  AnalysisSource = "generative"
	SourceHeuristic   AnalysisSource = "heuristic"
)

// ScoreVector holds the four sub-scores for one participant, each on a
// 0-100 scale.
type ScoreVector struct {
	Coherence      int `json:"coherence"`
	Evidence       int `json:"evidence"`
	Logic          int `json:"logic"`
	Persuasiveness int `json:"persuasiveness"`
}

// Total is the equal-weighted mean of the four sub-scores, rounded to
// the nearest integer.
func (v ScoreVector) Total() int {
	sum := v.Coherence + v.Evidence + v.Logic + v.Persuasiveness
	return (sum + 2) / 4
}

// Result is the scored outcome of a finalized debate. A debate has at
// most one Result; it is never mutated after creation.
type Result struct {
	DebateID    uuid.UUID                 `json:"debate_id"`
	Scores      map[uuid.UUID]ScoreVector `json:"scores"`
	Totals      map[uuid.UUID]int         `json:"totals"`
	WinnerID    uuid.UUID                 `json:"winner_id"`
	Source      AnalysisSource            `json:"source"`
	GeneratedAt time.Time                 `json:"generated_at"`
}
