package models

import (
	"time"

	"github.com/google/uuid"
)

// Argument is one submission within a debate. Immutable once created.
// Seq increases monotonically within a debate and defines transcript
// order.
type Argument struct {
	DebateID    uuid.UUID `json:"debate_id"`
	AuthorID    uuid.UUID `json:"author_id"`
	Text        string    `json:"text"`
	Seq         int       `json:"seq"`
	SubmittedAt time.Time `json:"submitted_at"`
}
