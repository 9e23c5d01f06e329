package models

import (
	"time"

	"github.com/google/uuid"
)

// DebateStatus is the lifecycle state of a debate.
type DebateStatus string

const (
	StatusOpen                DebateStatus = "open"
	StatusActive              DebateStatus = "active"
	StatusFinalizationPending DebateStatus = "finalization_pending"
	StatusFinalized           DebateStatus = "finalized"
	StatusRejected            DebateStatus = "rejected"
)

// MaxParticipants caps a 1v1 debate's membership.
const MaxParticipants = 2

// Debate is the durable record of one debate. Participants is kept in
// join order; the earliest-joined participant wins winner ties, so the
// slice ordering is load-bearing.
type Debate struct {
	ID           uuid.UUID    `json:"id"`
	Topic        string       `json:"topic"`
	Status       DebateStatus `json:"status"`
	Participants []uuid.UUID  `json:"participants"`
	CreatedAt    time.Time    `json:"created_at"`

	// InviteCode gates joining when non-empty (private debates).
	InviteCode string `json:"invite_code,omitempty"`
}

// IsParticipant reports whether userID is in the participant set.
func (d *Debate) IsParticipant(userID uuid.UUID) bool {
	for _, p := range d.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// JoinIndex returns the position of userID in join order, or -1.
func (d *Debate) JoinIndex(userID uuid.UUID) int {
	for i, p := range d.Participants {
		if p == userID {
			return i
		}
	}
	return -1
}
