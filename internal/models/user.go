package models

import "github.com/google/uuid"

// User is the minimal identity the coordinator needs. Registration and
// credentials live in an external service; guests created at the
// websocket edge are ephemeral.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`
}
