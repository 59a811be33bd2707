package models

import "time"

// Presence is the online state of a user as pushed on the user channel.
type Presence struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen,omitempty"` // zero while online
}
