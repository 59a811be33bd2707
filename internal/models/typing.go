package models

import "time"

// TypingEntry is one user's typing indicator inside a conversation.
type TypingEntry struct {
	UserID      string    `json:"user_id"`
	IsTyping    bool      `json:"is_typing"`
	LastEventAt time.Time `json:"last_event_at"`
}
