package models

import "time"

type Conversation struct {
	ID           string    `json:"id"`
	Participants []User    `json:"participants"`
	IsGroup      bool      `json:"is_group"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UnreadCount  int       `json:"unread_count"`
	LastMessage  *Message  `json:"last_message,omitempty"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}
