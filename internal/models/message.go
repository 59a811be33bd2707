package models

import "time"

type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// Message is one entry of a conversation's cached sequence. While a send is in
// flight ID equals TempID; once confirmed ID is the server-assigned id.
type Message struct {
	ID              string        `json:"id"`
	TempID          string        `json:"temp_id,omitempty"`
	ConversationID  string        `json:"conversation_id"`
	SenderID        string        `json:"sender_id"`
	SenderName      string        `json:"sender_name,omitempty"`
	Content         string        `json:"content,omitempty"`    // empty for attachment-only messages
	Attachment      string        `json:"attachment,omitempty"` // reference returned by the upload endpoint
	Timestamp       time.Time     `json:"timestamp"`
	ReplyToID       string        `json:"reply_to,omitempty"`
	ParentMessageID string        `json:"parent_message_id,omitempty"`
	Status          MessageStatus `json:"status,omitempty"`
	ReadBy          []string      `json:"read_by,omitempty"`
}

func (m Message) Pending() bool { return m.Status == StatusPending }

// SamePayload reports whether two messages carry the same logical content.
func (m Message) SamePayload(o Message) bool {
	return m.SenderID == o.SenderID && m.Content == o.Content && m.Attachment == o.Attachment
}
