package reconciler

import (
	"slices"

	"github.com/Vasu1712/chatsync/internal/models"
)

// ApplyLastMessage updates the conversation list entry msg belongs to and
// moves it to the front. Messages from someone other than selfID bump the
// unread counter.
func ApplyLastMessage(seq []models.Conversation, msg models.Message, selfID string) []models.Conversation {
	i := slices.IndexFunc(seq, func(c models.Conversation) bool { return c.ID == msg.ConversationID })
	if i < 0 {
		return slices.Clone(seq)
	}
	c := seq[i]
	if c.LastMessage != nil && c.LastMessage.ID == msg.ID {
		return slices.Clone(seq)
	}
	last := msg
	c.LastMessage = &last
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
	if msg.SenderID != selfID {
		c.UnreadCount++
	}
	out := make([]models.Conversation, 0, len(seq))
	out = append(out, c)
	out = append(out, seq[:i]...)
	return append(out, seq[i+1:]...)
}

// ClearUnread zeroes the unread counter of one conversation.
func ClearUnread(seq []models.Conversation, conversationID string) []models.Conversation {
	out := slices.Clone(seq)
	if i := slices.IndexFunc(out, func(c models.Conversation) bool { return c.ID == conversationID }); i >= 0 {
		out[i].UnreadCount = 0
	}
	return out
}
