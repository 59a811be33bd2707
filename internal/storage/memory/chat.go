// Package memory holds the relay's in-memory conversation, message,
// notification and user stores.
package memory

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/models"
)

type ChatStore struct {
	mu            sync.RWMutex
	clock         clock.Clock
	conversations map[string]*models.Conversation   // convID -> conversation
	userIndex     map[string][]string               // userID -> []convID
	messages      map[string][]*models.Message      // convID -> messages in arrival order
	byID          map[string]*models.Message        // msgID -> message
	notifications map[string][]*models.Notification // userID -> newest first
	attachments   map[string]Attachment
}

// Attachment is an uploaded file served back under its id.
type Attachment struct {
	ID   string
	Name string
	Data []byte
}

func NewChatStore(clk clock.Clock) *ChatStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ChatStore{
		clock:         clk,
		conversations: make(map[string]*models.Conversation),
		userIndex:     make(map[string][]string),
		messages:      make(map[string][]*models.Message),
		byID:          make(map[string]*models.Message),
		notifications: make(map[string][]*models.Notification),
		attachments:   make(map[string]Attachment),
	}
}

// PutAttachment stores an upload and returns its id.
func (s *ChatStore) PutAttachment(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := Attachment{ID: uuid.NewString(), Name: name, Data: data}
	s.attachments[a.ID] = a
	return a.ID
}

func (s *ChatStore) Attachment(id string) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attachments[id]
	if !ok {
		return Attachment{}, apperr.NotFound("attachment not found")
	}
	return a, nil
}

func (s *ChatStore) now() time.Time { return s.clock.Now().UTC() }

// StartConversation returns the direct conversation between a and b,
// creating it on first use.
func (s *ChatStore) StartConversation(a, b models.User) (models.Conversation, error) {
	if a.ID == b.ID {
		return models.Conversation{}, apperr.InvalidArg("cannot start a conversation with yourself")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userIndex[a.ID] {
		conv := s.conversations[id]
		if !conv.IsGroup && conv.HasParticipant(b.ID) {
			return s.view(conv, a.ID), nil
		}
	}
	now := s.now()
	conv := &models.Conversation{
		ID:           uuid.NewString(),
		Participants: []models.User{a, b},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.conversations[conv.ID] = conv
	s.userIndex[a.ID] = append(s.userIndex[a.ID], conv.ID)
	s.userIndex[b.ID] = append(s.userIndex[b.ID], conv.ID)
	return s.view(conv, a.ID), nil
}

// Conversations lists userID's conversations, most recently active first.
func (s *ChatStore) Conversations(userID string) []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.userIndex[userID]))
	for _, id := range s.userIndex[userID] {
		out = append(out, s.view(s.conversations[id], userID))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Conversation returns the conversation if userID takes part in it.
func (s *ChatStore) Conversation(id, userID string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, err := s.member(id, userID)
	if err != nil {
		return models.Conversation{}, err
	}
	return s.view(conv, userID), nil
}

func (s *ChatStore) member(convID, userID string) (*models.Conversation, error) {
	conv, ok := s.conversations[convID]
	if !ok || !conv.HasParticipant(userID) {
		return nil, apperr.NotFound("conversation not found")
	}
	return conv, nil
}

// view copies conv with unread count and last message as seen by userID.
func (s *ChatStore) view(conv *models.Conversation, userID string) models.Conversation {
	out := *conv
	out.Participants = slices.Clone(conv.Participants)
	msgs := s.messages[conv.ID]
	if n := len(msgs); n > 0 {
		last := copyMessage(msgs[n-1])
		out.LastMessage = &last
	}
	out.UnreadCount = unread(msgs, userID)
	return out
}

func unread(msgs []*models.Message, userID string) int {
	n := 0
	for _, m := range msgs {
		if m.SenderID != userID && !slices.Contains(m.ReadBy, userID) {
			n++
		}
	}
	return n
}

func copyMessage(m *models.Message) models.Message {
	out := *m
	out.ReadBy = slices.Clone(m.ReadBy)
	return out
}

// AddMessage stores msg in its conversation and returns it with a server id
// and timestamp. TempID carries the sender's client id through to the echo.
func (s *ChatStore) AddMessage(msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.member(msg.ConversationID, msg.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	for _, ref := range []string{msg.ReplyToID, msg.ParentMessageID} {
		if ref == "" {
			continue
		}
		if m, ok := s.byID[ref]; !ok || m.ConversationID != conv.ID {
			return models.Message{}, apperr.InvalidArg("referenced message is not in this conversation")
		}
	}
	stored := msg
	stored.ID = uuid.NewString()
	stored.Timestamp = s.now()
	stored.Status = models.StatusSent
	stored.ReadBy = nil
	s.messages[conv.ID] = append(s.messages[conv.ID], &stored)
	s.byID[stored.ID] = &stored
	conv.UpdatedAt = stored.Timestamp
	return copyMessage(&stored), nil
}

// Messages returns the top-level messages of a conversation, or the replies
// to parentID when it is set.
func (s *ChatStore) Messages(convID, parentID, userID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.member(convID, userID); err != nil {
		return nil, err
	}
	out := []models.Message{}
	for _, m := range s.messages[convID] {
		if m.ParentMessageID == parentID {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

// Message returns a message from a conversation userID takes part in.
func (s *ChatStore) Message(id, userID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return models.Message{}, apperr.NotFound("message not found")
	}
	if _, err := s.member(m.ConversationID, userID); err != nil {
		return models.Message{}, apperr.NotFound("message not found")
	}
	return copyMessage(m), nil
}

// MarkRead records that userID has read the message. Repeated calls are no-ops.
func (s *ChatStore) MarkRead(id, userID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return models.Message{}, apperr.NotFound("message not found")
	}
	if _, err := s.member(m.ConversationID, userID); err != nil {
		return models.Message{}, apperr.NotFound("message not found")
	}
	if !slices.Contains(m.ReadBy, userID) {
		m.ReadBy = append(m.ReadBy, userID)
	}
	return copyMessage(m), nil
}

// SearchFilter narrows a message search. Empty fields match everything.
type SearchFilter struct {
	Query          string
	ConversationID string
	SenderID       string
	From, To       time.Time
}

func (f SearchFilter) match(m *models.Message) bool {
	switch {
	case f.Query != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(f.Query)):
		return false
	case f.ConversationID != "" && m.ConversationID != f.ConversationID:
		return false
	case f.SenderID != "" && m.SenderID != f.SenderID:
		return false
	case !f.From.IsZero() && m.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && m.Timestamp.After(f.To):
		return false
	}
	return true
}

// Search returns matching messages across userID's conversations, oldest first.
func (s *ChatStore) Search(userID string, f SearchFilter) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Message{}
	for _, convID := range s.userIndex[userID] {
		for _, m := range s.messages[convID] {
			if f.match(m) {
				out = append(out, copyMessage(m))
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// UnreadCounts maps each of userID's conversations with unread messages to
// their count.
func (s *ChatStore) UnreadCounts(userID string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, id := range s.userIndex[userID] {
		if n := unread(s.messages[id], userID); n > 0 {
			out[id] = n
		}
	}
	return out
}

// Notify stores a notification for userID, assigning id and creation time.
func (s *ChatStore) Notify(userID string, n models.Notification) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.NewString()
	n.CreatedAt = s.now()
	n.IsRead = false
	s.notifications[userID] = append([]*models.Notification{&n}, s.notifications[userID]...)
	return n
}

func (s *ChatStore) Notifications(userID string, unreadOnly bool) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range s.notifications[userID] {
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	return out
}

func (s *ChatStore) MarkNotificationRead(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications[userID] {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

// MarkAllNotificationsRead returns how many notifications flipped.
func (s *ChatStore) MarkAllNotificationsRead(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	for _, n := range s.notifications[userID] {
		if !n.IsRead {
			n.IsRead = true
			marked++
		}
	}
	return marked
}
