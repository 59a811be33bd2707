// Package api holds the response helpers and wire views shared by the relay's
// HTTP handlers. Views follow the REST contract the client decodes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError answers with the status for err's code and a DRF style
// {"detail": ...} body.
func WriteError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request_failed", "error", err)
		msg = "internal error"
	}
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Malformed("invalid json body", err)
	}
	return nil
}

func timeString(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type User struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Bio         string  `json:"bio"`
	PhoneNumber string  `json:"phone_number"`
	IsOnline    bool    `json:"is_online"`
	LastSeen    *string `json:"last_seen"`
	Profile     struct {
		ThemePreference string `json:"theme_preference"`
	} `json:"profile"`
}

func UserView(u models.User) User {
	out := User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Bio:         u.Bio,
		PhoneNumber: u.PhoneNumber,
		IsOnline:    u.IsOnline,
		LastSeen:    timeString(u.LastSeen),
	}
	out.Profile.ThemePreference = u.ThemePreference
	return out
}

type Message struct {
	ID            string   `json:"id"`
	Conversation  string   `json:"conversation"`
	Sender        UserRef  `json:"sender"`
	Content       string   `json:"content"`
	Timestamp     *string  `json:"timestamp"`
	IsRead        bool     `json:"is_read"`
	ReplyTo       *string  `json:"reply_to"`
	ParentMessage *string  `json:"parent_message"`
	Attachment    *string  `json:"attachment"`
	ClientID      string   `json:"client_id,omitempty"`
	ReadBy        []string `json:"read_by"`
}

func MessageView(m models.Message) Message {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return Message{
		ID:            m.ID,
		Conversation:  m.ConversationID,
		Sender:        UserRef{ID: m.SenderID, Username: m.SenderName},
		Content:       m.Content,
		Timestamp:     timeString(m.Timestamp),
		IsRead:        len(m.ReadBy) > 0,
		ReplyTo:       optional(m.ReplyToID),
		ParentMessage: optional(m.ParentMessageID),
		Attachment:    optional(m.Attachment),
		ClientID:      m.TempID,
		ReadBy:        readBy,
	}
}

func MessageViews(msgs []models.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView(m))
	}
	return out
}

type Conversation struct {
	ID           string   `json:"id"`
	Participants []User   `json:"participants"`
	CreatedAt    *string  `json:"created_at"`
	UpdatedAt    *string  `json:"updated_at"`
	IsGroup      bool     `json:"is_group"`
	Name         string   `json:"name"`
	LastMessage  *Message `json:"last_message"`
	UnreadCount  int      `json:"unread_count"`
}

func ConversationView(c models.Conversation) Conversation {
	out := Conversation{
		ID:           c.ID,
		Participants: make([]User, 0, len(c.Participants)),
		CreatedAt:    timeString(c.CreatedAt),
		UpdatedAt:    timeString(c.UpdatedAt),
		IsGroup:      c.IsGroup,
		Name:         c.Name,
		UnreadCount:  c.UnreadCount,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, UserView(p))
	}
	if c.LastMessage != nil {
		m := MessageView(*c.LastMessage)
		out.LastMessage = &m
	}
	return out
}

type Notification struct {
	ID                  string         `json:"id"`
	Sender              *UserRef       `json:"sender"`
	NotificationType    string         `json:"notification_type"`
	Message             string         `json:"message"`
	IsRead              bool           `json:"is_read"`
	CreatedAt           *string        `json:"created_at"`
	Data                map[string]any `json:"data"`
	RelatedMessage      *string        `json:"related_message"`
	RelatedConversation *string        `json:"related_conversation"`
}

func NotificationView(n models.Notification) Notification {
	out := Notification{
		ID:                  n.ID,
		NotificationType:    string(n.Type),
		Message:             n.Message,
		IsRead:              n.IsRead,
		CreatedAt:           timeString(n.CreatedAt),
		Data:                n.Data,
		RelatedMessage:      optional(n.RelatedMessageID),
		RelatedConversation: optional(n.RelatedConversationID),
	}
	if n.FromUser != "" {
		out.Sender = &UserRef{Username: n.FromUser}
	}
	return out
}

func NotificationViews(ns []models.Notification) []Notification {
	out := make([]Notification, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationView(n))
	}
	return out
}
