package backend

import (
	"encoding/json"
	"time"

	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/models"
)

// page is a DRF paginated response.
type page struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

// decodeList accepts either a bare JSON array or a DRF page.
func decodeList[T any](data []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var p page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if len(p.Results) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(p.Results, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseTime(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	t, err := events.ParseTime(*s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type userRef struct {
	ID       events.ID `json:"id"`
	Username string    `json:"username"`
}

type userDTO struct {
	ID          events.ID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Bio         string    `json:"bio"`
	PhoneNumber string    `json:"phone_number"`
	IsOnline    bool      `json:"is_online"`
	LastSeen    *string   `json:"last_seen"`
	Profile     *struct {
		ThemePreference string `json:"theme_preference"`
	} `json:"profile"`
}

func (u userDTO) model() models.User {
	out := models.User{
		ID:          string(u.ID),
		Username:    u.Username,
		Email:       u.Email,
		Bio:         u.Bio,
		PhoneNumber: u.PhoneNumber,
		IsOnline:    u.IsOnline,
		LastSeen:    parseTime(u.LastSeen),
	}
	if u.Profile != nil {
		out.ThemePreference = u.Profile.ThemePreference
	}
	return out
}

type messageDTO struct {
	ID            events.ID  `json:"id"`
	Conversation  events.ID  `json:"conversation"`
	Sender        *userRef   `json:"sender"`
	SenderID      events.ID  `json:"sender_id"`
	SenderName    string     `json:"sender_name"`
	Content       string     `json:"content"`
	Timestamp     *string    `json:"timestamp"`
	IsRead        bool       `json:"is_read"`
	ReplyTo       *events.ID `json:"reply_to"`
	ParentMessage *events.ID `json:"parent_message"`
	Attachment    *string    `json:"attachment"`
	AttachmentURL *string    `json:"attachment_url"`
	ClientID      string     `json:"client_id"`
	ReadBy        []string   `json:"read_by"`
}

func (m messageDTO) model() models.Message {
	out := models.Message{
		ID:              string(m.ID),
		TempID:          m.ClientID,
		ConversationID:  string(m.Conversation),
		SenderID:        string(m.SenderID),
		SenderName:      m.SenderName,
		Content:         m.Content,
		Timestamp:       parseTime(m.Timestamp),
		ReplyToID:       m.ReplyTo.String(),
		ParentMessageID: m.ParentMessage.String(),
		Status:          models.StatusSent,
		ReadBy:          m.ReadBy,
	}
	if m.Sender != nil {
		out.SenderID = string(m.Sender.ID)
		out.SenderName = m.Sender.Username
	}
	switch {
	case m.AttachmentURL != nil && *m.AttachmentURL != "":
		out.Attachment = *m.AttachmentURL
	case m.Attachment != nil:
		out.Attachment = *m.Attachment
	}
	return out
}

type conversationDTO struct {
	ID           events.ID   `json:"id"`
	Participants []userDTO   `json:"participants"`
	CreatedAt    *string     `json:"created_at"`
	UpdatedAt    *string     `json:"updated_at"`
	IsGroup      bool        `json:"is_group"`
	Name         string      `json:"name"`
	LastMessage  *messageDTO `json:"last_message"`
	UnreadCount  int         `json:"unread_count"`
}

func (c conversationDTO) model() models.Conversation {
	out := models.Conversation{
		ID:          string(c.ID),
		IsGroup:     c.IsGroup,
		Name:        c.Name,
		CreatedAt:   parseTime(c.CreatedAt),
		UpdatedAt:   parseTime(c.UpdatedAt),
		UnreadCount: c.UnreadCount,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, p.model())
	}
	if c.LastMessage != nil {
		m := c.LastMessage.model()
		if m.ConversationID == "" {
			m.ConversationID = out.ID
		}
		out.LastMessage = &m
	}
	return out
}

type notificationDTO struct {
	ID                  events.ID      `json:"id"`
	Sender              *userRef       `json:"sender"`
	NotificationType    string         `json:"notification_type"`
	Message             string         `json:"message"`
	IsRead              bool           `json:"is_read"`
	CreatedAt           *string        `json:"created_at"`
	Data                map[string]any `json:"data"`
	RelatedMessage      *events.ID     `json:"related_message"`
	RelatedConversation *events.ID     `json:"related_conversation"`
}

func (n notificationDTO) model() models.Notification {
	out := models.Notification{
		ID:                    string(n.ID),
		Type:                  models.ParseNotificationType(n.NotificationType),
		Message:               n.Message,
		IsRead:                n.IsRead,
		CreatedAt:             parseTime(n.CreatedAt),
		Data:                  n.Data,
		RelatedMessageID:      n.RelatedMessage.String(),
		RelatedConversationID: n.RelatedConversation.String(),
	}
	if n.Sender != nil {
		out.FromUser = n.Sender.Username
	}
	return out
}

type authResponse struct {
	User    userDTO `json:"user"`
	Access  string  `json:"access"`
	Refresh string  `json:"refresh"`
}
