package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
)

// File is an attachment to upload with a message.
type File struct {
	Name string
	Data []byte
}

type CreateMessage struct {
	ConversationID  string
	Content         string
	ReplyToID       string
	ParentMessageID string
	// ClientID is the sender's temporary id; the backend echoes it on the
	// broadcast so the optimistic entry can be matched.
	ClientID   string
	Attachment *File
}

type SearchQuery struct {
	Text           string
	ConversationID string
	SenderID       string
	From, To       time.Time
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return list(ctx, c, request{method: http.MethodGet, path: "chat/conversations/"}, conversationDTO.model)
}

// StartConversation returns the direct conversation with userID, creating it
// if needed.
func (c *Client) StartConversation(ctx context.Context, userID string) (models.Conversation, error) {
	if userID == "" {
		return models.Conversation{}, apperr.InvalidArg("user id is required")
	}
	var dto conversationDTO
	in := map[string]string{"user_id": userID}
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "chat/conversations/start_conversation/"}, in, &dto); err != nil {
		return models.Conversation{}, err
	}
	return dto.model(), nil
}

// UnreadCounts maps conversation id to unread message count; conversations
// with nothing unread are absent.
func (c *Client) UnreadCounts(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "chat/conversations/unread_count/"}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages fetches a conversation's messages. A non-empty parentID
// returns that thread's replies instead.
func (c *Client) ListMessages(ctx context.Context, conversationID, parentID string) ([]models.Message, error) {
	if conversationID == "" {
		return nil, apperr.InvalidArg("conversation id is required")
	}
	r := request{method: http.MethodGet, path: fmt.Sprintf("chat/conversations/%s/messages/", url.PathEscape(conversationID))}
	if parentID != "" {
		r.query = url.Values{"parent": {parentID}}
	}
	msgs, err := list(ctx, c, r, messageDTO.model)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].ConversationID == "" {
			msgs[i].ConversationID = conversationID
		}
	}
	return msgs, nil
}

// SendMessage creates a message. It is sent as multipart form data when an
// attachment is present, JSON otherwise.
func (c *Client) SendMessage(ctx context.Context, m CreateMessage) (models.Message, error) {
	if m.ConversationID == "" {
		return models.Message{}, apperr.InvalidArg("conversation id is required")
	}
	if m.Content == "" && m.Attachment == nil {
		return models.Message{}, apperr.InvalidArg("message needs content or an attachment")
	}
	fields := map[string]string{
		"conversation_id":   m.ConversationID,
		"content":           m.Content,
		"reply_to":          m.ReplyToID,
		"parent_message_id": m.ParentMessageID,
		"client_id":         m.ClientID,
	}

	var dto messageDTO
	r := request{method: http.MethodPost, path: "chat/messages/"}
	if m.Attachment == nil {
		in := map[string]string{}
		for k, v := range fields {
			if v != "" {
				in[k] = v
			}
		}
		if err := c.doJSON(ctx, r, in, &dto); err != nil {
			return models.Message{}, err
		}
	} else {
		body, contentType, err := multipartBody(fields, m.Attachment)
		if err != nil {
			return models.Message{}, err
		}
		r.body = body
		r.contentType = contentType
		data, err := c.send(ctx, r)
		if err != nil {
			return models.Message{}, err
		}
		if err := decodeInto(data, &dto); err != nil {
			return models.Message{}, err
		}
	}
	msg := dto.model()
	if msg.ConversationID == "" {
		msg.ConversationID = m.ConversationID
	}
	if msg.TempID == "" {
		msg.TempID = m.ClientID
	}
	return msg, nil
}

func multipartBody(fields map[string]string, f *File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("attachment", f.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) ForwardMessage(ctx context.Context, messageID, toConversationID string) (models.Message, error) {
	if messageID == "" || toConversationID == "" {
		return models.Message{}, apperr.InvalidArg("message id and target conversation are required")
	}
	var dto messageDTO
	r := request{method: http.MethodPost, path: fmt.Sprintf("chat/messages/%s/forward/", url.PathEscape(messageID))}
	if err := c.doJSON(ctx, r, map[string]string{"conversation_id": toConversationID}, &dto); err != nil {
		return models.Message{}, err
	}
	return dto.model(), nil
}

func (c *Client) SearchMessages(ctx context.Context, q SearchQuery) ([]models.Message, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.ConversationID != "" {
		v.Set("conversation_id", q.ConversationID)
	}
	if q.SenderID != "" {
		v.Set("sender_id", q.SenderID)
	}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	return list(ctx, c, request{method: http.MethodGet, path: "chat/messages/search/", query: v}, messageDTO.model)
}

func (c *Client) MarkMessageRead(ctx context.Context, messageID string) error {
	r := request{method: http.MethodPost, path: fmt.Sprintf("chat/messages/%s/mark_read/", url.PathEscape(messageID))}
	return c.doJSON(ctx, r, nil, nil)
}
