// Package chat serves the relay's conversation, message and notification
// endpoints and pushes the matching frames through the hub.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/chatsync/internal/api"
	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/middleware"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/storage/memory"
	"github.com/Vasu1712/chatsync/internal/ws"
)

type Handler struct {
	Chat          *memory.ChatStore
	Users         *memory.UserStore
	Hub           *ws.Hub
	MaxUploadSize int64
	Log           *slog.Logger
}

func (h *Handler) user(r *http.Request) (models.User, error) {
	u, err := h.Users.ByID(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return models.User{}, apperr.Unauthorized("unknown user")
	}
	u.IsOnline = h.Hub.IsOnline(u.ID)
	return u, nil
}

func (h *Handler) conversationView(c models.Conversation) api.Conversation {
	for i := range c.Participants {
		c.Participants[i].IsOnline = h.Hub.IsOnline(c.Participants[i].ID)
	}
	return api.ConversationView(c)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	me, err := h.user(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	convs := h.Chat.Conversations(me.ID)
	out := make([]api.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, h.conversationView(c))
	}
	api.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	me, err := h.user(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	var req struct {
		UserID events.ID `json:"user_id"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if req.UserID == "" {
		api.WriteError(w, apperr.InvalidArg("user_id is required"))
		return
	}
	other, err := h.Users.ByID(string(req.UserID))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	conv, err := h.Chat.StartConversation(me, other)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	h.Log.Info("conversation_started", "conversation_id", conv.ID, "user_id", me.ID, "other_id", other.ID)
	api.WriteJSON(w, http.StatusOK, h.conversationView(conv))
}

func (h *Handler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.Chat.UnreadCounts(middleware.UserIDFromContext(r.Context())))
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Chat.Messages(mux.Vars(r)["id"], r.URL.Query().Get("parent"), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.MessageViews(msgs))
}

type createMessage struct {
	ConversationID  events.ID `json:"conversation_id"`
	Content         string    `json:"content"`
	ReplyTo         events.ID `json:"reply_to"`
	ParentMessageID events.ID `json:"parent_message_id"`
	ClientID        string    `json:"client_id"`
}

func (h *Handler) readCreate(w http.ResponseWriter, r *http.Request) (createMessage, string, error) {
	var req createMessage
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, "", api.DecodeJSON(r, &req)
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	if err := r.ParseMultipartForm(h.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, "", apperr.InvalidArg(fmt.Sprintf("attachment exceeds %d bytes", h.MaxUploadSize))
		}
		return req, "", apperr.Malformed("invalid multipart body", err)
	}
	req = createMessage{
		ConversationID:  events.ID(r.FormValue("conversation_id")),
		Content:         r.FormValue("content"),
		ReplyTo:         events.ID(r.FormValue("reply_to")),
		ParentMessageID: events.ID(r.FormValue("parent_message_id")),
		ClientID:        r.FormValue("client_id"),
	}
	file, header, err := r.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) {
		return req, "", nil
	}
	if err != nil {
		return req, "", apperr.Malformed("invalid attachment", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, "", apperr.Malformed("read attachment", err)
	}
	id := h.Chat.PutAttachment(header.Filename, data)
	return req, fmt.Sprintf("/media/%s/%s", id, header.Filename), nil
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	me, err := h.user(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	req, attachment, err := h.readCreate(w, r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if req.ConversationID == "" {
		api.WriteError(w, apperr.InvalidArg("conversation_id is required"))
		return
	}
	if strings.TrimSpace(req.Content) == "" && attachment == "" {
		api.WriteError(w, apperr.InvalidArg("message needs content or an attachment"))
		return
	}
	msg, err := h.post(r.Context(), me, models.Message{
		ConversationID:  string(req.ConversationID),
		Content:         req.Content,
		Attachment:      attachment,
		ReplyToID:       string(req.ReplyTo),
		ParentMessageID: string(req.ParentMessageID),
		TempID:          req.ClientID,
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.MessageView(msg))
}

// post stores msg from sender, broadcasts it on the conversation channel and
// notifies the other participants on their user channels.
func (h *Handler) post(ctx context.Context, sender models.User, msg models.Message) (models.Message, error) {
	msg.SenderID = sender.ID
	msg.SenderName = sender.Username
	stored, err := h.Chat.AddMessage(msg)
	if err != nil {
		return models.Message{}, err
	}
	h.Log.Info("message_created", "conversation_id", stored.ConversationID, "message_id", stored.ID, "sender_id", sender.ID)
	h.publish(ctx, ws.ChatTopic(stored.ConversationID), events.Message{Message: stored})

	conv, err := h.Chat.Conversation(stored.ConversationID, sender.ID)
	if err != nil {
		return stored, nil
	}
	for _, p := range conv.Participants {
		if p.ID == sender.ID {
			continue
		}
		n := h.Chat.Notify(p.ID, models.Notification{
			Type:                  models.NotificationMessage,
			Message:               "New message from " + sender.Username,
			FromUser:              sender.Username,
			RelatedConversationID: stored.ConversationID,
			RelatedMessageID:      stored.ID,
			Data: map[string]any{
				"conversation_id": stored.ConversationID,
				"message_id":      stored.ID,
				"sender_id":       sender.ID,
			},
		})
		h.publish(ctx, ws.UserTopic(p.ID), events.Notification{Notification: n})
	}
	return stored, nil
}

// publish is best effort: the REST write has already happened, clients heal
// missed frames by refetching.
func (h *Handler) publish(ctx context.Context, topic string, ev events.Event) {
	frame, err := events.Encode(ev)
	if err == nil {
		err = h.Hub.Publish(ctx, topic, frame)
	}
	if err != nil {
		h.Log.Warn("publish_failed", "topic", topic, "type", string(ev.Type()), "error", err)
	}
}

func (h *Handler) ForwardMessage(w http.ResponseWriter, r *http.Request) {
	me, err := h.user(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	var req struct {
		ConversationID events.ID `json:"conversation_id"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if req.ConversationID == "" {
		api.WriteError(w, apperr.InvalidArg("conversation_id is required"))
		return
	}
	src, err := h.Chat.Message(mux.Vars(r)["id"], me.ID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	msg, err := h.post(r.Context(), me, models.Message{
		ConversationID: string(req.ConversationID),
		Content:        src.Content,
		Attachment:     src.Attachment,
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.MessageView(msg))
}

func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := memory.SearchFilter{
		Query:          q.Get("q"),
		ConversationID: q.Get("conversation_id"),
		SenderID:       q.Get("sender_id"),
	}
	for param, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(param); v != "" {
			t, err := events.ParseTime(v)
			if err != nil {
				api.WriteError(w, apperr.InvalidArg(fmt.Sprintf("invalid %s: %v", param, err)))
				return
			}
			*dst = t
		}
	}
	msgs := h.Chat.Search(middleware.UserIDFromContext(r.Context()), f)
	api.WriteJSON(w, http.StatusOK, api.MessageViews(msgs))
}

func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	msg, err := h.Chat.MarkRead(mux.Vars(r)["id"], userID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	h.publish(r.Context(), ws.ChatTopic(msg.ConversationID), events.ReadReceipt{UserID: userID, MessageID: msg.ID})
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ns := h.Chat.Notifications(middleware.UserIDFromContext(r.Context()), false)
	api.WriteJSON(w, http.StatusOK, api.NotificationViews(ns))
}

func (h *Handler) UnreadNotifications(w http.ResponseWriter, r *http.Request) {
	ns := h.Chat.Notifications(middleware.UserIDFromContext(r.Context()), true)
	api.WriteJSON(w, http.StatusOK, api.NotificationViews(ns))
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Chat.MarkNotificationRead(middleware.UserIDFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n := h.Chat.MarkAllNotificationsRead(middleware.UserIDFromContext(r.Context()))
	api.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "marked_read": n})
}

// ServeAttachment returns an uploaded file. Attachment URLs are unguessable
// and served without authentication.
func (h *Handler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Chat.Attachment(mux.Vars(r)["id"])
	if err != nil {
		api.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(a.Data))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", a.Name))
	_, _ = w.Write(a.Data)
}
