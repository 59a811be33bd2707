// Package presence serves the relay's websocket channels: one per
// conversation and one per user.
package presence

import (
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Vasu1712/chatsync/internal/api"
	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/middleware"
	"github.com/Vasu1712/chatsync/internal/storage/memory"
	"github.com/Vasu1712/chatsync/internal/ws"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 64 << 10
)

type Handler struct {
	Chat           *memory.ChatStore
	Hub            *ws.Hub
	AllowedOrigins []string
	Log            *slog.Logger
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(h.AllowedOrigins, "*") || slices.Contains(h.AllowedOrigins, origin)
		},
	}
}

// ServeChat upgrades /ws/chat/{conversation_id}/. Clients send typing and
// read_receipt frames and receive every frame of the conversation.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	convID := mux.Vars(r)["conversation_id"]
	if _, err := h.Chat.Conversation(convID, userID); err != nil {
		api.WriteError(w, err)
		return
	}
	h.serve(w, r, ws.NewClient(userID, nil, ws.ChatTopic(convID)), nil, func(c *conn, ev events.Event) {
		switch e := ev.(type) {
		case events.Typing:
			e.UserID = userID
			c.publish(ws.ChatTopic(convID), e)
		case events.ReadReceipt:
			msg, err := h.Chat.MarkRead(e.MessageID, userID)
			if err != nil || msg.ConversationID != convID {
				h.Log.Warn("read_receipt_rejected", "conversation_id", convID, "message_id", e.MessageID, "error", err)
				return
			}
			e.UserID = userID
			c.publish(ws.ChatTopic(convID), e)
		default:
			h.Log.Debug("frame_ignored", "channel", "chat", "type", string(ev.Type()))
		}
	})
}

// ServeUser upgrades /ws/presence/{user_id}/. The channel carries the user's
// notifications and everyone's presence changes, starting with an
// online_users snapshot.
func (h *Handler) ServeUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if mux.Vars(r)["user_id"] != userID {
		api.WriteError(w, apperr.Forbidden("cannot subscribe to another user's channel"))
		return
	}
	onOpen := func(c *conn) { c.reply(h.onlineUsers()) }
	h.serve(w, r, ws.NewClient(userID, nil, ws.UserTopic(userID), ws.PresenceTopic), onOpen, func(c *conn, ev events.Event) {
		if _, ok := ev.(events.GetOnlineUsers); ok {
			c.reply(h.onlineUsers())
			return
		}
		h.Log.Debug("frame_ignored", "channel", "user", "type", string(ev.Type()))
	})
}

func (h *Handler) onlineUsers() events.OnlineUsers {
	ids := h.Hub.OnlineUsers()
	sort.Strings(ids)
	return events.OnlineUsers{UserIDs: ids}
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, client *ws.Client, onOpen func(*conn), onFrame func(*conn, events.Event)) {
	wsConn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("upgrade_failed", "path", r.URL.Path, "error", err)
		return
	}
	client.Conn = wsConn
	c := &conn{
		h:      h,
		client: client,
		direct: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	if err := h.Hub.Register(r.Context(), client); err != nil {
		wsConn.Close()
		return
	}
	h.Log.Info("ws_connected", "user_id", client.UserID, "topics", client.Topics)
	go c.writePump()
	if onOpen != nil {
		onOpen(c)
	}
	c.readPump(onFrame)
}
