// Package ws fans relay frames out to websocket clients grouped by topic.
package ws

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/metrics"
)

// Topics a client can subscribe to. Conversation channels join ChatTopic,
// user channels join UserTopic plus PresenceTopic.
const PresenceTopic = "presence"

func ChatTopic(conversationID string) string { return "chat:" + conversationID }

func UserTopic(userID string) string { return "user:" + userID }

func topicKind(topic string) string {
	if i := strings.IndexByte(topic, ':'); i >= 0 {
		return topic[:i]
	}
	return topic
}

type Client struct {
	UserID string
	Topics []string
	Send   chan []byte
	Conn   *websocket.Conn // nil in tests
}

// NewClient returns a client with a buffered send queue.
func NewClient(userID string, conn *websocket.Conn, topics ...string) *Client {
	return &Client{UserID: userID, Topics: topics, Send: make(chan []byte, 256), Conn: conn}
}

func (c *Client) userChannel() bool {
	for _, t := range c.Topics {
		if t == UserTopic(c.UserID) {
			return true
		}
	}
	return false
}

type BroadcastMessage struct {
	Topic string
	Data  []byte
}

// PresenceFunc builds the frame announcing a user's online state change.
type PresenceFunc func(userID string, online bool) []byte

type Hub struct {
	clients    map[string]map[*Client]bool // topic -> clients
	online     map[string]int              // userID -> open user channels
	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage
	backplane  Backplane
	presence   PresenceFunc
	log        *slog.Logger
	mu         sync.RWMutex
	done       chan struct{}
}

type Options struct {
	// Backplane, when set, carries every broadcast so that relays sharing it
	// deliver to their own clients.
	Backplane Backplane
	Presence  PresenceFunc
	Logger    *slog.Logger
}

func NewHub(opts Options) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		online:     make(map[string]int),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan BroadcastMessage, 64),
		backplane:  opts.Backplane,
		presence:   opts.Presence,
		log:        logger.OrDiscard(opts.Logger),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client's send queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.backplane != nil {
		go func() {
			err := h.backplane.Subscribe(ctx, func(topic string, data []byte) {
				select {
				case h.broadcast <- BroadcastMessage{Topic: topic, Data: data}:
				case <-ctx.Done():
				}
			})
			if err != nil && ctx.Err() == nil {
				h.log.Error("backplane_subscribe_failed", "error", err)
			}
		}()
	}
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) Register(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return context.Canceled
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues data for every client on topic, through the backplane when
// one is configured.
func (h *Hub) Publish(ctx context.Context, topic string, data []byte) error {
	if h.backplane != nil {
		return h.backplane.Publish(ctx, topic, data)
	}
	select {
	case h.broadcast <- BroadcastMessage{Topic: topic, Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return context.Canceled
	}
}

// OnlineUsers lists users with at least one open user channel on this relay.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.online))
	for id := range h.online {
		out = append(out, id)
	}
	return out
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[userID] > 0
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	for _, t := range c.Topics {
		if h.clients[t] == nil {
			h.clients[t] = make(map[*Client]bool)
		}
		h.clients[t][c] = true
	}
	first := false
	if c.userChannel() {
		h.online[c.UserID]++
		first = h.online[c.UserID] == 1
	}
	h.mu.Unlock()

	metrics.RelayClients.Inc()
	h.log.Debug("client_registered", "user_id", c.UserID, "topics", c.Topics)
	if first {
		h.announce(c.UserID, true)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if !h.detach(c) {
		h.mu.Unlock()
		return
	}
	last := false
	if c.userChannel() {
		h.online[c.UserID]--
		if h.online[c.UserID] <= 0 {
			delete(h.online, c.UserID)
			last = true
		}
	}
	h.mu.Unlock()

	h.log.Debug("client_unregistered", "user_id", c.UserID)
	if last {
		h.announce(c.UserID, false)
	}
}

// detach drops c from all its topics and closes its queue. It reports false
// when c was already gone. h.mu must be held.
func (h *Hub) detach(c *Client) bool {
	found := false
	for _, t := range c.Topics {
		clients, ok := h.clients[t]
		if !ok || !clients[c] {
			continue
		}
		found = true
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, t)
		}
	}
	if found {
		close(c.Send)
		metrics.RelayClients.Dec()
	}
	return found
}

func (h *Hub) deliver(msg BroadcastMessage) {
	metrics.RelayBroadcasts.WithLabelValues(topicKind(msg.Topic)).Inc()
	var offline []string
	h.mu.Lock()
	for client := range h.clients[msg.Topic] {
		select {
		case client.Send <- msg.Data:
		default:
			// Slow consumer: its writer sees the closed queue and hangs up.
			h.log.Warn("client_dropped", "user_id", client.UserID, "topic", msg.Topic)
			h.detach(client)
			if client.userChannel() {
				if h.online[client.UserID]--; h.online[client.UserID] <= 0 {
					delete(h.online, client.UserID)
					offline = append(offline, client.UserID)
				}
			}
		}
	}
	h.mu.Unlock()

	for _, userID := range offline {
		h.announce(userID, false)
	}
}

func (h *Hub) announce(userID string, online bool) {
	if h.presence == nil {
		return
	}
	frame := h.presence(userID, online)
	if h.backplane != nil {
		if err := h.backplane.Publish(context.Background(), PresenceTopic, frame); err != nil {
			h.log.Warn("presence_publish_failed", "user_id", userID, "error", err)
		}
		return
	}
	h.deliver(BroadcastMessage{Topic: PresenceTopic, Data: frame})
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*Client]bool)
	for _, clients := range h.clients {
		for c := range clients {
			seen[c] = true
		}
	}
	for c := range seen {
		h.detach(c)
	}
	h.online = make(map[string]int)
}
