package reconciler

import (
	"log/slog"
	"time"

	"github.com/Vasu1712/chatsync/internal/cache"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/metrics"
	"github.com/Vasu1712/chatsync/internal/models"
)

const DefaultTypingExpiry = 3 * time.Second

func MessagesKey(conversationID string) cache.Key { return cache.Key{"messages", conversationID} }
func TypingKey(conversationID string) cache.Key   { return cache.Key{"typing", conversationID} }

var (
	NotificationsKey = cache.Key{"notifications"}
	PresenceKey      = cache.Key{"presence"}
	ConversationsKey = cache.Key{"conversations"}
)

// Alerter is told about every notification the first time it arrives live.
type Alerter interface {
	Alert(n models.Notification)
}

type AlertFunc func(n models.Notification)

func (f AlertFunc) Alert(n models.Notification) { f(n) }

type Stores struct {
	Messages      *cache.Store[models.Message]
	Typing        *cache.Store[models.TypingEntry]
	Notifications *cache.Store[models.Notification]
	Presence      *cache.Store[models.Presence]
	Conversations *cache.Store[models.Conversation]
}

type Options struct {
	// SelfID is the signed-in user. Their own typing frames are ignored.
	SelfID       string
	TypingExpiry time.Duration
	Clock        clock.Clock
	Alerter      Alerter
	Logger       *slog.Logger
}

// Reconciler routes decoded events into cache writes. It never fetches.
type Reconciler struct {
	stores Stores
	opts   Options
	log    *slog.Logger
}

func New(stores Stores, opts Options) *Reconciler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TypingExpiry <= 0 {
		opts.TypingExpiry = DefaultTypingExpiry
	}
	return &Reconciler{stores: stores, opts: opts, log: logger.OrDiscard(opts.Logger)}
}

func (r *Reconciler) drop(channel string, ev events.Event, reason string) {
	metrics.EventsDropped.WithLabelValues(channel, reason).Inc()
	r.log.Warn("event_dropped", "channel", channel, "type", string(ev.Type()), "reason", reason)
}

// HandleConversation returns the handler for one conversation's channel.
func (r *Reconciler) HandleConversation(conversationID string) func(events.Event) {
	return func(ev events.Event) {
		switch e := ev.(type) {
		case events.Message:
			r.ApplyMessage(conversationID, e.Message)
		case events.Typing:
			if e.UserID == r.opts.SelfID {
				return
			}
			now := r.opts.Clock.Now()
			r.stores.Typing.Write(TypingKey(conversationID), func(seq []models.TypingEntry) []models.TypingEntry {
				return ApplyTyping(seq, e.UserID, e.IsTyping, now)
			})
		case events.ReadReceipt:
			r.stores.Messages.Write(MessagesKey(conversationID), func(seq []models.Message) []models.Message {
				return ApplyReadReceipt(seq, e.MessageID, e.UserID)
			})
		default:
			r.drop("chat", ev, "unexpected_type")
		}
	}
}

// ApplyMessage merges a message into its conversation and the conversation
// list.
func (r *Reconciler) ApplyMessage(conversationID string, msg models.Message) {
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	if msg.ConversationID != conversationID {
		r.log.Warn("event_dropped", "channel", "chat", "type", "message",
			"reason", "conversation_mismatch", "conversation_id", msg.ConversationID)
		metrics.EventsDropped.WithLabelValues("chat", "conversation_mismatch").Inc()
		return
	}
	r.stores.Messages.Write(MessagesKey(conversationID), func(seq []models.Message) []models.Message {
		return ApplyMessage(seq, msg)
	})
	if r.stores.Conversations != nil {
		r.stores.Conversations.Write(ConversationsKey, func(seq []models.Conversation) []models.Conversation {
			return ApplyLastMessage(seq, msg, r.opts.SelfID)
		})
	}
}

// HandleUser returns the handler for the signed-in user's channel.
func (r *Reconciler) HandleUser() func(events.Event) {
	return func(ev events.Event) {
		switch e := ev.(type) {
		case events.Notification:
			r.ApplyNotification(e.Notification)
		case events.Presence:
			r.stores.Presence.Write(PresenceKey, func(seq []models.Presence) []models.Presence {
				return ApplyPresence(seq, e.Presence)
			})
		case events.OnlineUsers:
			r.stores.Presence.Write(PresenceKey, func(seq []models.Presence) []models.Presence {
				return ReplaceOnline(seq, e.UserIDs)
			})
		default:
			r.drop("user", ev, "unexpected_type")
		}
	}
}

// ApplyNotification caches n and alerts if it had not been seen before. It
// reports whether n was new.
func (r *Reconciler) ApplyNotification(n models.Notification) bool {
	var added bool
	r.stores.Notifications.Write(NotificationsKey, func(seq []models.Notification) []models.Notification {
		out, ok := ApplyNotification(seq, n)
		added = ok
		return out
	})
	if added {
		r.log.Info("notification_received", "id", n.ID, "type", string(n.Type))
		if r.opts.Alerter != nil {
			r.opts.Alerter.Alert(n)
		}
	}
	return added
}

// SweepTyping clears expired typing indicators for one conversation. The
// store is only written when something changes.
func (r *Reconciler) SweepTyping(conversationID string) {
	key := TypingKey(conversationID)
	now := r.opts.Clock.Now()
	seq, ok := r.stores.Typing.Read(key)
	if !ok || !TypingExpired(seq, now, r.opts.TypingExpiry) {
		return
	}
	r.stores.Typing.Write(key, func(seq []models.TypingEntry) []models.TypingEntry {
		return SweepTyping(seq, now, r.opts.TypingExpiry)
	})
}
