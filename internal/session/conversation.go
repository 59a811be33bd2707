package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/backend"
	"github.com/Vasu1712/chatsync/internal/cache"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/eventsource"
	"github.com/Vasu1712/chatsync/internal/metrics"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/reconciler"
)

const tempIDPrefix = "tmp-"

var ErrViewClosed = apperr.New(apperr.CodeInvalidArgument, "conversation view is closed")

// Draft is a message the user is about to send.
type Draft struct {
	Content         string
	Attachment      *backend.File
	ReplyToID       string
	ParentMessageID string
}

// Conversation is a live view of one conversation: its cached messages, its
// typing indicators and the channel keeping them current.
type Conversation struct {
	app  *App
	id   string
	self string
	name string
	rec  *reconciler.Reconciler
	src  *eventsource.Source

	typingLimiter *rate.Limiter

	mu        sync.Mutex
	closed    bool
	inflight  map[string]backend.CreateMessage // by temp id, until confirmed
	done      chan struct{}
	closeOnce sync.Once
}

// OpenConversation fetches the conversation's messages and connects its live
// channel. Close the view when done with it.
func (a *App) OpenConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, apperr.InvalidArg("conversation id is required")
	}
	sess, err := a.self()
	if err != nil {
		return nil, err
	}
	if _, err := a.Messages.Get(ctx, reconciler.MessagesKey(conversationID)); err != nil {
		return nil, err
	}

	throttle := a.cfg.Sync.TypingThrottle.Duration()
	c := &Conversation{
		app:           a,
		id:            conversationID,
		self:          sess.UserID,
		name:          sess.Username,
		rec:           a.Reconciler(sess.UserID),
		src:           a.source(eventsource.ConversationURL(a.wsBase, conversationID), "chat"),
		typingLimiter: rate.NewLimiter(rate.Every(throttle), 1),
		done:          make(chan struct{}),
		inflight:      make(map[string]backend.CreateMessage),
	}
	c.src.OnEvent(c.rec.HandleConversation(conversationID))
	c.src.OnReconnect(c.refetch)

	if err := a.track(c); err != nil {
		return nil, err
	}
	if err := c.src.Connect(a.ctx); err != nil {
		a.untrack(c)
		return nil, err
	}
	a.Conversations.Write(reconciler.ConversationsKey, func(seq []models.Conversation) []models.Conversation {
		return reconciler.ClearUnread(seq, conversationID)
	})
	go c.sweep()
	a.log.Info("conversation_opened", "conversation_id", conversationID)
	return c, nil
}

func (c *Conversation) ID() string { return c.id }

func (c *Conversation) key() cache.Key { return reconciler.MessagesKey(c.id) }

func (c *Conversation) isCurrent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// refetch heals the gap left by a dropped channel; the backend does not
// replay missed frames.
func (c *Conversation) refetch() {
	c.app.Messages.Invalidate(c.key())
	c.app.runner.Do(func() {
		if !c.isCurrent() {
			return
		}
		ctx, cancel := c.app.requestContext()
		defer cancel()
		if _, err := c.app.Messages.Get(ctx, c.key()); err != nil {
			c.app.log.Warn("refetch_failed", "conversation_id", c.id, "error", err)
		}
	})
}

func (c *Conversation) sweep() {
	ticker := c.app.clock.NewTicker(c.app.cfg.Sync.TypingSweep.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			c.rec.SweepTyping(c.id)
		case <-c.done:
			return
		}
	}
}

// Messages returns the cached messages in arrival order.
func (c *Conversation) Messages() []models.Message {
	msgs, _ := c.app.Messages.Read(c.key())
	return msgs
}

// Typing returns the ids of users currently typing.
func (c *Conversation) Typing() []string {
	entries, _ := c.app.Typing.Read(reconciler.TypingKey(c.id))
	return reconciler.TypingUsers(entries)
}

func (c *Conversation) WatchMessages() (<-chan struct{}, func()) {
	return c.app.Messages.Watch(c.key())
}

func (c *Conversation) WatchTyping() (<-chan struct{}, func()) {
	return c.app.Typing.Watch(reconciler.TypingKey(c.id))
}

func (c *Conversation) State() eventsource.State { return c.src.State() }

// Send appends d to the view immediately as a pending message and creates it
// on the backend in the background. The returned message carries the temp
// id; it converges to the server's copy when the response or the broadcast
// arrives, whichever is first.
func (c *Conversation) Send(ctx context.Context, d Draft) (models.Message, error) {
	if strings.TrimSpace(d.Content) == "" && d.Attachment == nil {
		return models.Message{}, apperr.InvalidArg("message needs content or an attachment")
	}
	if !c.isCurrent() {
		return models.Message{}, ErrViewClosed
	}
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}

	tempID := tempIDPrefix + uuid.NewString()
	msg := models.Message{
		ID:              tempID,
		TempID:          tempID,
		ConversationID:  c.id,
		SenderID:        c.self,
		SenderName:      c.name,
		Content:         d.Content,
		Timestamp:       c.app.clock.Now(),
		ReplyToID:       d.ReplyToID,
		ParentMessageID: d.ParentMessageID,
		Status:          models.StatusPending,
	}
	if d.Attachment != nil {
		msg.Attachment = d.Attachment.Name
	}
	c.app.Messages.Write(c.key(), func(seq []models.Message) []models.Message {
		return reconciler.AddOptimistic(seq, msg)
	})

	req := backend.CreateMessage{
		ConversationID:  c.id,
		Content:         d.Content,
		ReplyToID:       d.ReplyToID,
		ParentMessageID: d.ParentMessageID,
		ClientID:        tempID,
		Attachment:      d.Attachment,
	}
	c.mu.Lock()
	c.inflight[tempID] = req
	c.mu.Unlock()
	c.app.runner.Do(func() { c.complete(tempID, req) })
	return msg, nil
}

func (c *Conversation) complete(tempID string, req backend.CreateMessage) {
	ctx, cancel := c.app.requestContext()
	defer cancel()
	confirmed, err := c.app.Backend.SendMessage(ctx, req)

	if !c.isCurrent() {
		metrics.Sends.WithLabelValues("stale").Inc()
		c.app.log.Debug("send_completion_ignored", "conversation_id", c.id, "temp_id", tempID)
		return
	}
	if err != nil {
		metrics.Sends.WithLabelValues("failed").Inc()
		c.app.log.Warn("send_failed", "conversation_id", c.id, "temp_id", tempID, "error", err)
		c.app.Messages.Write(c.key(), func(seq []models.Message) []models.Message {
			return reconciler.FailSend(seq, tempID)
		})
		return
	}
	c.mu.Lock()
	delete(c.inflight, tempID)
	c.mu.Unlock()
	metrics.Sends.WithLabelValues("confirmed").Inc()
	c.app.log.Info("send_confirmed", "conversation_id", c.id, "temp_id", tempID, "message_id", confirmed.ID)
	c.app.Messages.Write(c.key(), func(seq []models.Message) []models.Message {
		return reconciler.ConfirmSend(seq, tempID, confirmed)
	})
}

// Retry resends a failed message under its original temp id.
func (c *Conversation) Retry(tempID string) error {
	c.mu.Lock()
	req, ok := c.inflight[tempID]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrViewClosed
	}
	if !ok {
		return apperr.NotFound("no failed message " + tempID)
	}
	var retried bool
	c.app.Messages.Write(c.key(), func(seq []models.Message) []models.Message {
		for i := range seq {
			if seq[i].ID == tempID && seq[i].Status == models.StatusFailed {
				seq[i].Status = models.StatusPending
				retried = true
			}
		}
		return seq
	})
	if !retried {
		return apperr.NotFound("no failed message " + tempID)
	}
	c.app.runner.Do(func() { c.complete(tempID, req) })
	return nil
}

// SetTyping tells the other participants whether the user is typing. Start
// frames are throttled; a stop frame is always sent.
func (c *Conversation) SetTyping(isTyping bool) error {
	if !c.isCurrent() {
		return ErrViewClosed
	}
	if isTyping && !c.typingLimiter.AllowN(c.app.clock.Now(), 1) {
		return nil
	}
	return c.src.SendEvent(events.Typing{UserID: c.self, IsTyping: isTyping})
}

// MarkRead records messageID as read by the user on the backend and tells
// the channel. The receipt frame is best effort.
func (c *Conversation) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return apperr.InvalidArg("message id is required")
	}
	if err := c.app.Backend.MarkMessageRead(ctx, messageID); err != nil {
		return err
	}
	c.app.Messages.Write(c.key(), func(seq []models.Message) []models.Message {
		return reconciler.ApplyReadReceipt(seq, messageID, c.self)
	})
	if err := c.src.SendEvent(events.ReadReceipt{UserID: c.self, MessageID: messageID}); err != nil &&
		!errors.Is(err, eventsource.ErrNotConnected) {
		c.app.log.Warn("read_receipt_failed", "conversation_id", c.id, "message_id", messageID, "error", err)
	}
	return nil
}

// Close disconnects the view. Sends still in flight complete against the
// backend but no longer touch the cache.
func (c *Conversation) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		err = c.src.Close()
		c.app.untrack(c)
		c.app.log.Info("conversation_closed", "conversation_id", c.id)
	})
	return err
}
