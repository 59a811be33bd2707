package session

import (
	"context"
	"slices"
	"sync"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/eventsource"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/reconciler"
)

// NotificationCenter is the live view of the signed-in user's channel:
// notifications, presence and online users.
type NotificationCenter struct {
	app *App
	src *eventsource.Source

	mu        sync.Mutex
	confirmed map[string]bool
	closed    bool
	closeOnce sync.Once
}

// OpenNotifications fetches the notification list and connects the user
// channel. Notifications already on the server when it opens never alert.
func (a *App) OpenNotifications(ctx context.Context) (*NotificationCenter, error) {
	sess, err := a.self()
	if err != nil {
		return nil, err
	}
	if _, err := a.Notifications.Get(ctx, reconciler.NotificationsKey); err != nil {
		return nil, err
	}

	n := &NotificationCenter{
		app:       a,
		src:       a.source(eventsource.PresenceURL(a.wsBase, sess.UserID), "user"),
		confirmed: make(map[string]bool),
	}
	n.src.OnEvent(a.Reconciler(sess.UserID).HandleUser())
	n.src.OnReconnect(n.refetch)

	if err := a.track(n); err != nil {
		return nil, err
	}
	if err := n.src.Connect(a.ctx); err != nil {
		a.untrack(n)
		return nil, err
	}
	a.log.Info("notifications_opened", "user_id", sess.UserID)
	return n, nil
}

func (n *NotificationCenter) isCurrent() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.closed
}

func (n *NotificationCenter) refetch() {
	n.app.Notifications.Invalidate(reconciler.NotificationsKey)
	n.app.runner.Do(func() {
		if !n.isCurrent() {
			return
		}
		ctx, cancel := n.app.requestContext()
		defer cancel()
		if _, err := n.app.Notifications.Get(ctx, reconciler.NotificationsKey); err != nil {
			n.app.log.Warn("refetch_failed", "key", reconciler.NotificationsKey.String(), "error", err)
		}
		_ = n.RequestOnlineUsers()
	})
}

// Notifications returns the cached list, most recent first.
func (n *NotificationCenter) Notifications() []models.Notification {
	seq, _ := n.app.Notifications.Read(reconciler.NotificationsKey)
	return seq
}

func (n *NotificationCenter) Unread() int {
	return reconciler.UnreadCount(n.Notifications())
}

func (n *NotificationCenter) Watch() (<-chan struct{}, func()) {
	return n.app.Notifications.Watch(reconciler.NotificationsKey)
}

func (n *NotificationCenter) State() eventsource.State { return n.src.State() }

// MarkAsRead flips the notification to read at once and confirms with the
// backend in the background. A failed call reverts the flip, unless an
// earlier call for the same notification already succeeded. Notifications
// that are already read are left alone.
func (n *NotificationCenter) MarkAsRead(id string) error {
	if id == "" {
		return apperr.InvalidArg("notification id is required")
	}
	var alreadyRead bool
	n.app.Notifications.Write(reconciler.NotificationsKey, func(seq []models.Notification) []models.Notification {
		i := slices.IndexFunc(seq, func(x models.Notification) bool { return x.ID == id })
		if alreadyRead = i >= 0 && seq[i].IsRead; alreadyRead {
			return seq
		}
		return reconciler.MarkNotificationRead(seq, id)
	})
	if alreadyRead {
		return nil
	}
	n.app.runner.Do(func() {
		ctx, cancel := n.app.requestContext()
		defer cancel()
		err := n.app.Backend.MarkNotificationRead(ctx, id)
		n.settle([]string{id}, err)
	})
	return nil
}

// MarkAllAsRead is MarkAsRead for every unread notification in one call.
func (n *NotificationCenter) MarkAllAsRead() {
	var unread []string
	n.app.Notifications.Write(reconciler.NotificationsKey, func(seq []models.Notification) []models.Notification {
		for _, x := range seq {
			if !x.IsRead {
				unread = append(unread, x.ID)
			}
		}
		return reconciler.MarkAllNotificationsRead(seq)
	})
	if len(unread) == 0 {
		return
	}
	n.app.runner.Do(func() {
		ctx, cancel := n.app.requestContext()
		defer cancel()
		_, err := n.app.Backend.MarkAllNotificationsRead(ctx)
		n.settle(unread, err)
	})
}

func (n *NotificationCenter) settle(ids []string, err error) {
	if err == nil {
		n.mu.Lock()
		for _, id := range ids {
			n.confirmed[id] = true
		}
		n.mu.Unlock()
		return
	}
	n.app.log.Warn("mark_read_failed", "count", len(ids), "error", err)
	n.app.Notifications.Write(reconciler.NotificationsKey, func(seq []models.Notification) []models.Notification {
		n.mu.Lock()
		defer n.mu.Unlock()
		for _, id := range ids {
			if !n.confirmed[id] {
				seq = reconciler.RevertNotificationRead(seq, id)
			}
		}
		return seq
	})
}

// OnlineUsers lists the users the user channel last reported online.
func (n *NotificationCenter) OnlineUsers() []string {
	seq, _ := n.app.Presence.Read(reconciler.PresenceKey)
	return reconciler.OnlineUserIDs(seq)
}

// RequestOnlineUsers asks the channel for a fresh online_users snapshot.
func (n *NotificationCenter) RequestOnlineUsers() error {
	return n.src.SendEvent(events.GetOnlineUsers{})
}

func (n *NotificationCenter) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.mu.Unlock()
		err = n.src.Close()
		n.app.untrack(n)
	})
	return err
}
