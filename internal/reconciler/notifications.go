package reconciler

import (
	"slices"

	"github.com/Vasu1712/chatsync/internal/models"
)

func indexOfNotification(seq []models.Notification, id string) int {
	return slices.IndexFunc(seq, func(n models.Notification) bool { return n.ID == id })
}

// ApplyNotification prepends n unless a notification with its id is cached,
// in which case the two merge and IsRead stays true if either side was read.
// added reports whether n was new.
func ApplyNotification(seq []models.Notification, n models.Notification) (out []models.Notification, added bool) {
	if i := indexOfNotification(seq, n.ID); i >= 0 {
		out = slices.Clone(seq)
		n.IsRead = n.IsRead || seq[i].IsRead
		out[i] = n
		return out, false
	}
	out = make([]models.Notification, 0, len(seq)+1)
	out = append(out, n)
	return append(out, seq...), true
}

func setRead(seq []models.Notification, id string, read bool) []models.Notification {
	out := slices.Clone(seq)
	if i := indexOfNotification(out, id); i >= 0 {
		out[i].IsRead = read
	}
	return out
}

func MarkNotificationRead(seq []models.Notification, id string) []models.Notification {
	return setRead(seq, id, true)
}

func MarkAllNotificationsRead(seq []models.Notification) []models.Notification {
	out := slices.Clone(seq)
	for i := range out {
		out[i].IsRead = true
	}
	return out
}

// RevertNotificationRead undoes an optimistic mark-read whose remote call
// failed. Callers must not use it once a mark-read has been confirmed.
func RevertNotificationRead(seq []models.Notification, id string) []models.Notification {
	return setRead(seq, id, false)
}

// MergeFetchedNotifications folds a fetched list into the cache. Entries are
// ordered most recent first; IsRead is OR-ed across both sides.
func MergeFetchedNotifications(existing, fetched []models.Notification) []models.Notification {
	out := make([]models.Notification, 0, len(fetched)+len(existing))
	for _, n := range fetched {
		if indexOfNotification(out, n.ID) >= 0 {
			continue
		}
		if i := indexOfNotification(existing, n.ID); i >= 0 {
			n.IsRead = n.IsRead || existing[i].IsRead
		}
		out = append(out, n)
	}
	for _, n := range existing {
		if indexOfNotification(out, n.ID) < 0 {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func UnreadCount(seq []models.Notification) int {
	n := 0
	for _, x := range seq {
		if !x.IsRead {
			n++
		}
	}
	return n
}
