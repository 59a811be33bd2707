package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/models"
)

func note(id string, at time.Time) models.Notification {
	return models.Notification{ID: id, Type: models.NotificationMessage, CreatedAt: at}
}

func noteIDs(seq []models.Notification) []string {
	out := make([]string, 0, len(seq))
	for _, n := range seq {
		out = append(out, n.ID)
	}
	return out
}

func TestApplyNotificationMostRecentFirst(t *testing.T) {
	seq, added := ApplyNotification(nil, note("n1", t0))
	require.True(t, added)
	seq, added = ApplyNotification(seq, note("n2", t0.Add(time.Second)))
	require.True(t, added)
	assert.Equal(t, []string{"n2", "n1"}, noteIDs(seq))

	again, added := ApplyNotification(seq, note("n1", t0))
	assert.False(t, added)
	assert.Equal(t, seq, again)
}

func TestNotificationReadIsMonotonic(t *testing.T) {
	seq, _ := ApplyNotification(nil, note("n1", t0))
	seq = MarkNotificationRead(seq, "n1")

	seq, _ = ApplyNotification(seq, note("n1", t0))
	assert.True(t, seq[0].IsRead)

	seq = MergeFetchedNotifications(seq, []models.Notification{note("n1", t0)})
	assert.True(t, seq[0].IsRead)
	assert.Equal(t, 0, UnreadCount(seq))
}

func TestMarkAllAndRevert(t *testing.T) {
	seq, _ := ApplyNotification(nil, note("n1", t0))
	seq, _ = ApplyNotification(seq, note("n2", t0))

	all := MarkAllNotificationsRead(seq)
	assert.Equal(t, 0, UnreadCount(all))
	assert.Equal(t, 2, UnreadCount(seq))

	reverted := RevertNotificationRead(all, "n2")
	assert.Equal(t, 1, UnreadCount(reverted))
	assert.False(t, reverted[0].IsRead)
}

func TestMergeFetchedNotificationsKeepsLiveEntries(t *testing.T) {
	live, _ := ApplyNotification(nil, note("n3", t0.Add(3*time.Second)))
	fetched := []models.Notification{note("n2", t0.Add(2*time.Second)), note("n1", t0)}
	out := MergeFetchedNotifications(live, fetched)
	assert.Equal(t, []string{"n3", "n2", "n1"}, noteIDs(out))
}
