package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Vasu1712/chatsync/internal/models"
)

func TestPresence(t *testing.T) {
	seq := ReplaceOnline(nil, []string{"u1", "u2"})
	assert.Equal(t, []string{"u1", "u2"}, OnlineUserIDs(seq))

	seq = ApplyPresence(seq, models.Presence{UserID: "u1", Online: false, LastSeen: t0})
	assert.Equal(t, []string{"u2"}, OnlineUserIDs(seq))

	seq = ApplyPresence(seq, models.Presence{UserID: "u3", Online: true})
	seq = ReplaceOnline(seq, []string{"u3"})
	assert.Equal(t, []string{"u3"}, OnlineUserIDs(seq))
	assert.Equal(t, t0, seq[0].LastSeen)
}

func TestApplyLastMessage(t *testing.T) {
	convs := []models.Conversation{{ID: "c1"}, {ID: "c2"}}
	msg := sent("m1", "u2", "hi")
	msg.ConversationID = "c2"
	msg.Timestamp = t0.Add(time.Minute)

	out := ApplyLastMessage(convs, msg, "me")
	assert.Equal(t, "c2", out[0].ID)
	assert.Equal(t, 1, out[0].UnreadCount)
	assert.Equal(t, "m1", out[0].LastMessage.ID)
	assert.Nil(t, convs[1].LastMessage)

	out = ApplyLastMessage(out, msg, "me")
	assert.Equal(t, 1, out[0].UnreadCount)

	out = ClearUnread(out, "c2")
	assert.Equal(t, 0, out[0].UnreadCount)
}
