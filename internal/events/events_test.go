package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
)

func TestDecodeMessage(t *testing.T) {
	raw := `{"type":"message","message_id":"m-42","message":"hello","sender_id":7,
		"timestamp":"2024-05-01T12:00:00.123456+00:00","attachment":null,"reply_to":null,"client_id":"tmp-1"}`

	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	msg, ok := ev.(Message)
	require.True(t, ok)
	assert.Equal(t, TypeMessage, msg.Type())
	assert.Equal(t, "m-42", msg.ID)
	assert.Equal(t, "7", msg.SenderID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "tmp-1", msg.TempID)
	assert.Equal(t, models.StatusSent, msg.Status)
	assert.Empty(t, msg.ReplyToID)
	assert.Equal(t, 2024, msg.Timestamp.Year())
}

func TestDecodeAttachmentOnlyMessage(t *testing.T) {
	raw := `{"type":"message","message_id":1,"message":"","sender_id":"u1","timestamp":"2024-05-01T12:00:00","attachment":"/media/a.png"}`
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "/media/a.png", ev.(Message).Attachment)
	assert.Equal(t, "1", ev.(Message).ID)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]struct {
		raw     string
		unknown bool
	}{
		"not json":           {raw: `{`},
		"no type":            {raw: `{"user_id":"u1"}`},
		"unknown type":       {raw: `{"type":"wave"}`, unknown: true},
		"message without id": {raw: `{"type":"message","message":"hi","sender_id":"u1","timestamp":"2024-05-01T12:00:00Z"}`},
		"empty message":      {raw: `{"type":"message","message_id":"m1","message":"","sender_id":"u1","timestamp":"2024-05-01T12:00:00Z"}`},
		"typing no flag":     {raw: `{"type":"typing","user_id":"u1"}`},
		"receipt no message": {raw: `{"type":"read_receipt","user_id":"u1"}`},
		"notification no id": {raw: `{"type":"notification","notification_type":"message","timestamp":"2024-05-01T12:00:00Z"}`},
		"presence no online": {raw: `{"type":"presence","user_id":"u1"}`},
		"online no users":    {raw: `{"type":"online_users"}`},
		"outbound only type": {raw: `{"type":"get_online_users"}`, unknown: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.raw))
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.Equal(t, apperr.CodeMalformed, apperr.CodeOf(err))
			if tc.unknown {
				assert.ErrorIs(t, err, ErrUnknownType)
			}
		})
	}
}

func TestDecodeUserChannel(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"notification","notification_id":12,"notification_type":"poke",
		"message":"hi","from_user":"ana","timestamp":"2024-05-01T12:00:00Z","data":{"conversation_id":3}}`))
	require.NoError(t, err)
	n := ev.(Notification)
	assert.Equal(t, "12", n.ID)
	assert.Equal(t, models.NotificationOther, n.Notification.Type)
	assert.Equal(t, "3", n.RelatedConversationID)
	assert.False(t, n.IsRead)

	ev, err = Decode([]byte(`{"type":"presence","user_id":"u2","online":false,"last_seen":"2024-05-01T12:00:00Z"}`))
	require.NoError(t, err)
	p := ev.(Presence)
	assert.False(t, p.Online)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), p.LastSeen)

	ev, err = Decode([]byte(`{"type":"online_users","users":[1,"u2"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "u2"}, ev.(OnlineUsers).UserIDs)
}

func TestEncodeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := Message{Message: models.Message{ID: "m1", TempID: "tmp-1", SenderID: "u1", Content: "hello", Timestamp: ts}}
	data, err := Encode(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"client_id":"tmp-1"`)

	out, err := Decode(data)
	require.NoError(t, err)
	got := out.(Message)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "tmp-1", got.TempID)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestDecodeOutbound(t *testing.T) {
	data, err := Encode(Typing{UserID: "u1", IsTyping: false})
	require.NoError(t, err)
	ev, err := DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, Typing{UserID: "u1", IsTyping: false}, ev)

	data, err = Encode(GetOnlineUsers{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"get_online_users"}`, string(data))
	ev, err = DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, TypeGetOnlineUsers, ev.Type())

	_, err = DecodeOutbound([]byte(`{"type":"notification"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-05-01T12:00:00Z", "2024-05-01T12:00:00.5", "1714564800"} {
		_, err := ParseTime(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}
