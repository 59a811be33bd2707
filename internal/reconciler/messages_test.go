package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/models"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sent(id, sender, content string) models.Message {
	return models.Message{ID: id, SenderID: sender, Content: content, Timestamp: t0, Status: models.StatusSent}
}

func optimistic(tempID, sender, content string) models.Message {
	return models.Message{TempID: tempID, SenderID: sender, Content: content}
}

func ids(seq []models.Message) []string {
	out := make([]string, 0, len(seq))
	for _, m := range seq {
		out = append(out, m.ID)
	}
	return out
}

func TestApplyMessageIsIdempotent(t *testing.T) {
	seq := []models.Message{sent("m1", "u1", "a")}
	once := ApplyMessage(seq, sent("m2", "u2", "b"))
	twice := ApplyMessage(once, sent("m2", "u2", "b"))
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"m1", "m2"}, ids(twice))
}

func TestApplyMessageDoesNotMutateInput(t *testing.T) {
	seq := []models.Message{sent("m1", "u1", "a")}
	seq = AddOptimistic(seq, optimistic("tmp-1", "me", "hello"))
	before := append([]models.Message(nil), seq...)

	_ = ApplyMessage(seq, sent("m-42", "me", "hello"))
	_ = ApplyReadReceipt(seq, "m1", "u9")
	assert.Equal(t, before, seq)
	assert.Empty(t, seq[0].ReadBy)
}

func TestOptimisticConvergesAtSameIndex(t *testing.T) {
	seq := []models.Message{sent("m1", "u1", "first")}
	seq = AddOptimistic(seq, optimistic("tmp-1", "me", "hello"))
	require.Equal(t, []string{"m1", "tmp-1"}, ids(seq))
	assert.Equal(t, models.StatusPending, seq[1].Status)

	seq = ApplyMessage(seq, sent("m2", "u2", "interleaved"))
	seq = ApplyMessage(seq, sent("m-42", "me", "hello"))

	assert.Equal(t, []string{"m1", "m-42", "m2"}, ids(seq))
	assert.Equal(t, models.StatusSent, seq[1].Status)
	assert.Equal(t, "tmp-1", seq[1].TempID)
	assert.Equal(t, "hello", seq[1].Content)
}

func TestEchoedClientIDWinsOverPayload(t *testing.T) {
	seq := AddOptimistic(nil, optimistic("tmp-1", "me", "ok"))
	seq = AddOptimistic(seq, optimistic("tmp-2", "me", "ok"))

	echo := sent("m-2", "me", "ok")
	echo.TempID = "tmp-2"
	seq = ApplyMessage(seq, echo)
	assert.Equal(t, []string{"tmp-1", "m-2"}, ids(seq))
	assert.True(t, seq[0].Pending())
}

func TestConfirmSendThenBroadcast(t *testing.T) {
	seq := AddOptimistic(nil, optimistic("tmp-1", "me", "hello"))
	seq = ConfirmSend(seq, "tmp-1", sent("m-42", "me", "hello"))
	seq = ApplyMessage(seq, sent("m-42", "me", "hello"))
	assert.Equal(t, []string{"m-42"}, ids(seq))
	assert.Equal(t, models.StatusSent, seq[0].Status)
}

func TestBroadcastThenConfirmSend(t *testing.T) {
	seq := AddOptimistic(nil, optimistic("tmp-1", "me", "hello"))
	seq = ApplyMessage(seq, sent("m-42", "me", "hello"))
	seq = ConfirmSend(seq, "tmp-1", sent("m-42", "me", "hello"))
	assert.Equal(t, []string{"m-42"}, ids(seq))
}

func TestConfirmedWinsOverLeftoverTemp(t *testing.T) {
	seq := AddOptimistic(nil, optimistic("tmp-1", "me", "hello"))
	// broadcast without echo and with a payload the server normalised
	seq = ApplyMessage(seq, sent("m-42", "me", "hello "))
	require.Equal(t, []string{"tmp-1", "m-42"}, ids(seq))

	seq = ConfirmSend(seq, "tmp-1", sent("m-42", "me", "hello "))
	assert.Equal(t, []string{"m-42"}, ids(seq))
}

func TestFailSend(t *testing.T) {
	seq := AddOptimistic(nil, optimistic("tmp-1", "me", "hello"))
	seq = FailSend(seq, "tmp-1")
	assert.Equal(t, models.StatusFailed, seq[0].Status)
	assert.Equal(t, 0, PendingCount(seq))

	// a failed entry is no longer matched by payload
	seq = ApplyMessage(seq, sent("m-1", "me", "hello"))
	assert.Equal(t, []string{"tmp-1", "m-1"}, ids(seq))
}

func TestApplyReadReceipt(t *testing.T) {
	seq := []models.Message{sent("m1", "u1", "a")}
	seq = ApplyReadReceipt(seq, "m1", "u2")
	seq = ApplyReadReceipt(seq, "m1", "u2")
	seq = ApplyReadReceipt(seq, "missing", "u2")
	assert.Equal(t, []string{"u2"}, seq[0].ReadBy)
}

func TestMergeFetchedKeepsPendingAtTail(t *testing.T) {
	existing := []models.Message{sent("m1", "u1", "a")}
	existing = ApplyReadReceipt(existing, "m1", "u3")
	existing = AddOptimistic(existing, optimistic("tmp-1", "me", "draft"))

	fetched := []models.Message{sent("m0", "u2", "older"), sent("m1", "u1", "a"), sent("m1", "u1", "a")}
	out := MergeFetched(existing, fetched)

	assert.Equal(t, []string{"m0", "m1", "tmp-1"}, ids(out))
	assert.Equal(t, []string{"u3"}, out[1].ReadBy)
	assert.True(t, out[2].Pending())
}

func TestMergeFetchedDropsPendingWithEchoedCopy(t *testing.T) {
	existing := AddOptimistic(nil, optimistic("tmp-1", "me", "hello"))
	existing = AddOptimistic(existing, optimistic("tmp-2", "me", "still going"))

	echoed := sent("m-42", "me", "hello")
	echoed.TempID = "tmp-1"
	out := MergeFetched(existing, []models.Message{echoed})

	assert.Equal(t, []string{"m-42", "tmp-2"}, ids(out))
	assert.Equal(t, "tmp-1", out[0].TempID)
	assert.False(t, out[0].Pending())
	assert.True(t, out[1].Pending())
}
