package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingExpiresAtThreshold(t *testing.T) {
	seq := ApplyTyping(nil, "u1", true, t0)

	early := SweepTyping(seq, t0.Add(2999*time.Millisecond), DefaultTypingExpiry)
	assert.True(t, early[0].IsTyping)
	assert.False(t, TypingExpired(seq, t0.Add(2999*time.Millisecond), DefaultTypingExpiry))

	due := SweepTyping(seq, t0.Add(3000*time.Millisecond), DefaultTypingExpiry)
	assert.False(t, due[0].IsTyping)
	assert.Len(t, due, 1)
	assert.True(t, seq[0].IsTyping)
}

func TestTypingRefreshExtends(t *testing.T) {
	seq := ApplyTyping(nil, "u1", true, t0)
	seq = ApplyTyping(seq, "u2", true, t0)
	seq = ApplyTyping(seq, "u1", true, t0.Add(2*time.Second))

	out := SweepTyping(seq, t0.Add(3*time.Second), DefaultTypingExpiry)
	assert.Equal(t, []string{"u1"}, TypingUsers(out))
	assert.Len(t, out, 2)
}

func TestTypingStop(t *testing.T) {
	seq := ApplyTyping(nil, "u1", true, t0)
	seq = ApplyTyping(seq, "u1", false, t0.Add(time.Second))
	assert.Empty(t, TypingUsers(seq))
	assert.False(t, TypingExpired(seq, t0.Add(time.Hour), DefaultTypingExpiry))
}
