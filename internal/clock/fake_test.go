package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAfter(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(3 * time.Second)
	require.Equal(t, 1, f.Waiters())

	f.Advance(2999 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	f.Advance(time.Millisecond)
	select {
	case at := <-ch:
		assert.Equal(t, start.Add(3*time.Second), at)
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	assert.Equal(t, 0, f.Waiters())
}

func TestFakeTicker(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)

	f.Advance(time.Second)
	<-tk.C()
	f.Advance(time.Second)
	<-tk.C()

	tk.Stop()
	assert.Equal(t, 0, f.Waiters())
}

func TestFakeBlockUntil(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		f.BlockUntil(1)
		close(done)
	}()
	f.After(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BlockUntil did not observe the new timer")
	}
}
