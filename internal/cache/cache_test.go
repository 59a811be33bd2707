package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/clock"
)

func appendUpdater(v int) func([]int) []int {
	return func(s []int) []int { return append(s, v) }
}

func TestReadWrite(t *testing.T) {
	s := New[int](Options[int]{})
	key := Key{"messages", "c1"}

	_, ok := s.Read(key)
	assert.False(t, ok)

	got := s.Write(key, appendUpdater(1))
	assert.Equal(t, []int{1}, got)

	got[0] = 99
	items, ok := s.Read(key)
	require.True(t, ok)
	assert.Equal(t, []int{1}, items)
	assert.Equal(t, "messages/c1", key.String())
}

func TestWriteIsAtomicPerKey(t *testing.T) {
	s := New[int](Options[int]{})
	key := Key{"k"}
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Write(key, appendUpdater(v))
		}(i)
	}
	wg.Wait()
	items, _ := s.Read(key)
	assert.Len(t, items, 200)
}

func TestGetReadThrough(t *testing.T) {
	var calls int
	s := New[int](Options[int]{
		Fetch: func(_ context.Context, _ Key) ([]int, error) {
			calls++
			return []int{1, 2}, nil
		},
		Merge: func(existing, fetched []int) []int { return append(fetched, existing...) },
	})
	key := Key{"k"}

	items, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, items)

	_, err = s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	s.Write(key, func(_ []int) []int { return []int{7} })
	s.Invalidate(key)
	items, err = s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1, 2, 7}, items)
}

func TestGetHonoursTTL(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	var calls int
	s := New[string](Options[string]{
		TTL:   30 * time.Second,
		Clock: clk,
		Fetch: func(context.Context, Key) ([]string, error) {
			calls++
			return []string{"a"}, nil
		},
	})
	key := Key{"k"}
	_, _ = s.Get(context.Background(), key)
	clk.Advance(29 * time.Second)
	_, _ = s.Get(context.Background(), key)
	assert.Equal(t, 1, calls)
	clk.Advance(time.Second)
	_, _ = s.Get(context.Background(), key)
	assert.Equal(t, 2, calls)
}

func TestGetFetchError(t *testing.T) {
	boom := errors.New("backend down")
	s := New[int](Options[int]{Fetch: func(context.Context, Key) ([]int, error) { return nil, boom }})
	_, err := s.Get(context.Background(), Key{"k"})
	assert.ErrorIs(t, err, boom)
	_, ok := s.Read(Key{"k"})
	assert.False(t, ok)
}

func TestWatchCoalesces(t *testing.T) {
	s := New[int](Options[int]{})
	key := Key{"k"}
	ch, cancel := s.Watch(key)

	s.Write(key, appendUpdater(1))
	s.Write(key, appendUpdater(2))
	s.Write(Key{"other"}, appendUpdater(3))

	select {
	case <-ch:
	default:
		t.Fatal("expected a signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}

	cancel()
	cancel()
	s.Write(key, appendUpdater(4))
	select {
	case <-ch:
		t.Fatal("cancelled watcher signalled")
	default:
	}
}

func TestDelete(t *testing.T) {
	s := New[int](Options[int]{})
	key := Key{"typing", "c1"}
	s.Write(key, appendUpdater(1))
	s.Delete(key)
	_, ok := s.Read(key)
	assert.False(t, ok)
}
