// Package cache is the client's keyed request cache. Each key holds an ordered
// list; writers pass pure updaters that run under the key's lock.
package cache

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/metrics"
)

// Key is a composite cache key such as {"messages", "c1"}.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// Fetcher loads the authoritative list for a key.
type Fetcher[T any] func(ctx context.Context, key Key) ([]T, error)

// Merge combines a cached list with a freshly fetched one. existing is nil
// when the key was absent.
type Merge[T any] func(existing, fetched []T) []T

// Replace is the default Merge: the fetched list wins outright.
func Replace[T any](_, fetched []T) []T { return fetched }

type Options[T any] struct {
	Name  string
	Fetch Fetcher[T]
	Merge Merge[T]
	// TTL marks entries stale this long after a fetch. Zero keeps them fresh
	// until invalidated.
	TTL   time.Duration
	Clock clock.Clock
}

type entry[T any] struct {
	mu       sync.Mutex
	items    []T
	present  bool
	stale    bool
	staleAt  time.Time
	watchers map[int]chan struct{}
	nextID   int
}

type Store[T any] struct {
	opts Options[T]

	mu      sync.Mutex
	entries map[string]*entry[T]
}

func New[T any](opts Options[T]) *Store[T] {
	if opts.Merge == nil {
		opts.Merge = Replace[T]
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Store[T]{opts: opts, entries: make(map[string]*entry[T])}
}

func (s *Store[T]) entry(key Key) *entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	e, ok := s.entries[k]
	if !ok {
		e = &entry[T]{watchers: make(map[int]chan struct{})}
		s.entries[k] = e
	}
	return e
}

// Read returns a copy of the cached list and whether the key is present.
func (s *Store[T]) Read(key Key) ([]T, bool) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.items), e.present
}

// Write applies updater to the current list under the key's lock and stores
// the result. Concurrent writers to the same key are serialised.
func (s *Store[T]) Write(key Key, updater func([]T) []T) []T {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = updater(slices.Clone(e.items))
	e.present = true
	metrics.CacheWrites.WithLabelValues(s.opts.Name).Inc()
	e.notify()
	return slices.Clone(e.items)
}

// Invalidate marks the key stale so the next Get fetches.
func (s *Store[T]) Invalidate(key Key) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stale = true
}

// Delete drops the key's list. Watchers stay registered.
func (s *Store[T]) Delete(key Key) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	e.present = false
	e.stale = false
	e.notify()
}

// Get returns the cached list, fetching first when the key is absent, stale
// or past its TTL. The fetch runs without the key's lock held so writes from
// the live channel are not blocked; its result is merged with whatever the
// key holds when it completes.
func (s *Store[T]) Get(ctx context.Context, key Key) ([]T, error) {
	e := s.entry(key)
	e.mu.Lock()
	fresh := e.present && !e.stale && (e.staleAt.IsZero() || s.opts.Clock.Now().Before(e.staleAt))
	if fresh || s.opts.Fetch == nil {
		items := slices.Clone(e.items)
		e.mu.Unlock()
		return items, nil
	}
	e.mu.Unlock()

	fetched, err := s.opts.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var existing []T
	if e.present {
		existing = slices.Clone(e.items)
	}
	e.items = s.opts.Merge(existing, fetched)
	e.present = true
	e.stale = false
	if s.opts.TTL > 0 {
		e.staleAt = s.opts.Clock.Now().Add(s.opts.TTL)
	}
	metrics.CacheWrites.WithLabelValues(s.opts.Name).Inc()
	e.notify()
	return slices.Clone(e.items), nil
}

// Watch returns a channel that receives after every change to key. Signals
// coalesce: a slow reader sees one pending signal, then reads the latest list.
func (s *Store[T]) Watch(key Key) (<-chan struct{}, func()) {
	e := s.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	ch := make(chan struct{}, 1)
	e.watchers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.watchers, id)
		})
	}
}

func (e *entry[T]) notify() {
	for _, ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
