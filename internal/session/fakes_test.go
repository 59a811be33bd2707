package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/config"
	"github.com/Vasu1712/chatsync/internal/eventsource"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/reconciler"
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []string
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(frame string) { c.frames <- []byte(frame) }

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type fakeDialer struct {
	conns chan *fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, _ string, _ http.Header) (eventsource.Conn, error) {
	c := &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no dial")
		return nil
	}
}

// queueRunner holds background work until the test runs it.
type queueRunner struct {
	mu  sync.Mutex
	fns []func()
}

func (q *queueRunner) Do(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fns = append(q.fns, fn)
}

func (q *queueRunner) runAll() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// fakeBackend serves the subset of the REST contract the session uses.
type fakeBackend struct {
	mu            sync.Mutex
	requests      []string
	failSend      bool
	failMarkRead  map[string]bool
	messages      []map[string]any
	notifications []map[string]any
	nextID        int
}

func (b *fakeBackend) count(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/api/")
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "chat/conversations/") && strings.HasSuffix(path, "/messages/"):
		json.NewEncoder(w).Encode(map[string]any{"count": len(b.messages), "results": b.messages})
	case r.Method == http.MethodGet && path == "chat/conversations/":
		json.NewEncoder(w).Encode([]any{})
	case r.Method == http.MethodPost && path == "chat/messages/":
		if b.failSend {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		b.nextID++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":           fmt.Sprintf("m-%d", 41+b.nextID),
			"conversation": in["conversation_id"],
			"sender":       map[string]any{"id": "me", "username": "me"},
			"content":      in["content"],
			"timestamp":    "2024-05-01T12:00:00Z",
		})
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/mark_read/") && strings.HasPrefix(path, "chat/messages/"):
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	case r.Method == http.MethodGet && path == "chat/notifications/":
		json.NewEncoder(w).Encode(b.notifications)
	case r.Method == http.MethodPost && path == "chat/notifications/mark_all_read/":
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "marked_read": 1})
	case r.Method == http.MethodPost && strings.HasPrefix(path, "chat/notifications/"):
		id := strings.Split(strings.TrimPrefix(path, "chat/notifications/"), "/")[0]
		if b.failMarkRead[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type harness struct {
	app     *App
	clk     *clock.Fake
	dialer  *fakeDialer
	runner  *queueRunner
	backend *fakeBackend
	alerts  chan models.Notification
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clk:     clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		dialer:  &fakeDialer{conns: make(chan *fakeConn, 8)},
		runner:  &queueRunner{},
		backend: &fakeBackend{failMarkRead: map[string]bool{}},
		alerts:  make(chan models.Notification, 8),
	}
	srv := httptest.NewServer(h.backend)
	t.Cleanup(srv.Close)

	app, err := New(Options{
		Config:  &config.Config{Client: config.ClientConfig{BaseURL: srv.URL + "/api"}},
		Dialer:  h.dialer,
		Clock:   h.clk,
		Runner:  h.runner,
		Alerter: reconciler.AlertFunc(func(n models.Notification) { h.alerts <- n }),
	})
	require.NoError(t, err)
	require.NoError(t, app.Tokens.Save(auth.Session{Access: "tok", Refresh: "ref", UserID: "me", Username: "me"}))
	t.Cleanup(func() { app.Close() })
	h.app = app
	return h
}
