// Package eventsource maintains one live push channel per target and turns
// its frames into decoded events.
package eventsource

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/metrics"
)

const DefaultBackoff = 3 * time.Second

var (
	ErrNotConnected = apperr.Unavailable("event source not connected", nil)
	ErrClosed       = errors.New("event source closed")
)

type Options struct {
	// Name labels logs and metrics, e.g. "chat" or "user".
	Name    string
	Dialer  Dialer
	Clock   clock.Clock
	Backoff time.Duration
	Header  http.Header
	// Token, when set, is called before every dial and appended as ?token=.
	Token  func(ctx context.Context) (string, error)
	Logger *slog.Logger
}

// Source is a single websocket channel with automatic reconnection. Events
// are delivered to handlers on one goroutine, in receipt order.
type Source struct {
	url  string
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	state     State
	conn      Conn
	started   bool
	handlers  []func(events.Event)
	reconnect []func()
	cancel    context.CancelFunc

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func New(url string, opts Options) *Source {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Source{
		url:    url,
		opts:   opts,
		log:    logger.OrDiscard(opts.Logger).With("channel", opts.Name),
		state:  Disconnected,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// OnEvent registers a handler. Handlers added after Connect see only later
// events.
func (s *Source) OnEvent(h func(events.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// OnReconnect registers a hook run after every successful connection except
// the first. Events sent while disconnected are not replayed, so callers use
// this to re-fetch.
func (s *Source) OnReconnect(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnect = append(s.reconnect, fn)
}

func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the connection loop has exited.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Connect starts the connection loop and returns immediately. Cancelling ctx
// closes the source.
func (s *Source) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		select {
		case <-runCtx.Done():
			s.Close()
		case <-s.closed:
		}
	}()
	go s.run(runCtx)
	return nil
}

func (s *Source) run(ctx context.Context) {
	defer close(s.done)
	attempt := 0
	for {
		if !s.transition(Connecting) {
			return
		}
		attempt++
		conn, err := s.dial(ctx)
		if err != nil {
			s.log.Warn("dial_failed", "url", s.url, "attempt", attempt, "error", err)
		} else {
			if !s.attach(conn) {
				conn.Close()
				return
			}
			if attempt > 1 {
				metrics.Reconnects.WithLabelValues(s.opts.Name).Inc()
				s.log.Info("reconnected", "url", s.url, "attempt", attempt)
				for _, fn := range s.reconnectHooks() {
					fn()
				}
			}
			err = s.readLoop(conn)
			s.detach(conn)
			if s.State() == Closed {
				return
			}
			s.log.Info("channel_closed", "url", s.url, "error", err)
		}

		if !s.transition(Backoff) {
			return
		}
		select {
		case <-s.closed:
			return
		case <-s.opts.Clock.After(s.opts.Backoff):
		}
	}
}

func (s *Source) dial(ctx context.Context) (Conn, error) {
	target := s.url
	if s.opts.Token != nil {
		tok, err := s.opts.Token(ctx)
		if err != nil {
			return nil, err
		}
		if target, err = withToken(s.url, tok); err != nil {
			return nil, err
		}
	}
	return s.opts.Dialer.Dial(ctx, target, s.opts.Header)
}

func (s *Source) readLoop(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := events.Decode(data)
		if err != nil {
			metrics.EventsDropped.WithLabelValues(s.opts.Name, "malformed").Inc()
			s.log.Warn("event_dropped", "error", err, "bytes", len(data))
			continue
		}
		metrics.EventsReceived.WithLabelValues(s.opts.Name, string(ev.Type())).Inc()
		for _, h := range s.eventHandlers() {
			h(ev)
		}
	}
}

// transition moves to next unless the source is closed.
func (s *Source) transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	if s.state != next {
		s.log.Debug("source_state", "from", s.state.String(), "to", next.String())
	}
	s.state = next
	return true
}

func (s *Source) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.log.Debug("source_state", "from", s.state.String(), "to", Connected.String())
	s.conn = conn
	s.state = Connected
	return true
}

func (s *Source) detach(conn Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	closed := s.state == Closed
	if !closed {
		s.state = Disconnected
	}
	s.mu.Unlock()
	if !closed {
		conn.Close()
	}
}

func (s *Source) eventHandlers() []func(events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.handlers)
}

func (s *Source) reconnectHooks() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reconnect)
}

// Send writes a raw frame on the live connection.
func (s *Source) Send(frame []byte) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()
	if state != Connected || conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// SendEvent encodes ev and sends it.
func (s *Source) SendEvent(ev events.Event) error {
	data, err := events.Encode(ev)
	if err != nil {
		return err
	}
	return s.Send(data)
}

// Close shuts the channel down. It is safe to call more than once and from a
// handler; only the first call has any effect.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = Closed
		conn := s.conn
		s.conn = nil
		cancel := s.cancel
		started := s.started
		s.mu.Unlock()

		s.log.Debug("source_state", "from", prev.String(), "to", Closed.String())
		close(s.closed)
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			err = conn.Close()
		}
		if !started {
			close(s.done)
		}
	})
	return err
}
