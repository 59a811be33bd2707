// Package session wires the client together. An App is built once with New
// and owns the stores, the backend client and every open live view.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/backend"
	"github.com/Vasu1712/chatsync/internal/bg"
	"github.com/Vasu1712/chatsync/internal/cache"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/config"
	"github.com/Vasu1712/chatsync/internal/eventsource"
	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/reconciler"
	"github.com/Vasu1712/chatsync/internal/storage"
)

type Options struct {
	Config     *config.Config
	Logger     *slog.Logger
	KV         storage.KV // defaults to an in-memory store
	HTTPClient *http.Client
	Dialer     eventsource.Dialer
	Clock      clock.Clock
	Runner     bg.Runner
	Alerter    reconciler.Alerter
}

type App struct {
	cfg     *config.Config
	log     *slog.Logger
	clock   clock.Clock
	runner  bg.Runner
	dialer  eventsource.Dialer
	alerter reconciler.Alerter
	wsBase  string

	Backend  *backend.Client
	Tokens   *auth.TokenStore
	KV       storage.KV
	Settings *storage.Settings

	Messages      *cache.Store[models.Message]
	Notifications *cache.Store[models.Notification]
	Typing        *cache.Store[models.TypingEntry]
	Presence      *cache.Store[models.Presence]
	Conversations *cache.Store[models.Conversation]

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	views  map[view]struct{}
	closed bool
}

type view interface {
	Close() error
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	wsBase := cfg.Client.WebsocketURL
	if wsBase == "" {
		var err error
		if wsBase, err = eventsource.WebsocketBase(cfg.Client.BaseURL); err != nil {
			return nil, err
		}
	}
	if opts.KV == nil {
		opts.KV = storage.NewMemoryKV()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Runner == nil {
		opts.Runner = bg.Async{}
	}
	if opts.Dialer == nil {
		opts.Dialer = eventsource.WebsocketDialer{}
	}
	log := logger.OrDiscard(opts.Logger)

	client := backend.New(cfg.Client.BaseURL, backend.Options{
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.Client.RequestTimeout.Duration(),
		Logger:     log,
	})
	tokens := auth.NewTokenStore(opts.KV, client.RefreshToken, opts.Clock, log)
	client.SetTokens(tokens)

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      cfg,
		log:      log,
		clock:    opts.Clock,
		runner:   opts.Runner,
		dialer:   opts.Dialer,
		alerter:  opts.Alerter,
		wsBase:   wsBase,
		Backend:  client,
		Tokens:   tokens,
		KV:       opts.KV,
		Settings: storage.NewSettings(opts.KV),
		ctx:      ctx,
		cancel:   cancel,
		views:    make(map[view]struct{}),
	}

	ttl := cfg.Sync.CacheTTL.Duration()
	a.Messages = cache.New(cache.Options[models.Message]{
		Name:  "messages",
		TTL:   ttl,
		Clock: opts.Clock,
		Merge: reconciler.MergeFetched,
		Fetch: func(ctx context.Context, key cache.Key) ([]models.Message, error) {
			return client.ListMessages(ctx, key[1], "")
		},
	})
	a.Notifications = cache.New(cache.Options[models.Notification]{
		Name:  "notifications",
		TTL:   ttl,
		Clock: opts.Clock,
		Merge: reconciler.MergeFetchedNotifications,
		Fetch: func(ctx context.Context, _ cache.Key) ([]models.Notification, error) {
			return client.ListNotifications(ctx)
		},
	})
	a.Conversations = cache.New(cache.Options[models.Conversation]{
		Name:  "conversations",
		TTL:   ttl,
		Clock: opts.Clock,
		Fetch: func(ctx context.Context, _ cache.Key) ([]models.Conversation, error) {
			return client.ListConversations(ctx)
		},
	})
	a.Typing = cache.New(cache.Options[models.TypingEntry]{Name: "typing", Clock: opts.Clock})
	a.Presence = cache.New(cache.Options[models.Presence]{Name: "presence", Clock: opts.Clock})
	return a, nil
}

func (a *App) Config() *config.Config { return a.cfg }

// Reconciler builds the event router for the signed-in user.
func (a *App) Reconciler(selfID string) *reconciler.Reconciler {
	return reconciler.New(reconciler.Stores{
		Messages:      a.Messages,
		Typing:        a.Typing,
		Notifications: a.Notifications,
		Presence:      a.Presence,
		Conversations: a.Conversations,
	}, reconciler.Options{
		SelfID:       selfID,
		TypingExpiry: a.cfg.Sync.TypingExpiry.Duration(),
		Clock:        a.clock,
		Alerter:      a.alerter,
		Logger:       a.log,
	})
}

func (a *App) source(url, name string) *eventsource.Source {
	return eventsource.New(url, eventsource.Options{
		Name:    name,
		Dialer:  a.dialer,
		Clock:   a.clock,
		Backoff: a.cfg.Sync.ReconnectBackoff.Duration(),
		Token:   a.Tokens.AccessToken,
		Logger:  a.log,
	})
}

// requestContext bounds background calls that must outlive the view that
// started them.
func (a *App) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.Client.RequestTimeout.Duration())
}

func (a *App) track(v view) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return apperr.Unavailable("session closed", nil)
	}
	a.views[v] = struct{}{}
	return nil
}

func (a *App) untrack(v view) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.views, v)
}

// Close shuts every open view and the local store.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	views := make([]view, 0, len(a.views))
	for v := range a.views {
		views = append(views, v)
	}
	a.mu.Unlock()

	var errs []error
	for _, v := range views {
		errs = append(errs, v.Close())
	}
	a.cancel()
	errs = append(errs, a.KV.Close())
	return errors.Join(errs...)
}

func (a *App) self() (auth.Session, error) {
	return a.Tokens.Load()
}

func (a *App) Login(ctx context.Context, req backend.LoginRequest) (auth.Session, error) {
	sess, err := a.Backend.Login(ctx, req)
	if err != nil {
		return auth.Session{}, err
	}
	if err := a.Tokens.Save(sess); err != nil {
		return auth.Session{}, err
	}
	a.log.Info("signed_in", "user_id", sess.UserID, "username", sess.Username)
	return sess, nil
}

func (a *App) Register(ctx context.Context, req backend.RegisterRequest) (auth.Session, error) {
	sess, err := a.Backend.Register(ctx, req)
	if err != nil {
		return auth.Session{}, err
	}
	if err := a.Tokens.Save(sess); err != nil {
		return auth.Session{}, err
	}
	a.log.Info("registered", "user_id", sess.UserID, "username", sess.Username)
	return sess, nil
}

// Logout blacklists the refresh token when the backend is reachable and
// always forgets the local session and the signed-in user's cached lists.
func (a *App) Logout(ctx context.Context) error {
	sess, err := a.self()
	if err != nil {
		return nil
	}
	if err := a.Backend.Logout(ctx, sess.Refresh); err != nil {
		a.log.Warn("logout_failed", "user_id", sess.UserID, "error", err)
	}
	a.Notifications.Delete(reconciler.NotificationsKey)
	a.Conversations.Delete(reconciler.ConversationsKey)
	a.Presence.Delete(reconciler.PresenceKey)
	return a.Tokens.Clear()
}

func (a *App) CurrentUser() (auth.Session, error) {
	return a.self()
}

func (a *App) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return a.Conversations.Get(ctx, reconciler.ConversationsKey)
}

// StartConversation opens (or finds) the direct conversation with userID and
// adds it to the cached list.
func (a *App) StartConversation(ctx context.Context, userID string) (models.Conversation, error) {
	conv, err := a.Backend.StartConversation(ctx, userID)
	if err != nil {
		return models.Conversation{}, err
	}
	a.Conversations.Invalidate(reconciler.ConversationsKey)
	return conv, nil
}

func (a *App) Thread(ctx context.Context, conversationID, parentID string) ([]models.Message, error) {
	return a.Backend.ListMessages(ctx, conversationID, parentID)
}

func (a *App) Search(ctx context.Context, q backend.SearchQuery) ([]models.Message, error) {
	return a.Backend.SearchMessages(ctx, q)
}

func (a *App) Forward(ctx context.Context, messageID, toConversationID string) (models.Message, error) {
	msg, err := a.Backend.ForwardMessage(ctx, messageID, toConversationID)
	if err != nil {
		return models.Message{}, err
	}
	a.Messages.Invalidate(reconciler.MessagesKey(toConversationID))
	return msg, nil
}

func (a *App) UnreadCounts(ctx context.Context) (map[string]int, error) {
	return a.Backend.UnreadCounts(ctx)
}
