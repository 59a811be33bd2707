// Package relay assembles the development relay: an in-memory implementation
// of the chat backend's REST and websocket contract.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vasu1712/chatsync/internal/api"
	"github.com/Vasu1712/chatsync/internal/api/accounts"
	"github.com/Vasu1712/chatsync/internal/api/chat"
	"github.com/Vasu1712/chatsync/internal/api/presence"
	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/config"
	"github.com/Vasu1712/chatsync/internal/events"
	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/metrics"
	"github.com/Vasu1712/chatsync/internal/middleware"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/storage/memory"
	"github.com/Vasu1712/chatsync/internal/ws"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg       config.RelayConfig
	log       *slog.Logger
	clock     clock.Clock
	backplane ws.Backplane
	handler   http.Handler

	Hub    *ws.Hub
	Chat   *memory.ChatStore
	Users  *memory.UserStore
	Issuer *auth.Issuer
}

type Options struct {
	Logger *slog.Logger
	Clock  clock.Clock
	// Backplane overrides the one built from cfg.Valkey.
	Backplane ws.Backplane
}

// New builds the relay. A valkey backplane is dialled when
// cfg.Valkey.Address is set.
func New(cfg config.RelayConfig, opts Options) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		log:       logger.OrDiscard(opts.Logger),
		clock:     opts.Clock,
		backplane: opts.Backplane,
		Chat:      memory.NewChatStore(opts.Clock),
		Users:     memory.NewUserStore(),
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.backplane == nil && cfg.Valkey.Address != "" {
		bp, err := ws.NewValkeyBackplane(cfg.Valkey.Address, cfg.Valkey.Prefix)
		if err != nil {
			return nil, err
		}
		s.backplane = bp
		s.log.Info("backplane_connected", "address", cfg.Valkey.Address, "prefix", cfg.Valkey.Prefix)
	}
	s.Hub = ws.NewHub(ws.Options{Backplane: s.backplane, Presence: s.presenceFrame, Logger: s.log})
	s.Issuer = auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL.Duration(), cfg.RefreshTTL.Duration(), s.clock)
	s.handler = s.routes()
	return s, nil
}

// presenceFrame renders a presence change and stamps last_seen on the user
// going offline.
func (s *Server) presenceFrame(userID string, online bool) []byte {
	p := models.Presence{UserID: userID, Online: online}
	if !online {
		p.LastSeen = s.clock.Now().UTC()
		_, _ = s.Users.Update(userID, func(u *models.User) { u.LastSeen = p.LastSeen })
	}
	frame, err := events.Encode(events.Presence{Presence: p})
	if err != nil {
		s.log.Error("encode_failed", "type", "presence", "error", err)
	}
	return frame
}

func (s *Server) routes() http.Handler {
	requireUser := middleware.RequireUser(s.Issuer, api.WriteError)

	acc := &accounts.Handler{Users: s.Users, Issuer: s.Issuer, Presence: s.Hub, Log: s.log}
	ch := &chat.Handler{Chat: s.Chat, Users: s.Users, Hub: s.Hub, MaxUploadSize: s.cfg.MaxUploadSize.Int64(), Log: s.log}
	pr := &presence.Handler{Chat: s.Chat, Hub: s.Hub, AllowedOrigins: s.cfg.AllowedOrigins, Log: s.log}

	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Methods(http.MethodGet).Path("/metrics").Handler(metrics.Handler())
	chat.RegisterMedia(r, ch)

	apiRouter := r.PathPrefix("/api").Subrouter()
	accounts.RegisterPublicRoutes(apiRouter, acc)
	authed := apiRouter.NewRoute().Subrouter()
	authed.Use(requireUser)
	accounts.RegisterRoutes(authed, acc)
	chat.RegisterRoutes(authed, ch)

	wsRouter := r.PathPrefix("/ws").Subrouter()
	wsRouter.Use(requireUser)
	presence.RegisterRoutes(wsRouter, pr)

	// CORS wraps the router so preflight requests never reach method matching.
	return middleware.Logging(s.log)(middleware.CORS(s.cfg.AllowedOrigins)(r))
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start runs the hub until ctx is done. Run calls it; tests serving Handler
// through httptest call it directly.
func (s *Server) Start(ctx context.Context) {
	go s.Hub.Run(ctx)
}

// Run serves on cfg.Address until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(ctx)

	srv := &http.Server{Addr: s.cfg.Address, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("relay_listening", "address", s.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	<-s.Hub.Done()
	if s.backplane != nil {
		s.backplane.Close()
	}
	s.log.Info("relay_stopped")
	return err
}
