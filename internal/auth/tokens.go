// Package auth keeps the client's JWT session and, for the relay, issues and
// verifies tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/clock"
	"github.com/Vasu1712/chatsync/internal/logger"
	"github.com/Vasu1712/chatsync/internal/storage"
)

const (
	tokensKey = "auth/tokens"

	// RefreshLeeway is how close to expiry an access token may get before it
	// is refreshed.
	RefreshLeeway = 30 * time.Second
)

var ErrNotSignedIn = apperr.Unauthorized("not signed in")

// Session is what a login or register call returns and what is persisted.
type Session struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// RefreshFunc exchanges a refresh token for a new access token. It may also
// rotate the refresh token; an empty second result keeps the old one.
type RefreshFunc func(ctx context.Context, refresh string) (access, rotated string, err error)

type TokenStore struct {
	kv      storage.KV
	refresh RefreshFunc
	clock   clock.Clock
	log     *slog.Logger

	mu sync.Mutex
}

func NewTokenStore(kv storage.KV, refresh RefreshFunc, clk clock.Clock, log *slog.Logger) *TokenStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &TokenStore{kv: kv, refresh: refresh, clock: clk, log: logger.OrDiscard(log)}
}

func (s *TokenStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(sess)
}

func (s *TokenStore) save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.kv.Set(tokensKey, data)
}

// Load returns the persisted session or ErrNotSignedIn.
func (s *TokenStore) Load() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *TokenStore) load() (Session, error) {
	data, err := s.kv.Get(tokensKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrNotSignedIn
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Access == "" {
		return Session{}, ErrNotSignedIn
	}
	return sess, nil
}

func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(tokensKey)
}

// AccessToken returns a usable access token, refreshing it first when it
// expires within RefreshLeeway.
func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.load()
	if err != nil {
		return "", err
	}
	exp, err := ExpiresAt(sess.Access)
	if err != nil || exp.IsZero() || exp.Sub(s.clock.Now()) > RefreshLeeway {
		return sess.Access, nil
	}
	if s.refresh == nil || sess.Refresh == "" {
		return sess.Access, nil
	}

	access, rotated, err := s.refresh(ctx, sess.Refresh)
	if err != nil {
		s.log.Warn("token_refresh_failed", "user_id", sess.UserID, "error", err)
		if apperr.CodeOf(err) == apperr.CodeUnauthenticated {
			_ = s.kv.Delete(tokensKey)
		}
		return "", err
	}
	sess.Access = access
	if rotated != "" {
		sess.Refresh = rotated
	}
	if err := s.save(sess); err != nil {
		return "", err
	}
	s.log.Debug("token_refreshed", "user_id", sess.UserID)
	return access, nil
}

// ExpiresAt reads the exp claim without verifying the signature; the client
// does not hold the signing key.
func ExpiresAt(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
