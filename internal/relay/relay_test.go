package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/backend"
	"github.com/Vasu1712/chatsync/internal/config"
	"github.com/Vasu1712/chatsync/internal/eventsource"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/session"
)

func startRelay(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, config.ValidateConfig(cfg))
	s, err := New(cfg.Relay, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-s.Hub.Done()
	})
	return s, srv.URL
}

func newApp(t *testing.T, baseURL string) *session.App {
	t.Helper()
	app, err := session.New(session.Options{
		Config: &config.Config{Client: config.ClientConfig{BaseURL: baseURL + "/api"}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func register(t *testing.T, app *session.App, name string) auth.Session {
	t.Helper()
	sess, err := app.Register(context.Background(), backend.RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return sess
}

func TestAccounts(t *testing.T) {
	_, url := startRelay(t)
	app := newApp(t, url)
	ctx := context.Background()

	sess := register(t, app, "ana")
	assert.NotEmpty(t, sess.Access)
	assert.Equal(t, "ana", sess.Username)

	_, err := app.Backend.Register(ctx, backend.RegisterRequest{Username: "ANA", Email: "x@example.com", Password: "correct horse"})
	assert.Equal(t, apperr.CodeAlreadyExists, apperr.CodeOf(err))

	_, err = app.Backend.Login(ctx, backend.LoginRequest{Username: "ana", Password: "wrong password"})
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
	byEmail, err := app.Backend.Login(ctx, backend.LoginRequest{Email: "ana@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, byEmail.UserID)

	theme := "dark"
	u, err := app.Backend.UpdateProfile(ctx, backend.ProfileUpdate{ThemePreference: &theme})
	require.NoError(t, err)
	assert.Equal(t, "dark", u.ThemePreference)
	bad := "neon"
	_, err = app.Backend.UpdateProfile(ctx, backend.ProfileUpdate{ThemePreference: &bad})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	access, _, err := app.Backend.RefreshToken(ctx, sess.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	require.NoError(t, app.Logout(ctx))
	_, _, err = app.Backend.RefreshToken(ctx, sess.Refresh)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
	_, err = app.Backend.Profile(ctx)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	_, url := startRelay(t)
	resp, err := http.Get(url + "/api/chat/conversations/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"detail"`)
}

func TestPreflightAndMetrics(t *testing.T) {
	_, url := startRelay(t)
	req, _ := http.NewRequest(http.MethodOptions, url+"/api/chat/messages/", nil)
	req.Header.Set("Origin", config.DefaultAllowedOrigin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.DefaultAllowedOrigin, resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "chatsync_relay_clients")
}

func TestMessageRoundTrip(t *testing.T) {
	s, url := startRelay(t)
	ctx := context.Background()
	anaApp, boApp := newApp(t, url), newApp(t, url)
	ana := register(t, anaApp, "ana")
	bo := register(t, boApp, "bo")

	conv, err := anaApp.StartConversation(ctx, bo.UserID)
	require.NoError(t, err)
	again, err := boApp.Backend.StartConversation(ctx, ana.UserID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	center, err := boApp.OpenNotifications(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Hub.IsOnline(bo.UserID) }, 2*time.Second, 10*time.Millisecond)

	view, err := anaApp.OpenConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return view.State() == eventsource.Connected }, 2*time.Second, 10*time.Millisecond)

	sent, err := view.Send(ctx, session.Draft{Content: "hello"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sent.ID, "tmp-"))

	require.Eventually(t, func() bool {
		msgs := view.Messages()
		return len(msgs) == 1 && msgs[0].Status == models.StatusSent
	}, 2*time.Second, 10*time.Millisecond)
	msg := view.Messages()[0]
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, strings.HasPrefix(msg.ID, "tmp-"))

	require.Eventually(t, func() bool { return center.Unread() == 1 }, 2*time.Second, 10*time.Millisecond)
	n := center.Notifications()[0]
	assert.Equal(t, models.NotificationMessage, n.Type)
	assert.Equal(t, conv.ID, n.RelatedConversationID)
	assert.Equal(t, msg.ID, n.RelatedMessageID)

	boView, err := boApp.OpenConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, boView.Messages(), 1)
	require.NoError(t, boView.MarkRead(ctx, msg.ID))
	require.Eventually(t, func() bool {
		msgs := view.Messages()
		return len(msgs) == 1 && len(msgs[0].ReadBy) == 1
	}, 2*time.Second, 10*time.Millisecond)

	counts, err := anaApp.UnreadCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
