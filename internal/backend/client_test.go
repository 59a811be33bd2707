package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", Options{Tokens: staticToken("tok")})
}

func TestListMessagesAcceptsPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/conversations/c1/messages/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "p1", r.URL.Query().Get("parent"))
		io.WriteString(w, `{"count":2,"next":null,"previous":null,"results":[
			{"id":"m1","sender":{"id":7,"username":"ana"},"content":"hi","timestamp":"2024-05-01T12:00:00Z","reply_to":null},
			{"id":"m2","sender":{"id":8,"username":"bo"},"content":"","attachment_url":"/media/a.png","timestamp":"2024-05-01T12:00:01Z"}]}`)
	})
	msgs, err := c.ListMessages(context.Background(), "c1", "p1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "7", msgs[0].SenderID)
	assert.Equal(t, "ana", msgs[0].SenderName)
	assert.Equal(t, "c1", msgs[0].ConversationID)
	assert.Equal(t, models.StatusSent, msgs[0].Status)
	assert.Equal(t, "/media/a.png", msgs[1].Attachment)
}

func TestListNotificationsBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":3,"sender":{"id":1,"username":"ana"},"notification_type":"mention","message":"hey",
			"is_read":false,"created_at":"2024-05-01T12:00:00Z","related_conversation":"c1"}]`)
	})
	ns, err := c.ListNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "3", ns[0].ID)
	assert.Equal(t, models.NotificationMention, ns[0].Type)
	assert.Equal(t, "ana", ns[0].FromUser)
	assert.Equal(t, "c1", ns[0].RelatedConversationID)
}

func TestSendMessageJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"conversation_id": "c1", "content": "hello", "client_id": "tmp-1"}, body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"m-42","conversation":"c1","sender":{"id":"me","username":"me"},"content":"hello","timestamp":"2024-05-01T12:00:00Z"}`)
	})
	msg, err := c.SendMessage(context.Background(), CreateMessage{ConversationID: "c1", Content: "hello", ClientID: "tmp-1"})
	require.NoError(t, err)
	assert.Equal(t, "m-42", msg.ID)
	assert.Equal(t, "tmp-1", msg.TempID)
}

func TestSendMessageMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "c1", r.FormValue("conversation_id"))
		f, hdr, err := r.FormFile("attachment")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "a.txt", hdr.Filename)
		assert.Equal(t, "data", string(data))
		io.WriteString(w, `{"id":"m1","content":"","attachment_url":"/media/a.txt","timestamp":"2024-05-01T12:00:00Z"}`)
	})
	msg, err := c.SendMessage(context.Background(), CreateMessage{ConversationID: "c1", Attachment: &File{Name: "a.txt", Data: []byte("data")}})
	require.NoError(t, err)
	assert.Equal(t, "/media/a.txt", msg.Attachment)
}

func TestValidationBeforeNetwork(t *testing.T) {
	c := New("http://127.0.0.1:1/api", Options{Tokens: staticToken("tok")})
	_, err := c.SendMessage(context.Background(), CreateMessage{ConversationID: "c1"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = c.SendMessage(context.Background(), CreateMessage{Content: "x"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestErrorMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat/notifications/9/mark_read/":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":"Not found."}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	err := c.MarkNotificationRead(context.Background(), "9")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "Not found.")

	_, err = c.ListConversations(context.Background())
	assert.True(t, apperr.IsRetryable(err))

	dead := New("http://127.0.0.1:1/api", Options{Tokens: staticToken("tok")})
	_, err = dead.ListConversations(context.Background())
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
}

func TestLoginAndRefresh(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/auth/login/":
			io.WriteString(w, `{"user":{"id":7,"username":"ana"},"access":"a1","refresh":"r1"}`)
		case "/api/auth/token/refresh/":
			io.WriteString(w, `{"access":"a2"}`)
		}
	})
	sess, err := c.Login(context.Background(), LoginRequest{Username: "ana", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "7", sess.UserID)
	assert.Equal(t, "a1", sess.Access)

	access, rotated, err := c.RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", access)
	assert.Empty(t, rotated)

	_, err = c.Login(context.Background(), LoginRequest{Password: "pw"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestUnauthenticatedWithoutTokens(t *testing.T) {
	c := New("http://127.0.0.1:1/api", Options{})
	_, err := c.ListNotifications(context.Background())
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}
