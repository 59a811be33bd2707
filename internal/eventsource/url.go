package eventsource

import (
	"fmt"
	"net/url"
	"strings"
)

// ConversationURL is the chat channel for one conversation.
func ConversationURL(base, conversationID string) string {
	return fmt.Sprintf("%s/ws/chat/%s/", strings.TrimRight(base, "/"), url.PathEscape(conversationID))
}

// PresenceURL is the per-user channel carrying notifications and presence.
func PresenceURL(base, userID string) string {
	return fmt.Sprintf("%s/ws/presence/%s/", strings.TrimRight(base, "/"), url.PathEscape(userID))
}

// WebsocketBase derives ws(s)://host from an http(s) API base url.
func WebsocketBase(apiBase string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

func withToken(raw, token string) (string, error) {
	if token == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
