package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
)

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	return list(ctx, c, request{method: http.MethodGet, path: "chat/notifications/"}, notificationDTO.model)
}

func (c *Client) UnreadNotifications(ctx context.Context) ([]models.Notification, error) {
	return list(ctx, c, request{method: http.MethodGet, path: "chat/notifications/unread/"}, notificationDTO.model)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return apperr.InvalidArg("notification id is required")
	}
	r := request{method: http.MethodPost, path: fmt.Sprintf("chat/notifications/%s/mark_read/", url.PathEscape(id))}
	return c.doJSON(ctx, r, nil, nil)
}

// MarkAllNotificationsRead returns how many notifications the backend flipped.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var resp struct {
		MarkedRead int `json:"marked_read"`
	}
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "chat/notifications/mark_all_read/"}, nil, &resp); err != nil {
		return 0, err
	}
	return resp.MarkedRead, nil
}
