package chat

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the chat endpoints on r, which is expected to carry
// the authentication middleware.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.Methods(http.MethodGet).Path("/chat/conversations/").HandlerFunc(h.ListConversations)
	r.Methods(http.MethodPost).Path("/chat/conversations/start_conversation/").HandlerFunc(h.StartConversation)
	r.Methods(http.MethodGet).Path("/chat/conversations/unread_count/").HandlerFunc(h.UnreadCounts)
	r.Methods(http.MethodGet).Path("/chat/conversations/{id}/messages/").HandlerFunc(h.ListMessages)

	r.Methods(http.MethodPost).Path("/chat/messages/").HandlerFunc(h.SendMessage)
	r.Methods(http.MethodGet).Path("/chat/messages/search/").HandlerFunc(h.SearchMessages)
	r.Methods(http.MethodPost).Path("/chat/messages/{id}/forward/").HandlerFunc(h.ForwardMessage)
	r.Methods(http.MethodPost).Path("/chat/messages/{id}/mark_read/").HandlerFunc(h.MarkMessageRead)

	r.Methods(http.MethodGet).Path("/chat/notifications/").HandlerFunc(h.ListNotifications)
	r.Methods(http.MethodGet).Path("/chat/notifications/unread/").HandlerFunc(h.UnreadNotifications)
	r.Methods(http.MethodPost).Path("/chat/notifications/mark_all_read/").HandlerFunc(h.MarkAllNotificationsRead)
	r.Methods(http.MethodPost).Path("/chat/notifications/{id}/mark_read/").HandlerFunc(h.MarkNotificationRead)
}

// RegisterMedia mounts the public attachment route.
func RegisterMedia(r *mux.Router, h *Handler) {
	r.Methods(http.MethodGet).Path("/media/{id}/{name}").HandlerFunc(h.ServeAttachment)
}
