package presence

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the websocket endpoints on r, which is expected to
// carry the authentication middleware (tokens arrive as ?token=).
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.Methods(http.MethodGet).Path("/chat/{conversation_id}/").HandlerFunc(h.ServeChat)
	r.Methods(http.MethodGet).Path("/presence/{user_id}/").HandlerFunc(h.ServeUser)
}
