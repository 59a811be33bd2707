package accounts

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterPublicRoutes mounts the endpoints that work without a token.
func RegisterPublicRoutes(r *mux.Router, h *Handler) {
	r.Methods(http.MethodPost).Path("/auth/register/").HandlerFunc(h.Register)
	r.Methods(http.MethodPost).Path("/auth/login/").HandlerFunc(h.Login)
	r.Methods(http.MethodPost).Path("/auth/token/refresh/").HandlerFunc(h.RefreshToken)
}

// RegisterRoutes mounts the endpoints that need an authenticated user.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.Methods(http.MethodPost).Path("/auth/logout/").HandlerFunc(h.Logout)
	r.Methods(http.MethodGet).Path("/auth/profile/").HandlerFunc(h.Profile)
	r.Methods(http.MethodPatch).Path("/auth/profile/").HandlerFunc(h.UpdateProfile)
}
