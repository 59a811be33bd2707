// Package accounts serves the relay's registration, login, token and profile
// endpoints.
package accounts

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Vasu1712/chatsync/internal/api"
	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/middleware"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/storage"
	"github.com/Vasu1712/chatsync/internal/storage/memory"
)

const minPasswordLength = 8

// Presence reports whether a user has an open user channel.
type Presence interface {
	IsOnline(userID string) bool
}

type Handler struct {
	Users    *memory.UserStore
	Issuer   *auth.Issuer
	Presence Presence
	Log      *slog.Logger
}

type authResponse struct {
	User    api.User `json:"user"`
	Access  string   `json:"access"`
	Refresh string   `json:"refresh"`
}

func (h *Handler) view(u models.User) api.User {
	if h.Presence != nil {
		u.IsOnline = h.Presence.IsOnline(u.ID)
	}
	return api.UserView(u)
}

func (h *Handler) respondWithTokens(w http.ResponseWriter, status int, u models.User) {
	access, refresh, err := h.Issuer.Issue(u.ID)
	if err != nil {
		api.WriteError(w, apperr.Wrap(apperr.CodeInternal, "issue tokens", err))
		return
	}
	api.WriteJSON(w, status, authResponse{User: h.view(u), Access: access, Refresh: refresh})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
		Password2   string `json:"password2"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	switch {
	case req.Email == "" && req.PhoneNumber == "":
		api.WriteError(w, apperr.InvalidArg("either email or phone number must be provided"))
		return
	case len(req.Password) < minPasswordLength:
		api.WriteError(w, apperr.InvalidArg("password must be at least 8 characters"))
		return
	case req.Password != req.Password2:
		api.WriteError(w, apperr.InvalidArg("password fields didn't match"))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		api.WriteError(w, apperr.Wrap(apperr.CodeInternal, "hash password", err))
		return
	}
	u, err := h.Users.Create(models.User{
		Username:     req.Username,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	h.Log.Info("user_registered", "user_id", u.ID, "username", u.Username)
	h.respondWithTokens(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		Password    string `json:"password"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	u, err := h.Users.ByLogin(req.Username, req.Email, req.PhoneNumber)
	if err == nil {
		err = auth.CheckPassword(u.PasswordHash, req.Password)
	}
	if err != nil {
		h.Log.Warn("login_failed", "username", req.Username)
		api.WriteError(w, apperr.Unauthorized("no active account found with the given credentials"))
		return
	}
	h.respondWithTokens(w, http.StatusOK, u)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if req.Refresh == "" || h.Users.Revoked(req.Refresh) {
		api.WriteError(w, apperr.Unauthorized("token is invalid or expired"))
		return
	}
	access, err := h.Issuer.Refresh(req.Refresh)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	claims, err := h.Issuer.Verify(req.Refresh, auth.TokenRefresh)
	if err != nil {
		api.WriteError(w, apperr.InvalidArg("invalid refresh token"))
		return
	}
	if claims.UserID != middleware.UserIDFromContext(r.Context()) {
		api.WriteError(w, apperr.Forbidden("refresh token belongs to another user"))
		return
	}
	h.Users.Revoke(req.Refresh)
	api.WriteJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.ByID(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, h.view(u))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           *string `json:"email"`
		Bio             *string `json:"bio"`
		PhoneNumber     *string `json:"phone_number"`
		ThemePreference *string `json:"theme_preference"`
	}
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if t := req.ThemePreference; t != nil && !storage.ValidTheme(*t) {
		api.WriteError(w, apperr.InvalidArg(fmt.Sprintf("unknown theme %q", *t)))
		return
	}
	u, err := h.Users.Update(middleware.UserIDFromContext(r.Context()), func(u *models.User) {
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Bio != nil {
			u.Bio = *req.Bio
		}
		if req.PhoneNumber != nil {
			u.PhoneNumber = *req.PhoneNumber
		}
		if req.ThemePreference != nil {
			u.ThemePreference = *req.ThemePreference
		}
	})
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, h.view(u))
}
