package backend

import (
	"context"
	"net/http"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/models"
)

type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
}

// LoginRequest identifies the user by one of username, email or phone number.
type LoginRequest struct {
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Password    string `json:"password"`
}

type ProfileUpdate struct {
	Username        *string `json:"username,omitempty"`
	Email           *string `json:"email,omitempty"`
	Bio             *string `json:"bio,omitempty"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	ThemePreference *string `json:"theme_preference,omitempty"`
}

func sessionFrom(r authResponse) auth.Session {
	return auth.Session{
		Access:   r.Access,
		Refresh:  r.Refresh,
		UserID:   string(r.User.ID),
		Username: r.User.Username,
	}
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (auth.Session, error) {
	if req.Username == "" || req.Password == "" {
		return auth.Session{}, apperr.InvalidArg("username and password are required")
	}
	if req.Email == "" && req.PhoneNumber == "" {
		return auth.Session{}, apperr.InvalidArg("either email or phone number must be provided")
	}
	if req.Password2 == "" {
		req.Password2 = req.Password
	}
	var resp authResponse
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "auth/register/", anonymous: true}, req, &resp); err != nil {
		return auth.Session{}, err
	}
	return sessionFrom(resp), nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (auth.Session, error) {
	if req.Password == "" || (req.Username == "" && req.Email == "" && req.PhoneNumber == "") {
		return auth.Session{}, apperr.InvalidArg("provide a password and one of username, email or phone number")
	}
	var resp authResponse
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "auth/login/", anonymous: true}, req, &resp); err != nil {
		return auth.Session{}, err
	}
	return sessionFrom(resp), nil
}

// RefreshToken matches auth.RefreshFunc.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, string, error) {
	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	in := map[string]string{"refresh": refresh}
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "auth/token/refresh/", anonymous: true}, in, &resp); err != nil {
		return "", "", err
	}
	if resp.Access == "" {
		return "", "", apperr.Malformed("refresh response without access token", nil)
	}
	return resp.Access, resp.Refresh, nil
}

func (c *Client) Logout(ctx context.Context, refresh string) error {
	return c.doJSON(ctx, request{method: http.MethodPost, path: "auth/logout/"}, map[string]string{"refresh": refresh}, nil)
}

func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var u userDTO
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "auth/profile/"}, nil, &u); err != nil {
		return models.User{}, err
	}
	return u.model(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (models.User, error) {
	var u userDTO
	if err := c.doJSON(ctx, request{method: http.MethodPatch, path: "auth/profile/"}, upd, &u); err != nil {
		return models.User{}, err
	}
	return u.model(), nil
}
