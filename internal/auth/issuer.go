package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/clock"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims mirrors the payload simplejwt issues: token_type plus user_id.
type Claims struct {
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens for the relay.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, clock: clk}
}

func (i *Issuer) sign(userID, kind string, ttl time.Duration) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		TokenType: kind,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Issue returns a fresh access/refresh pair for userID.
func (i *Issuer) Issue(userID string) (access, refresh string, err error) {
	if access, err = i.sign(userID, TokenAccess, i.accessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = i.sign(userID, TokenRefresh, i.refreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Verify checks the signature, expiry and token type.
func (i *Issuer) Verify(token, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}
	if claims.TokenType != kind {
		return nil, apperr.Unauthorized(fmt.Sprintf("expected %s token", kind))
	}
	return claims, nil
}

// Refresh issues a new access token from a valid refresh token.
func (i *Issuer) Refresh(refresh string) (string, error) {
	claims, err := i.Verify(refresh, TokenRefresh)
	if err != nil {
		return "", err
	}
	return i.sign(claims.UserID, TokenAccess, i.accessTTL)
}

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func CheckPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return apperr.Unauthorized("invalid credentials")
	}
	return nil
}
