package memory

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/storage"
)

// UserStore keeps relay accounts and the refresh tokens revoked by logout.
type UserStore struct {
	mu         sync.RWMutex
	users      map[string]*models.User // userID -> user
	byUsername map[string]string       // lower-cased username -> userID
	revoked    map[string]bool
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[string]*models.User),
		byUsername: make(map[string]string),
		revoked:    make(map[string]bool),
	}
}

// Create registers a user. Usernames are unique regardless of case.
func (s *UserStore) Create(in models.User) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return models.User{}, apperr.InvalidArg("username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(username)
	if _, ok := s.byUsername[key]; ok {
		return models.User{}, apperr.AlreadyExists("username already taken")
	}
	u := &models.User{
		ID:              uuid.NewString(),
		Username:        username,
		Email:           in.Email,
		PhoneNumber:     in.PhoneNumber,
		ThemePreference: storage.DefaultTheme,
		PasswordHash:    in.PasswordHash,
	}
	s.users[u.ID] = u
	s.byUsername[key] = u.ID
	return *u, nil
}

func (s *UserStore) ByID(id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return *u, nil
}

func (s *UserStore) ByUsername(username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return *s.users[id], nil
}

// ByLogin finds the account matching the first non-empty identifier.
func (s *UserStore) ByLogin(username, email, phone string) (models.User, error) {
	if username != "" {
		return s.ByUsername(username)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if (email != "" && strings.EqualFold(u.Email, email)) || (phone != "" && u.PhoneNumber == phone) {
			return *u, nil
		}
	}
	return models.User{}, apperr.NotFound("user not found")
}

// Update applies fn to the stored user and returns the result.
func (s *UserStore) Update(id string, fn func(*models.User)) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	fn(u)
	return *u, nil
}

func (s *UserStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

func (s *UserStore) Revoked(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revoked[token]
}
