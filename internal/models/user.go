package models

import "time"

type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email,omitempty"`
	Bio             string    `json:"bio,omitempty"`
	PhoneNumber     string    `json:"phone_number,omitempty"`
	IsOnline        bool      `json:"is_online"`
	LastSeen        time.Time `json:"last_seen,omitempty"`
	ThemePreference string    `json:"theme_preference,omitempty"`
	PasswordHash    []byte    `json:"-"`
}
