package storage

import (
	"errors"
	"fmt"

	"github.com/Vasu1712/chatsync/internal/apperr"
)

const (
	themeKey = "settings/theme"
	blobKey  = "settings/blob"

	DefaultTheme = "light"
)

var themes = map[string]bool{"light": true, "dark": true, "system": true}

// ValidTheme reports whether theme is one of light, dark or system.
func ValidTheme(theme string) bool { return themes[theme] }

// Settings persists user preferences in a KV.
type Settings struct {
	kv KV
}

func NewSettings(kv KV) *Settings {
	return &Settings{kv: kv}
}

// Theme returns the stored theme, or DefaultTheme if none was saved.
func (s *Settings) Theme() (string, error) {
	v, err := s.kv.Get(themeKey)
	if errors.Is(err, ErrNotFound) {
		return DefaultTheme, nil
	}
	if err != nil {
		return "", fmt.Errorf("read theme: %w", err)
	}
	return string(v), nil
}

func (s *Settings) SetTheme(theme string) error {
	if !ValidTheme(theme) {
		return apperr.InvalidArg(fmt.Sprintf("unknown theme %q", theme))
	}
	return s.kv.Set(themeKey, []byte(theme))
}

// Blob returns the opaque settings document, or nil if none was saved.
func (s *Settings) Blob() ([]byte, error) {
	v, err := s.kv.Get(blobKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (s *Settings) SetBlob(b []byte) error {
	return s.kv.Set(blobKey, b)
}
