package pebblekv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/storage"
)

func TestStorePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := Open(dir)
	require.NoError(t, err)

	_, err = s.Get("auth/access")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s.Set("auth/access", []byte("tok")))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("auth/access")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), got)

	settings := storage.NewSettings(s)
	require.NoError(t, settings.SetTheme("system"))
	theme, err := settings.Theme()
	require.NoError(t, err)
	assert.Equal(t, "system", theme)

	require.NoError(t, s.Delete("auth/access"))
	_, err = s.Get("auth/access")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
