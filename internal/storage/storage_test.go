package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatsync/internal/apperr"
)

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	_, err := kv.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)

	val := []byte("1")
	require.NoError(t, kv.Set("a", val))
	val[0] = '2'
	got, err := kv.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, kv.Delete("a"))
	require.NoError(t, kv.Delete("a"))
	_, err = kv.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettings(t *testing.T) {
	s := NewSettings(NewMemoryKV())

	theme, err := s.Theme()
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, theme)

	require.NoError(t, s.SetTheme("dark"))
	theme, _ = s.Theme()
	assert.Equal(t, "dark", theme)

	err = s.SetTheme("neon")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	blob, err := s.Blob()
	require.NoError(t, err)
	assert.Nil(t, blob)
	require.NoError(t, s.SetBlob([]byte(`{"sound":false}`)))
	blob, _ = s.Blob()
	assert.JSONEq(t, `{"sound":false}`, string(blob))
}
