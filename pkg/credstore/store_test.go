package credstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("should treat a missing file as no credentials", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.token")
		s, err := New(path, zerolog.Nop())
		require.NoError(t, err)
		defer s.Close()

		token, ok := s.Token()
		assert.False(t, ok)
		assert.Empty(t, token)
	})

	t.Run("should load and trim the token from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.token")
		require.NoError(t, os.WriteFile(path, []byte("  secret-token-123\n"), 0o600))

		s, err := New(path, zerolog.Nop())
		require.NoError(t, err)
		defer s.Close()

		token, ok := s.Token()
		assert.True(t, ok)
		assert.Equal(t, "secret-token-123", token)
	})

	t.Run("should pick up the token on reload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.token")
		s, err := New(path, zerolog.Nop())
		require.NoError(t, err)
		defer s.Close()

		_, ok := s.Token()
		require.False(t, ok)

		require.NoError(t, os.WriteFile(path, []byte("fresh-token"), 0o600))
		require.NoError(t, s.Reload())

		token, ok := s.Token()
		assert.True(t, ok)
		assert.Equal(t, "fresh-token", token)
	})

	t.Run("should clear the token when the file disappears", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.token")
		require.NoError(t, os.WriteFile(path, []byte("tok"), 0o600))

		s, err := New(path, zerolog.Nop())
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, os.Remove(path))
		require.NoError(t, s.Reload())

		_, ok := s.Token()
		assert.False(t, ok)
	})

	t.Run("should reload when the watched file changes", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "agent.token")
		require.NoError(t, os.WriteFile(path, []byte("old-token"), 0o600))

		s, err := New(path, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, s.Watch())
		defer s.Close()

		require.NoError(t, os.WriteFile(path, []byte("new-token"), 0o600))

		assert.Eventually(t, func() bool {
			token, _ := s.Token()
			return token == "new-token"
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("should ignore changes to sibling files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "agent.token")
		require.NoError(t, os.WriteFile(path, []byte("stable"), 0o600))

		s, err := New(path, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, s.Watch())
		defer s.Close()

		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0o600))
		time.Sleep(100 * time.Millisecond)

		token, _ := s.Token()
		assert.Equal(t, "stable", token)
	})
}
