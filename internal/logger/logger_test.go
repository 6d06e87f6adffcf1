package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should create a console-only logger", func(t *testing.T) {
		lg, closer, err := New(Config{Level: "debug"})
		require.NoError(t, err)
		defer closer.Close()

		lg.Debug().Msg("hello")
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		lg, closer, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		defer closer.Close()

		assert.Equal(t, "info", lg.GetLevel().String())
	})

	t.Run("should write to the log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "starhelm.log")
		lg, closer, err := New(Config{Level: "info", File: path})
		require.NoError(t, err)

		lg.Info().Str("command", "mine").Msg("command executed")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "command executed")
	})

	t.Run("should redact secrets in file output when enabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "starhelm.log")
		lg, closer, err := New(Config{Level: "info", File: path, Redaction: true})
		require.NoError(t, err)

		lg.Info().Msg("key is sk-ant-REDACTED")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-ant-REDACTED")
		assert.Contains(t, string(data), "[REDACTED]")
	})
}
