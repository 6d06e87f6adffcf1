package tasklist

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should add tasks with prefixed references", func(t *testing.T) {
		s := newTestStore(t)

		ref, err := s.Add(ctx, "refuel at station")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "t_"))

		tasks, err := s.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, ref, tasks[0].Ref)
		assert.Equal(t, "refuel at station", tasks[0].Title)
		assert.False(t, tasks[0].Done)
	})

	t.Run("should reject empty titles", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Add(ctx, "   ")
		assert.Error(t, err)
	})

	t.Run("should hide completed tasks unless asked", func(t *testing.T) {
		s := newTestStore(t)

		ref1, err := s.Add(ctx, "survey the belt")
		require.NoError(t, err)
		_, err = s.Add(ctx, "sell cargo")
		require.NoError(t, err)

		require.NoError(t, s.MarkDone(ctx, ref1))

		open, err := s.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "sell cargo", open[0].Title)

		all, err := s.List(ctx, true)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("should record completion time", func(t *testing.T) {
		s := newTestStore(t)

		ref, err := s.Add(ctx, "dock")
		require.NoError(t, err)
		require.NoError(t, s.MarkDone(ctx, ref))

		tasks, err := s.List(ctx, true)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].Done)
		require.NotNil(t, tasks[0].DoneAt)
	})

	t.Run("should fail to complete unknown or already-done tasks", func(t *testing.T) {
		s := newTestStore(t)

		err := s.MarkDone(ctx, "t_missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no open task")

		ref, err := s.Add(ctx, "one shot")
		require.NoError(t, err)
		require.NoError(t, s.MarkDone(ctx, ref))
		assert.Error(t, s.MarkDone(ctx, ref))
	})
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()

	t.Run("should render the open task list", func(t *testing.T) {
		s := newTestStore(t)

		out, err := s.handleList(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "No tasks.", out)

		addOut, err := s.handleAdd(ctx, map[string]interface{}{"title": "mine iron"})
		require.NoError(t, err)
		assert.Contains(t, addOut, "Task added: t_")

		out, err = s.handleList(ctx, nil)
		require.NoError(t, err)
		assert.Contains(t, out, "[ ] t_")
		assert.Contains(t, out, "mine iron")
	})

	t.Run("should mark completed tasks in the rendering", func(t *testing.T) {
		s := newTestStore(t)

		ref, err := s.Add(ctx, "mine iron")
		require.NoError(t, err)

		doneOut, err := s.handleDone(ctx, map[string]interface{}{"ref": ref})
		require.NoError(t, err)
		assert.Equal(t, "Task completed: "+ref, doneOut)

		out, err := s.handleList(ctx, map[string]interface{}{"include_done": true})
		require.NoError(t, err)
		assert.Contains(t, out, "[x] "+ref)
	})
}
