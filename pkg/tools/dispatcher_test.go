package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ashkelon/starhelm/pkg/gameclient"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	result *gameclient.CommandResult
	err    error

	commands []string
	args     []map[string]interface{}
}

func (f *fakeRemote) Execute(ctx context.Context, command string, args map[string]interface{}) (*gameclient.CommandResult, error) {
	f.commands = append(f.commands, command)
	f.args = append(f.args, args)
	return f.result, f.err
}

func newTestDispatcher(t *testing.T, remote RemoteExecutor) *Dispatcher {
	t.Helper()
	return NewDispatcher(remote, zerolog.Nop())
}

func TestRegister(t *testing.T) {
	t.Run("should reject duplicate names", func(t *testing.T) {
		d := newTestDispatcher(t, &fakeRemote{})
		require.NoError(t, d.Register(Definition{Name: "mine"}))
		assert.Error(t, d.Register(Definition{Name: "mine"}))
	})

	t.Run("should reject remote tools without a remote executor", func(t *testing.T) {
		d := newTestDispatcher(t, nil)
		err := d.Register(Definition{Name: "mine"})
		assert.Error(t, err)
	})

	t.Run("should list definitions in registration order", func(t *testing.T) {
		d := newTestDispatcher(t, &fakeRemote{})
		require.NoError(t, d.Register(Definition{Name: "travel", Description: "go somewhere"}))
		require.NoError(t, d.Register(Definition{Name: "mine", Description: "dig"}))

		defs := d.Definitions()
		require.Len(t, defs, 2)
		assert.Equal(t, "travel", defs[0].Name)
		assert.Equal(t, "mine", defs[1].Name)
		assert.NotNil(t, defs[0].InputSchema)
	})
}

func TestExecuteTool(t *testing.T) {
	t.Run("should route local tools without touching the remote", func(t *testing.T) {
		remote := &fakeRemote{}
		d := newTestDispatcher(t, remote)
		require.NoError(t, d.Register(Definition{
			Name: "note",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return "noted", nil
			},
		}))

		out := d.ExecuteTool(context.Background(), "note", nil, "")
		assert.Equal(t, "noted", out)
		assert.Empty(t, remote.commands)
	})

	t.Run("should normalize local handler errors to Error text", func(t *testing.T) {
		d := newTestDispatcher(t, &fakeRemote{})
		require.NoError(t, d.Register(Definition{
			Name: "broken",
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return "", fmt.Errorf("disk full")
			},
		}))

		out := d.ExecuteTool(context.Background(), "broken", nil, "")
		assert.Equal(t, "Error: disk full", out)
	})

	t.Run("should report unknown tools as errors", func(t *testing.T) {
		d := newTestDispatcher(t, &fakeRemote{})
		out := d.ExecuteTool(context.Background(), "nope", nil, "")
		assert.Equal(t, "Error: unknown tool: nope", out)
	})

	t.Run("should validate arguments against the schema", func(t *testing.T) {
		d := newTestDispatcher(t, &fakeRemote{result: &gameclient.CommandResult{}})
		require.NoError(t, d.Register(Definition{
			Name: "travel",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"dest": map[string]interface{}{"type": "string"},
				},
				"required": []string{"dest"},
			},
		}))

		out := d.ExecuteTool(context.Background(), "travel", map[string]interface{}{}, "")
		assert.Contains(t, out, "Error: invalid arguments for travel")
		assert.Contains(t, out, "dest")
	})

	t.Run("should route remote tools under their command name", func(t *testing.T) {
		remote := &fakeRemote{result: &gameclient.CommandResult{
			Result: json.RawMessage(`{"ok": true}`),
		}}
		d := newTestDispatcher(t, remote)
		require.NoError(t, d.Register(Definition{Name: "extract", Command: "mine"}))

		out := d.ExecuteTool(context.Background(), "extract", map[string]interface{}{"x": 1.0}, "")
		assert.Equal(t, `{"ok":true}`, out)
		require.Len(t, remote.commands, 1)
		assert.Equal(t, "mine", remote.commands[0])
	})

	t.Run("should render structured game errors with their code", func(t *testing.T) {
		remote := &fakeRemote{result: &gameclient.CommandResult{
			Error: &gameclient.CommandError{Code: "insufficient_fuel", Message: "not enough fuel"},
		}}
		d := newTestDispatcher(t, remote)
		require.NoError(t, d.Register(Definition{Name: "travel"}))

		out := d.ExecuteTool(context.Background(), "travel", nil, "")
		assert.Equal(t, "Error: not enough fuel (insufficient_fuel)", out)
	})

	t.Run("should append notifications on their own lines", func(t *testing.T) {
		remote := &fakeRemote{result: &gameclient.CommandResult{
			Result:        json.RawMessage(`{"yield": 4}`),
			Notifications: []string{"cargo hold 80% full", "pirate sighted"},
		}}
		d := newTestDispatcher(t, remote)
		require.NoError(t, d.Register(Definition{Name: "mine"}))

		out := d.ExecuteTool(context.Background(), "mine", nil, "")
		assert.Equal(t, "{\"yield\":4}\nNotification: cargo hold 80% full\nNotification: pirate sighted", out)
	})

	t.Run("should normalize transport failures to Error text", func(t *testing.T) {
		remote := &fakeRemote{err: fmt.Errorf("connection refused")}
		d := newTestDispatcher(t, remote)
		require.NoError(t, d.Register(Definition{Name: "mine"}))

		out := d.ExecuteTool(context.Background(), "mine", nil, "")
		assert.Contains(t, out, "Error: ")
		assert.Contains(t, out, "connection refused")
	})

	t.Run("should return OK for empty successful results", func(t *testing.T) {
		remote := &fakeRemote{result: &gameclient.CommandResult{}}
		d := newTestDispatcher(t, remote)
		require.NoError(t, d.Register(Definition{Name: "dock"}))

		out := d.ExecuteTool(context.Background(), "dock", nil, "")
		assert.Equal(t, "OK", out)
	})
}
