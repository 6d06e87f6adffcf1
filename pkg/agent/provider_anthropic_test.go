package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicToolParams(t *testing.T) {
	t.Run("should carry required fields from Go-built schemas", func(t *testing.T) {
		params := anthropicToolParams([]ToolDefinition{{
			Name: "task_add",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{"type": "string"},
				},
				"required": []string{"title"},
			},
		}})

		require.Len(t, params, 1)
		assert.Equal(t, []string{"title"}, params[0].OfTool.InputSchema.Required)
	})

	t.Run("should carry required fields from JSON-decoded schemas", func(t *testing.T) {
		// Remote tool schemas arrive through config, where required is
		// decoded as []interface{}
		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(`{
			"type": "object",
			"properties": {"dest": {"type": "string"}, "speed": {"type": "number"}},
			"required": ["dest", "speed"]
		}`), &schema))

		params := anthropicToolParams([]ToolDefinition{{Name: "travel", InputSchema: schema}})

		require.Len(t, params, 1)
		assert.Equal(t, []string{"dest", "speed"}, params[0].OfTool.InputSchema.Required)
	})

	t.Run("should leave required empty when the schema has none", func(t *testing.T) {
		params := anthropicToolParams([]ToolDefinition{{
			Name:        "status",
			InputSchema: map[string]interface{}{"type": "object"},
		}})

		require.Len(t, params, 1)
		assert.Empty(t, params[0].OfTool.InputSchema.Required)
	})
}
