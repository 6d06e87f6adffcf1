package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ashkelon/starhelm/internal/metrics"
	"github.com/ashkelon/starhelm/pkg/agent"
	"github.com/ashkelon/starhelm/pkg/gameclient"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// LocalHandler executes a tool without touching the network
type LocalHandler func(ctx context.Context, args map[string]interface{}) (string, error)

// Definition describes a registered tool. A tool is either local
// (Handler set) or remote (routed to the game server under Command,
// defaulting to the tool name).
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     LocalHandler
	Command     string
}

// RemoteExecutor dispatches a named command to the game server
type RemoteExecutor interface {
	Execute(ctx context.Context, command string, args map[string]interface{}) (*gameclient.CommandResult, error)
}

// Dispatcher routes tool calls to local handlers or the remote executor
// and normalizes every outcome to text. A leading "Error" marks failure.
type Dispatcher struct {
	remote  RemoteExecutor
	tools   map[string]*Definition
	order   []string
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. The remote executor may be nil if
// only local tools are registered.
func NewDispatcher(remote RemoteExecutor, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		remote:  remote,
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logger,
	}
}

// Register adds a tool, compiling its argument schema
func (d *Dispatcher) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := d.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}
	if def.Handler == nil && d.remote == nil {
		return fmt.Errorf("tool %s is remote but no remote executor is configured", def.Name)
	}
	if def.InputSchema == nil {
		def.InputSchema = map[string]interface{}{"type": "object"}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", def.Name, err)
	}

	d.tools[def.Name] = &def
	d.order = append(d.order, def.Name)
	d.schemas[def.Name] = schema
	return nil
}

// Definitions lists the registered tools in registration order, in the
// shape the completion providers expect.
func (d *Dispatcher) Definitions() []agent.ToolDefinition {
	defs := make([]agent.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		def := d.tools[name]
		defs = append(defs, agent.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return defs
}

// ExecuteTool runs one tool call and returns its result as text. All
// failures, expected or not, come back as "Error: …" text so the model
// can react to them; nothing is raised past this boundary.
func (d *Dispatcher) ExecuteTool(ctx context.Context, name string, args map[string]interface{}, reasonHint string) string {
	start := time.Now()
	if args == nil {
		args = map[string]interface{}{}
	}

	event := d.logger.Info().Str("tool", name)
	if reasonHint != "" {
		event = event.Str("reason", reasonHint)
	}
	event.Msg("Executing tool")

	def, exists := d.tools[name]
	if !exists {
		metrics.RecordToolExecution(name, "unknown", time.Since(start).Seconds())
		return fmt.Sprintf("Error: unknown tool: %s", name)
	}

	if msg := d.validateArgs(name, args); msg != "" {
		metrics.RecordToolExecution(name, "invalid_args", time.Since(start).Seconds())
		return msg
	}

	output := d.dispatch(ctx, def, args)

	status := "ok"
	if strings.HasPrefix(output, "Error") {
		status = "error"
	}
	metrics.RecordToolExecution(name, status, time.Since(start).Seconds())
	return output
}

func (d *Dispatcher) validateArgs(name string, args map[string]interface{}) string {
	result, err := d.schemas[name].Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Sprintf("Error: argument validation failed: %v", err)
	}
	if result.Valid() {
		return ""
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	sort.Strings(problems)
	return fmt.Sprintf("Error: invalid arguments for %s: %s", name, strings.Join(problems, "; "))
}

func (d *Dispatcher) dispatch(ctx context.Context, def *Definition, args map[string]interface{}) string {
	if def.Handler != nil {
		output, err := def.Handler(ctx, args)
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return output
	}

	command := def.Command
	if command == "" {
		command = def.Name
	}

	res, err := d.remote.Execute(ctx, command, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return renderResult(res)
}

// renderResult flattens a command result to text, appending any server
// notifications on their own lines.
func renderResult(res *gameclient.CommandResult) string {
	var b strings.Builder

	if res.Error != nil {
		fmt.Fprintf(&b, "Error: %s (%s)", res.Error.Message, res.Error.Code)
	} else if len(res.Result) > 0 {
		b.WriteString(compactJSON(res.Result))
	} else {
		b.WriteString("OK")
	}

	for _, note := range res.Notifications {
		b.WriteString("\nNotification: ")
		b.WriteString(note)
	}
	return b.String()
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
