package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ashkelon/starhelm/internal/config"
	"github.com/ashkelon/starhelm/internal/logger"
	"github.com/ashkelon/starhelm/internal/metrics"
	"github.com/ashkelon/starhelm/pkg/agent"
	"github.com/ashkelon/starhelm/pkg/credstore"
	"github.com/ashkelon/starhelm/pkg/gameclient"
	"github.com/ashkelon/starhelm/pkg/tasklist"
	"github.com/ashkelon/starhelm/pkg/tools"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runInstruction string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent against the configured game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent()
	},
}

func init() {
	runCmd.Flags().StringVar(&runInstruction, "instruction", "", "instruction for the agent (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runAgent() error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, closer, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	// OS signals drive the one cancellation token threaded through the
	// whole turn; there is no process-wide running flag.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".starhelm")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	credsPath := cfg.Server.CredentialsFile
	if credsPath == "" {
		credsPath = filepath.Join(dataDir, "agent.token")
	}
	creds, err := credstore.New(credsPath, lg)
	if err != nil {
		return err
	}
	if err := creds.Watch(); err != nil {
		lg.Warn().Err(err).Msg("Credentials watcher unavailable, token changes require restart")
	}
	defer creds.Close()

	client := gameclient.New(cfg.Server.URL, lg, gameclient.WithCredentials(creds))

	dispatcher := tools.NewDispatcher(client, lg)
	for _, rt := range cfg.Agent.RemoteTools {
		schema := rt.InputSchema
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		if err := dispatcher.Register(tools.Definition{
			Name:        rt.Name,
			Description: rt.Description,
			InputSchema: schema,
			Command:     rt.Command,
		}); err != nil {
			return err
		}
	}

	tasks, err := tasklist.Open(filepath.Join(dataDir, "tasks.db"), lg)
	if err != nil {
		return err
	}
	defer tasks.Close()
	if err := tasks.RegisterTools(dispatcher); err != nil {
		return err
	}

	apiKey := cfg.Model.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("STARHELM_API_KEY")
	}
	provider, err := agent.NewProvider(cfg.Model.Provider, apiKey)
	if err != nil {
		return err
	}

	completions := agent.NewCompletionClient(provider, lg, agent.WithMaxTokens(cfg.Model.MaxTokens))
	compactor := agent.NewCompactor(provider, cfg.Model.Name, cfg.Model.ContextWindow, lg)
	runner, err := agent.NewRunner(agent.RunnerConfig{
		Completions: completions,
		Compactor:   compactor,
		Dispatcher:  dispatcher,
		Logger:      lg,
	})
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, lg)
	}

	instruction := runInstruction
	if instruction == "" {
		instruction = cfg.Agent.Instruction
	}

	convo := agent.NewConversation(cfg.Agent.SystemPrompt, instruction)
	state := &agent.CompactionState{}

	if cfg.Agent.Schedule == "" {
		return runTurn(ctx, runner, cfg.Model.Name, convo, state, lg)
	}
	return runScheduled(ctx, cfg.Agent.Schedule, runner, cfg.Model.Name, convo, state, lg)
}

func runTurn(ctx context.Context, runner *agent.Runner, model string, convo *agent.Conversation, state *agent.CompactionState, lg zerolog.Logger) error {
	turnLogger := lg.With().Str("turn_id", uuid.NewString()).Logger()
	turnLogger.Info().Msg("Turn starting")

	if err := runner.RunTurn(ctx, model, convo, state); err != nil {
		if ctx.Err() != nil {
			turnLogger.Info().Msg("Turn aborted by signal")
			return nil
		}
		return err
	}
	turnLogger.Info().Int("messages", len(convo.Messages)).Msg("Turn finished")
	return nil
}

// runScheduled keeps one conversation and compaction state alive across
// cron-triggered turns; the compactor keeps it within budget.
func runScheduled(ctx context.Context, schedule string, runner *agent.Runner, model string, convo *agent.Conversation, state *agent.CompactionState, lg zerolog.Logger) error {
	c := cron.New()

	// Unbuffered: a tick is delivered only when the loop below is idle
	// in its select, so a tick landing mid-turn is dropped instead of
	// queuing a back-to-back turn behind the running one.
	turns := make(chan struct{})

	if _, err := c.AddFunc(schedule, turnTrigger(turns, lg)); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	c.Start()
	defer c.Stop()
	lg.Info().Str("schedule", schedule).Msg("Running on schedule")

	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-turns:
			if !first {
				convo.Messages = append(convo.Messages, agent.NewUserMessage(
					"Continue autonomous operation from where you left off."))
			}
			first = false
			if err := runTurn(ctx, runner, model, convo, state, lg); err != nil {
				lg.Error().Err(err).Msg("Turn failed, waiting for next schedule")
			}
		}
	}
}

// turnTrigger hands a schedule tick to the turn loop when it is idle
func turnTrigger(turns chan<- struct{}, lg zerolog.Logger) func() {
	return func() {
		select {
		case turns <- struct{}{}:
		default:
			lg.Warn().Msg("Previous turn still running, skipping scheduled turn")
		}
	}
}

func serveMetrics(addr string, lg zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	lg.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		lg.Warn().Err(err).Msg("Metrics server stopped")
	}
}
