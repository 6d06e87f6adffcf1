package config

// Config represents the main starhelm configuration
type Config struct {
	// Game server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Model
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Agent behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds game server connection settings
type ServerConfig struct {
	URL             string `json:"url" mapstructure:"url"`
	CredentialsFile string `json:"credentials_file" mapstructure:"credentials_file"`
}

// ModelConfig holds LLM provider settings
type ModelConfig struct {
	Provider      string `json:"provider" mapstructure:"provider"` // anthropic, openai
	Name          string `json:"name" mapstructure:"name"`
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	ContextWindow int    `json:"context_window" mapstructure:"context_window"`
	MaxTokens     int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// AgentConfig holds agent behavior settings
type AgentConfig struct {
	SystemPrompt string `json:"system_prompt" mapstructure:"system_prompt"`
	Instruction  string `json:"instruction" mapstructure:"instruction"`

	// Cron schedule for recurring turns; empty means a single turn
	Schedule string `json:"schedule" mapstructure:"schedule"`

	// Remote tools offered to the model, beyond the built-in local ones
	RemoteTools []RemoteToolConfig `json:"remote_tools" mapstructure:"remote_tools"`
}

// RemoteToolConfig declares a game command exposed to the model as a tool
type RemoteToolConfig struct {
	Name        string                 `json:"name" mapstructure:"name"`
	Description string                 `json:"description" mapstructure:"description"`
	Command     string                 `json:"command" mapstructure:"command"`
	InputSchema map[string]interface{} `json:"input_schema" mapstructure:"input_schema"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:8460/v1",
		},
		Model: ModelConfig{
			Provider:      "anthropic",
			Name:          "claude-3-5-sonnet-20241022",
			ContextWindow: 200000,
			MaxTokens:     4096,
		},
		Agent: AgentConfig{
			SystemPrompt: "You are an autonomous agent operating a ship in a space trading game. " +
				"Use the available tools to pursue your instruction. Track your work with the task tools.",
			Instruction: "Survey your surroundings and make steady progress.",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9624",
		},
	}
}
