package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateServerURL(cfg.Server.URL); err != nil {
		return err
	}
	if err := v.ValidateModel(cfg.Model); err != nil {
		return err
	}
	if cfg.Model.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Model.APIKey, cfg.Model.Provider); err != nil {
			return err
		}
	}
	if cfg.Agent.Schedule != "" {
		if err := v.ValidateSchedule(cfg.Agent.Schedule); err != nil {
			return err
		}
	}
	for _, tool := range cfg.Agent.RemoteTools {
		if tool.Name == "" {
			return fmt.Errorf("remote tool name cannot be empty")
		}
	}
	return nil
}

// ValidateServerURL validates the game server URL
func (v *Validator) ValidateServerURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("server URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("server URL must include a host")
	}
	return nil
}

// ValidateModel validates the model settings
func (v *Validator) ValidateModel(m ModelConfig) error {
	if m.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	switch m.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported provider: %s", m.Provider)
	}
	if m.ContextWindow <= 0 {
		return fmt.Errorf("context window must be positive")
	}
	if m.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	return nil
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateSchedule validates a cron schedule expression
func (v *Validator) ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}
