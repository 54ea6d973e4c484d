// Package config holds process settings for the concierge agent.
//
// Settings are resolved in three layers: built-in defaults, then an
// optional concierge.yaml file, then environment variables (with a .env
// file loaded first when present). Environment always wins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for timeouts and resilience limits.
const (
	DefaultModel              = "gpt-4o"
	DefaultMaxRetries         = 3
	DefaultBreakerThreshold   = 3
	DefaultBreakerCooldown    = 5 * time.Minute
	DefaultInactivityTimeout  = 30 * time.Minute
	DefaultKeepAliveInterval  = 60 * time.Second
	DefaultSweepInterval      = 5 * time.Minute
	DefaultRetryBaseDelay     = 2 * time.Second
	DefaultRetryMaxDelay      = 2 * time.Minute
	DefaultMaxHistoryTurns    = 10
	DefaultHistoryTokenBudget = 2000
)

// Settings is the full configuration surface consumed by the agent core.
type Settings struct {
	// OpenAIAPIKey authenticates the LLM completion client.
	OpenAIAPIKey string

	// OpenAIBaseURL overrides the completion endpoint for
	// OpenAI-compatible services (OpenRouter, Azure, local models).
	OpenAIBaseURL string

	// Model is the completion model used for classification, prompt
	// generation and reply formatting.
	Model string

	// BrowserWSEndpoint, when set, connects to a remote browser over CDP
	// instead of launching a local one.
	BrowserWSEndpoint string

	// BrowserHeadless controls local browser launches.
	BrowserHeadless bool

	// HistoryDBPath is the SQLite file for conversation history.
	// Empty selects the in-memory store.
	HistoryDBPath string

	// MaxRetries bounds retries of a single logical task.
	MaxRetries int

	// BreakerThreshold is the failure count that opens a circuit breaker.
	BreakerThreshold int

	// BreakerCooldown is how long an open breaker rejects dispatches.
	BreakerCooldown time.Duration

	// InactivityTimeout is how long a session may sit idle before the
	// sweep reclaims it.
	InactivityTimeout time.Duration

	// KeepAliveInterval is the refresh cadence of the in-flight
	// keep-alive. Must be strictly shorter than InactivityTimeout.
	KeepAliveInterval time.Duration

	// SweepInterval is the cadence of the background inactivity sweep.
	SweepInterval time.Duration

	// RetryBaseDelay and RetryMaxDelay bound the backoff schedule.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// TaskTimeout, when non-zero, caps the wall-clock time of a single
	// dispatch to the automation agent.
	TaskTimeout time.Duration

	// MaxHistoryTurns is how many recent turns the resolver and prompt
	// builder consider.
	MaxHistoryTurns int

	// HistoryTokenBudget caps the tokens of history folded into prompts.
	HistoryTokenBudget int
}

// fileConfig is the yaml shape of the config file. Pointer fields
// distinguish "absent" from zero; durations are Go duration strings
// ("90s", "5m").
type fileConfig struct {
	OpenAIAPIKey       *string `yaml:"openai_api_key"`
	OpenAIBaseURL      *string `yaml:"openai_base_url"`
	Model              *string `yaml:"model"`
	BrowserWSEndpoint  *string `yaml:"browser_ws_endpoint"`
	BrowserHeadless    *bool   `yaml:"browser_headless"`
	HistoryDBPath      *string `yaml:"history_db_path"`
	MaxRetries         *int    `yaml:"max_retries"`
	BreakerThreshold   *int    `yaml:"breaker_threshold"`
	BreakerCooldown    *string `yaml:"breaker_cooldown"`
	InactivityTimeout  *string `yaml:"inactivity_timeout"`
	KeepAliveInterval  *string `yaml:"keepalive_interval"`
	SweepInterval      *string `yaml:"sweep_interval"`
	RetryBaseDelay     *string `yaml:"retry_base_delay"`
	RetryMaxDelay      *string `yaml:"retry_max_delay"`
	TaskTimeout        *string `yaml:"task_timeout"`
	MaxHistoryTurns    *int    `yaml:"max_history_turns"`
	HistoryTokenBudget *int    `yaml:"history_token_budget"`
}

// apply overlays the file values that were present onto s.
func (f *fileConfig) apply(s *Settings) error {
	setIfPresent(&s.OpenAIAPIKey, f.OpenAIAPIKey)
	setIfPresent(&s.OpenAIBaseURL, f.OpenAIBaseURL)
	setIfPresent(&s.Model, f.Model)
	setIfPresent(&s.BrowserWSEndpoint, f.BrowserWSEndpoint)
	setIfPresent(&s.BrowserHeadless, f.BrowserHeadless)
	setIfPresent(&s.HistoryDBPath, f.HistoryDBPath)
	setIfPresent(&s.MaxRetries, f.MaxRetries)
	setIfPresent(&s.BreakerThreshold, f.BreakerThreshold)
	setIfPresent(&s.MaxHistoryTurns, f.MaxHistoryTurns)
	setIfPresent(&s.HistoryTokenBudget, f.HistoryTokenBudget)

	durations := []struct {
		key string
		dst *time.Duration
		src *string
	}{
		{"breaker_cooldown", &s.BreakerCooldown, f.BreakerCooldown},
		{"inactivity_timeout", &s.InactivityTimeout, f.InactivityTimeout},
		{"keepalive_interval", &s.KeepAliveInterval, f.KeepAliveInterval},
		{"sweep_interval", &s.SweepInterval, f.SweepInterval},
		{"retry_base_delay", &s.RetryBaseDelay, f.RetryBaseDelay},
		{"retry_max_delay", &s.RetryMaxDelay, f.RetryMaxDelay},
		{"task_timeout", &s.TaskTimeout, f.TaskTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func defaults() Settings {
	return Settings{
		Model:              DefaultModel,
		BrowserHeadless:    true,
		MaxRetries:         DefaultMaxRetries,
		BreakerThreshold:   DefaultBreakerThreshold,
		BreakerCooldown:    DefaultBreakerCooldown,
		InactivityTimeout:  DefaultInactivityTimeout,
		KeepAliveInterval:  DefaultKeepAliveInterval,
		SweepInterval:      DefaultSweepInterval,
		RetryBaseDelay:     DefaultRetryBaseDelay,
		RetryMaxDelay:      DefaultRetryMaxDelay,
		MaxHistoryTurns:    DefaultMaxHistoryTurns,
		HistoryTokenBudget: DefaultHistoryTokenBudget,
	}
}

// Load resolves Settings from defaults, an optional yaml file, and the
// environment. A missing yaml file is not an error; a malformed one is.
func Load(yamlPath string) (*Settings, error) {
	// Best effort: a missing .env simply means the environment is
	// already populated.
	_ = godotenv.Load()

	s := defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			var f fileConfig
			if err := yaml.Unmarshal(data, &f); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
			}
			if err := f.apply(&s); err != nil {
				return nil, fmt.Errorf("config file %s: %w", yamlPath, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file %s: %w", yamlPath, err)
		}
	}

	s.applyEnv()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyEnv() {
	setString(&s.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&s.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&s.Model, "GPT_MODEL")
	setString(&s.BrowserWSEndpoint, "BROWSER_WS_ENDPOINT")
	setBool(&s.BrowserHeadless, "BROWSER_HEADLESS")
	setString(&s.HistoryDBPath, "HISTORY_DB_PATH")
	setInt(&s.MaxRetries, "MAX_RETRIES")
	setInt(&s.BreakerThreshold, "BREAKER_THRESHOLD")
	setSeconds(&s.BreakerCooldown, "BREAKER_COOLDOWN_SECONDS")
	setSeconds(&s.InactivityTimeout, "INACTIVITY_TIMEOUT_SECONDS")
	setSeconds(&s.KeepAliveInterval, "KEEPALIVE_INTERVAL_SECONDS")
	setSeconds(&s.SweepInterval, "SWEEP_INTERVAL_SECONDS")
	setSeconds(&s.RetryBaseDelay, "RETRY_BASE_DELAY_SECONDS")
	setSeconds(&s.RetryMaxDelay, "RETRY_MAX_DELAY_SECONDS")
	setSeconds(&s.TaskTimeout, "TASK_TIMEOUT_SECONDS")
	setInt(&s.MaxHistoryTurns, "MAX_HISTORY_LENGTH")
	setInt(&s.HistoryTokenBudget, "HISTORY_TOKEN_BUDGET")
}

// Validate rejects settings that would break the session lifecycle
// invariants, in particular a keep-alive slower than the inactivity
// timeout (which would let the sweep evict in-flight sessions).
func (s *Settings) Validate() error {
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", s.MaxRetries)
	}
	if s.BreakerThreshold < 1 {
		return fmt.Errorf("breaker_threshold must be >= 1, got %d", s.BreakerThreshold)
	}
	if s.BreakerCooldown <= 0 {
		return fmt.Errorf("breaker_cooldown must be positive, got %s", s.BreakerCooldown)
	}
	if s.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity_timeout must be positive, got %s", s.InactivityTimeout)
	}
	if s.KeepAliveInterval <= 0 {
		return fmt.Errorf("keepalive_interval must be positive, got %s", s.KeepAliveInterval)
	}
	if s.KeepAliveInterval >= s.InactivityTimeout {
		return fmt.Errorf("keepalive_interval (%s) must be shorter than inactivity_timeout (%s)",
			s.KeepAliveInterval, s.InactivityTimeout)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", s.SweepInterval)
	}
	if s.RetryBaseDelay <= 0 || s.RetryMaxDelay < s.RetryBaseDelay {
		return fmt.Errorf("retry delays invalid: base %s, max %s", s.RetryBaseDelay, s.RetryMaxDelay)
	}
	if s.MaxHistoryTurns < 1 {
		return fmt.Errorf("max_history_turns must be >= 1, got %d", s.MaxHistoryTurns)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setSeconds(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
