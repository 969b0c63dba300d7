package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	RateLimit   RateLimitConfig `toml:"ratelimit"`
	Executor    ExecutorConfig  `toml:"executor"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// RateLimitConfig governs the shared external-API pacing. The backoff window
// itself is driven by observed rate-limit hits; these settings only bound the
// steady-state spawn rate between hits.
type RateLimitConfig struct {
	SpawnsPerSecond int `toml:"spawns_per_second"` // Steady-state spawn rate against the external API
	Burst           int `toml:"burst"`             // Burst allowance after an idle period
}

// ExecutorConfig contains configuration for spawned job commands
type ExecutorConfig struct {
	Binary         string `toml:"binary"`          // CLI binary the job commands run through
	WorkDir        string `toml:"work_dir"`        // Working directory for spawned commands ("" = inherit)
	CommandTimeout string `toml:"command_timeout"` // e.g., "30m" - per-job wall clock limit ("" = no limit)
}

// Timeout parses the command timeout duration string. Unset or invalid
// values mean no limit.
func (c ExecutorConfig) Timeout() time.Duration {
	if c.CommandTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return 0
	}
	return d
}

// SchedulerConfig contains configuration for recurring status-sync jobs
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format, minimum 5-minute interval
}

// NewDefaultConfig returns the baseline configuration before file/env/flag overrides
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/conductor",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		RateLimit: RateLimitConfig{
			SpawnsPerSecond: 2,
			Burst:           4,
		},
		Executor: ExecutorConfig{
			Binary:         "docsctl",
			WorkDir:        "",
			CommandTimeout: "30m",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "*/30 * * * *",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CONDUCTOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("CONDUCTOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CONDUCTOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("CONDUCTOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("CONDUCTOR_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	// Logging configuration
	if level := os.Getenv("CONDUCTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CONDUCTOR_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Rate limit configuration
	if sps := os.Getenv("CONDUCTOR_RATELIMIT_SPAWNS_PER_SECOND"); sps != "" {
		if n, err := strconv.Atoi(sps); err == nil {
			config.RateLimit.SpawnsPerSecond = n
		}
	}
	if burst := os.Getenv("CONDUCTOR_RATELIMIT_BURST"); burst != "" {
		if n, err := strconv.Atoi(burst); err == nil {
			config.RateLimit.Burst = n
		}
	}

	// Executor configuration
	if binary := os.Getenv("CONDUCTOR_EXECUTOR_BINARY"); binary != "" {
		config.Executor.Binary = binary
	}
	if workDir := os.Getenv("CONDUCTOR_EXECUTOR_WORK_DIR"); workDir != "" {
		config.Executor.WorkDir = workDir
	}
	if timeout := os.Getenv("CONDUCTOR_EXECUTOR_COMMAND_TIMEOUT"); timeout != "" {
		config.Executor.CommandTimeout = timeout
	}

	// Scheduler configuration
	if enabled := os.Getenv("CONDUCTOR_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("CONDUCTOR_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateSchedule validates a cron expression and enforces a minimum
// 5-minute interval so the sync jobs cannot hammer the rate-limited API.
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		if interval, err := strconv.Atoi(intervalStr); err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
