// Package config provides configuration loading and validation for the harvester.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/repairharvest/pkg/checkpoint"
)

// Sentinel validation errors.
var (
	ErrNoCredentials     = errors.New("no GitHub credentials configured")
	ErrNoKeywords        = errors.New("search keywords must not be empty")
	ErrInvalidLanguage   = errors.New("search language must not be empty")
	ErrInvalidWindow     = errors.New("window days must be positive")
	ErrInvalidMaxPages   = errors.New("max pages must be positive")
	ErrInvalidOldest     = errors.New("oldest date must be YYYY-MM-DD")
	ErrInvalidMaxSamples = errors.New("max samples must be positive")
	ErrInvalidFilesLimit = errors.New("files limit must be positive")
	ErrInvalidPerPage    = errors.New("per page must be between 1 and 100")
	ErrInvalidRetries    = errors.New("max retries must not be negative")
	ErrInvalidLogFormat  = errors.New("log format must be text or json")
	ErrInvalidStorage    = errors.New("storage paths must not be empty")
)

// Default configuration values.
const (
	defaultRawURL      = "https://raw.githubusercontent.com/"
	defaultPerPage     = 100
	maxPerPage         = 100
	defaultCacheSize   = 256
	defaultLanguage    = "Python"
	defaultWindowDays  = 7
	defaultMaxPages    = 10
	defaultOldest      = "2008-01-01"
	defaultMaxSamples  = 3000
	defaultFilesLimit  = 3
	defaultMaxRetries  = 3
	defaultDataset     = "python_repairllama_dataset.csv"
	defaultSeen        = "seen_commits.txt"
	defaultCheckpoint  = "collector_state.json"
	defaultBackupDir   = "backups"
	logFormatText      = "text"
	logFormatJSON      = "json"
	envPrefix          = "REPAIRHARVEST"
	envTokens          = "GITHUB_TOKENS"
	envToken           = "GITHUB_TOKEN"
	defaultConfigName  = "repairharvest"
	defaultSystemPath  = "/etc/repairharvest"
	defaultSampleRatio = 1.0
)

// Config holds all configuration for the harvester.
type Config struct {
	GitHub        GitHubConfig        `mapstructure:"github"`
	Search        SearchConfig        `mapstructure:"search"`
	Collect       CollectConfig       `mapstructure:"collect"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// GitHubConfig holds API access settings.
type GitHubConfig struct {
	Tokens            []string      `mapstructure:"tokens"`
	APIURL            string        `mapstructure:"api_url"`
	RawURL            string        `mapstructure:"raw_url"`
	PerPage           int           `mapstructure:"per_page"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheSize         int           `mapstructure:"cache_size"`
}

// SearchConfig holds the crawl space.
type SearchConfig struct {
	Keywords   []string `mapstructure:"keywords"`
	Language   string   `mapstructure:"language"`
	WindowDays int      `mapstructure:"window_days"`
	MaxPages   int      `mapstructure:"max_pages"`
	// Oldest stops the crawl once windows end before this day.
	Oldest string `mapstructure:"oldest"`
}

// CollectConfig holds the sample target and filters.
type CollectConfig struct {
	MaxSamples      int      `mapstructure:"max_samples"`
	FilesLimit      int      `mapstructure:"files_limit"`
	Extensions      []string `mapstructure:"extensions"`
	SkipVendored    bool     `mapstructure:"skip_vendored"`
	MaxChangedLines int      `mapstructure:"max_changed_lines"`
}

// RetryConfig holds the request retry policy.
type RetryConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	Delay       time.Duration `mapstructure:"delay"`
	RotateDelay time.Duration `mapstructure:"rotate_delay"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// StorageConfig holds output and state file locations.
type StorageConfig struct {
	Dataset    string `mapstructure:"dataset"`
	Seen       string `mapstructure:"seen"`
	Checkpoint string `mapstructure:"checkpoint"`
	BackupDir  string `mapstructure:"backup_dir"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds telemetry export settings.
type ObservabilityConfig struct {
	Environment     string  `mapstructure:"environment"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string  `mapstructure:"otlp_headers"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
	Prometheus      bool    `mapstructure:"prometheus"`
	DiagnosticsAddr string  `mapstructure:"diagnostics_addr"`
}

// LoadConfig loads configuration from file and environment variables.
// Credentials fall back to GITHUB_TOKENS (comma separated) and GITHUB_TOKEN.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(defaultConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath(defaultSystemPath)
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	config.GitHub.Tokens = cleanList(config.GitHub.Tokens)
	if len(config.GitHub.Tokens) == 0 {
		config.GitHub.Tokens = tokensFromEnv()
	}

	config.Search.Keywords = cleanList(config.Search.Keywords)
	config.Collect.Extensions = cleanList(config.Collect.Extensions)

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// RequireCredentials reports ErrNoCredentials when the token pool is empty.
func (c *Config) RequireCredentials() error {
	if len(c.GitHub.Tokens) == 0 {
		return fmt.Errorf("%w: set github.tokens, %s_GITHUB_TOKENS, %s or %s",
			ErrNoCredentials, envPrefix, envTokens, envToken)
	}

	return nil
}

// OldestDay returns search.oldest as a day; empty means no limit.
func (c *Config) OldestDay() checkpoint.Day {
	if c.Search.Oldest == "" {
		return checkpoint.Day{}
	}

	day, err := checkpoint.ParseDay(c.Search.Oldest)
	if err != nil {
		return checkpoint.Day{}
	}

	return day
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// GitHub defaults.
	viperCfg.SetDefault("github.tokens", []string{})
	viperCfg.SetDefault("github.api_url", "")
	viperCfg.SetDefault("github.raw_url", defaultRawURL)
	viperCfg.SetDefault("github.per_page", defaultPerPage)
	viperCfg.SetDefault("github.timeout", "30s")
	viperCfg.SetDefault("github.requests_per_second", 0.0)
	viperCfg.SetDefault("github.cache_size", defaultCacheSize)

	// Search defaults.
	viperCfg.SetDefault("search.keywords", []string{"fix", "bug", "error", "issue", "exception", "crash", "typo"})
	viperCfg.SetDefault("search.language", defaultLanguage)
	viperCfg.SetDefault("search.window_days", defaultWindowDays)
	viperCfg.SetDefault("search.max_pages", defaultMaxPages)
	viperCfg.SetDefault("search.oldest", defaultOldest)

	// Collect defaults.
	viperCfg.SetDefault("collect.max_samples", defaultMaxSamples)
	viperCfg.SetDefault("collect.files_limit", defaultFilesLimit)
	viperCfg.SetDefault("collect.extensions", []string{".py"})
	viperCfg.SetDefault("collect.skip_vendored", false)
	viperCfg.SetDefault("collect.max_changed_lines", 0)

	// Retry defaults.
	viperCfg.SetDefault("retry.max_retries", defaultMaxRetries)
	viperCfg.SetDefault("retry.delay", "3s")
	viperCfg.SetDefault("retry.rotate_delay", "1s")
	viperCfg.SetDefault("retry.cooldown", "1h")

	// Storage defaults.
	viperCfg.SetDefault("storage.dataset", defaultDataset)
	viperCfg.SetDefault("storage.seen", defaultSeen)
	viperCfg.SetDefault("storage.checkpoint", defaultCheckpoint)
	viperCfg.SetDefault("storage.backup_dir", defaultBackupDir)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", logFormatText)

	// Observability defaults.
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.sample_ratio", defaultSampleRatio)
	viperCfg.SetDefault("observability.prometheus", false)
	viperCfg.SetDefault("observability.diagnostics_addr", "")
}

// validateConfig validates the configuration. Credentials are checked
// separately by RequireCredentials since only collection needs them.
func validateConfig(config *Config) error {
	switch {
	case len(config.Search.Keywords) == 0:
		return ErrNoKeywords
	case strings.TrimSpace(config.Search.Language) == "":
		return ErrInvalidLanguage
	case config.Search.WindowDays <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidWindow, config.Search.WindowDays)
	case config.Search.MaxPages <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidMaxPages, config.Search.MaxPages)
	case config.Collect.MaxSamples <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidMaxSamples, config.Collect.MaxSamples)
	case config.Collect.FilesLimit <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidFilesLimit, config.Collect.FilesLimit)
	case config.GitHub.PerPage <= 0 || config.GitHub.PerPage > maxPerPage:
		return fmt.Errorf("%w: %d", ErrInvalidPerPage, config.GitHub.PerPage)
	case config.Retry.MaxRetries < 0:
		return fmt.Errorf("%w: %d", ErrInvalidRetries, config.Retry.MaxRetries)
	case config.Logging.Format != logFormatText && config.Logging.Format != logFormatJSON:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	case config.Storage.Dataset == "" || config.Storage.Seen == "" || config.Storage.Checkpoint == "":
		return ErrInvalidStorage
	}

	if config.Search.Oldest != "" {
		_, err := checkpoint.ParseDay(config.Search.Oldest)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOldest, err)
		}
	}

	return nil
}

func tokensFromEnv() []string {
	if raw := os.Getenv(envTokens); raw != "" {
		return cleanList(strings.Split(raw, ","))
	}

	return cleanList([]string{os.Getenv(envToken)})
}

// cleanList trims entries and drops blanks.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}

	return out
}
