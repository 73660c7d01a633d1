package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// DefaultTimezone is the IANA zone given to users created on first contact.
	// Empty means UTC.
	DefaultTimezone string `json:"default_timezone,omitempty"`

	// HistoryDays is how many days of recent entries the analyzer sees.
	HistoryDays int `json:"history_days"`

	Analyzer AnalyzerConfig `json:"analyzer"`
	Server   ServerConfig   `json:"server"`
	Log      LogConfig      `json:"log"`

	// SentryDSN enables error reporting when set.
	SentryDSN string `json:"sentry_dsn,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// AnalyzerConfig configures the OpenAI-compatible chat completions provider.
type AnalyzerConfig struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model"`

	// TimeoutSeconds bounds each provider call, including the HTTP round trip.
	TimeoutSeconds int `json:"timeout_seconds"`

	FoodTemperature     float64 `json:"food_temperature"`
	QuestionTemperature float64 `json:"question_temperature"`
	MaxTokens           int     `json:"max_tokens"`
}

// Timeout returns TimeoutSeconds as a duration.
func (a AnalyzerConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Bind string `json:"bind"`
	Port int    `json:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Bind + ":" + strconv.Itoa(s.Port)
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HistoryDays: 7,
		Analyzer: AnalyzerConfig{
			APIURL:              "https://api.openai.com/v1/chat/completions",
			Model:               "gpt-4o-mini",
			TimeoutSeconds:      30,
			FoodTemperature:     0.3,
			QuestionTemperature: 0.7,
			MaxTokens:           500,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.nosh.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.nosh) and repo (.nosh) directories.
// Repo config is found by walking upward from startDir to find the nearest .nosh/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .nosh/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".nosh", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg with values from environment variables and returns it.
func ApplyEnv(cfg *Config) *Config {
	cfg.Analyzer.APIKey = getEnv("OPENAI_API_KEY", cfg.Analyzer.APIKey)
	cfg.Analyzer.APIURL = getEnv("OPENAI_API_URL", cfg.Analyzer.APIURL)
	cfg.Analyzer.Model = getEnv("OPENAI_MODEL", cfg.Analyzer.Model)
	if v := os.Getenv("AI_TIMEOUT"); v != "" {
		if d := parseDuration(v); d > 0 {
			cfg.Analyzer.TimeoutSeconds = int(d.Seconds())
		}
	}
	cfg.DefaultTimezone = getEnv("NOSH_TIMEZONE", cfg.DefaultTimezone)
	cfg.SentryDSN = getEnv("SENTRY_DSN", cfg.SentryDSN)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// parseDuration accepts Go durations ("45s") or a bare number of seconds.
func parseDuration(s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.DefaultTimezone = pickString(overlay.DefaultTimezone, base.DefaultTimezone)
	result.HistoryDays = pickInt(overlay.HistoryDays, base.HistoryDays)
	result.SentryDSN = pickString(overlay.SentryDSN, base.SentryDSN)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.Analyzer = AnalyzerConfig{
		APIURL:              pickString(overlay.Analyzer.APIURL, base.Analyzer.APIURL),
		APIKey:              pickString(overlay.Analyzer.APIKey, base.Analyzer.APIKey),
		Model:               pickString(overlay.Analyzer.Model, base.Analyzer.Model),
		TimeoutSeconds:      pickInt(overlay.Analyzer.TimeoutSeconds, base.Analyzer.TimeoutSeconds),
		FoodTemperature:     pickFloat(overlay.Analyzer.FoodTemperature, base.Analyzer.FoodTemperature),
		QuestionTemperature: pickFloat(overlay.Analyzer.QuestionTemperature, base.Analyzer.QuestionTemperature),
		MaxTokens:           pickInt(overlay.Analyzer.MaxTokens, base.Analyzer.MaxTokens),
	}
	result.Server = ServerConfig{
		Bind: pickString(overlay.Server.Bind, base.Server.Bind),
		Port: pickInt(overlay.Server.Port, base.Server.Port),
	}
	result.Log = LogConfig{
		Level:  pickString(overlay.Log.Level, base.Log.Level),
		Format: pickString(overlay.Log.Format, base.Log.Format),
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickFloat(overlay, base float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
