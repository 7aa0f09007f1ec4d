package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// MaxTokens is the token budget assigned to each new context.
	// Existing contexts keep the budget they were created with.
	MaxTokens int `json:"max_tokens"`

	// CompactionThreshold is the fraction of the budget (0..1) at which
	// a context's history is compacted into a summary turn.
	CompactionThreshold float64 `json:"compaction_threshold"`

	// RecencyWindowSize is the number of most recent turns always kept
	// verbatim across a compaction.
	RecencyWindowSize int `json:"recency_window_size"`

	// ModelEndpoint is the base URL of the OpenAI-compatible endpoint
	// used for token counting and summary generation.
	ModelEndpoint string `json:"model_endpoint,omitempty"`

	// CountTimeoutSeconds bounds a single token-counting call.
	// On timeout the local estimate is used instead.
	CountTimeoutSeconds int `json:"count_timeout_seconds,omitempty"`

	// GenerateTimeoutSeconds bounds a single summary-generation call.
	GenerateTimeoutSeconds int `json:"generate_timeout_seconds,omitempty"`

	// SummaryTemperature is the sampling temperature for summary generation.
	SummaryTemperature float64 `json:"summary_temperature,omitempty"`

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

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxTokens:              1_000_000,
		CompactionThreshold:    0.9,
		RecencyWindowSize:      10,
		ModelEndpoint:          "http://127.0.0.1:8080",
		CountTimeoutSeconds:    10,
		GenerateTimeoutSeconds: 120,
		SummaryTemperature:     0.3,
	}
}

// CountTimeout returns the bounded timeout for a token-counting call.
func (c *Config) CountTimeout() time.Duration {
	return time.Duration(c.CountTimeoutSeconds) * time.Second
}

// GenerateTimeout returns the bounded timeout for a summary-generation call.
func (c *Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.braid.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.braid) and repo (.braid) directories.
// Repo config is found by walking upward from startDir to find the nearest .braid/config.json.
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

// FindRepoConfig walks upward from startDir to find the nearest .braid/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".braid", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || configPath == "" {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
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

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MaxTokens = overlay.MaxTokens
	if result.MaxTokens == 0 {
		result.MaxTokens = base.MaxTokens
	}

	result.CompactionThreshold = overlay.CompactionThreshold
	if result.CompactionThreshold == 0 {
		result.CompactionThreshold = base.CompactionThreshold
	}

	result.RecencyWindowSize = overlay.RecencyWindowSize
	if result.RecencyWindowSize == 0 {
		result.RecencyWindowSize = base.RecencyWindowSize
	}

	result.ModelEndpoint = strings.TrimSpace(overlay.ModelEndpoint)
	if result.ModelEndpoint == "" {
		result.ModelEndpoint = base.ModelEndpoint
	}

	result.CountTimeoutSeconds = overlay.CountTimeoutSeconds
	if result.CountTimeoutSeconds == 0 {
		result.CountTimeoutSeconds = base.CountTimeoutSeconds
	}

	result.GenerateTimeoutSeconds = overlay.GenerateTimeoutSeconds
	if result.GenerateTimeoutSeconds == 0 {
		result.GenerateTimeoutSeconds = base.GenerateTimeoutSeconds
	}

	result.SummaryTemperature = overlay.SummaryTemperature
	if result.SummaryTemperature == 0 {
		result.SummaryTemperature = base.SummaryTemperature
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
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
