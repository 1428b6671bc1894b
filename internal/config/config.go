package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Database contains settings for the catalog database.
type Database struct {
	Path string `toml:"path"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey        string  `toml:"api_key"`
	BaseURL       string  `toml:"base_url"`
	Language      string  `toml:"language"`
	BaseDelayMs   int     `toml:"base_delay_ms"`
	MaxDelayMs    int     `toml:"max_delay_ms"`
	MaxRetries    int     `toml:"max_retries"`
	RetryFloorMs  int     `toml:"retry_floor_ms"`
	RetryCapMs    int     `toml:"retry_cap_ms"`
	CeilingPerSec float64 `toml:"ceiling_per_sec"`
}

// Wikipedia contains configuration for the Wikipedia REST and Action APIs.
type Wikipedia struct {
	RestBaseURL   string `toml:"rest_base_url"`
	ActionBaseURL string `toml:"action_base_url"`
	UserAgent     string `toml:"user_agent"`
	RestDelayMs   int    `toml:"rest_delay_ms"`
	ActionDelayMs int    `toml:"action_delay_ms"`
	MaxRetries    int    `toml:"max_retries"`
}

// Wikidata contains configuration for the Wikidata SPARQL endpoint.
type Wikidata struct {
	SparqlURL  string `toml:"sparql_url"`
	UserAgent  string `toml:"user_agent"`
	DelayMs    int    `toml:"delay_ms"`
	MaxRetries int    `toml:"max_retries"`
}

// Harvest contains configuration for the id discovery strategies.
type Harvest struct {
	Strategies          []string `toml:"strategies"`
	MaxPagesPerRegion   int      `toml:"max_pages_per_region"`
	SequentialChunkSize int      `toml:"sequential_chunk_size"`
	SequentialGateWidth int      `toml:"sequential_gate_width"`
	DeltaDaysBack       int      `toml:"delta_days_back"`
	ChangesPageCap      int      `toml:"changes_page_cap"`
	IngestPriority      int      `toml:"ingest_priority"`
}

// Enrichment contains configuration for the enrichment passes.
type Enrichment struct {
	ContentBatchSize int `toml:"content_batch_size"`
	PeopleBatchSize  int `toml:"people_batch_size"`
	GateWidth        int `toml:"gate_width"`
	CycleCount       int `toml:"cycle_count"`
	KeywordCap       int `toml:"keyword_cap"`
	RelatedCap       int `toml:"related_cap"`
}

// Sync contains configuration for the change-feed refresh run.
type Sync struct {
	DaysBack        int `toml:"days_back"`
	PageCap         int `toml:"page_cap"`
	RefreshPriority int `toml:"refresh_priority"`
}

// Quality contains configuration for the data quality analyzer.
type Quality struct {
	RequeueThreshold int `toml:"requeue_threshold"`
	RequeueTop       int `toml:"requeue_top"`
	RequeuePriority  int `toml:"requeue_priority"`
}

// Breaker contains circuit breaker settings applied per external source.
type Breaker struct {
	Enabled         bool    `toml:"enabled"`
	MinRequests     int     `toml:"min_requests"`
	FailureRatio    float64 `toml:"failure_ratio"`
	WindowSeconds   int     `toml:"window_seconds"`
	CooldownSeconds int     `toml:"cooldown_seconds"`
}

// Runner contains configuration for the resident run mode.
type Runner struct {
	Tasks              []string `toml:"tasks"`
	HarvestInterval    int      `toml:"harvest_interval"`
	EnrichInterval     int      `toml:"enrich_interval"`
	SyncInterval       int      `toml:"sync_interval"`
	QualityInterval    int      `toml:"quality_interval"`
	ErrorRetryInterval int      `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format    string `toml:"format"`
	Level     string `toml:"level"`
	Directory string `toml:"directory"`
}

// Config encapsulates all configuration values for the pipeline.
//
// Configuration sections by subsystem:
//   - Database: catalog database location
//   - TMDB: primary metadata source and its pacing/retry budget
//   - Wikipedia, Wikidata: secondary enrichment sources
//   - Harvest: discovery strategy selection and page caps
//   - Enrichment: batch sizes, gate width, cycle buckets
//   - Sync: change-feed refresh window
//   - Quality: analyzer thresholds and re-queue policy
//   - Breaker: per-source circuit breaker settings
//   - Runner: resident mode task intervals
//   - Logging: log format, level, and directory
type Config struct {
	Database   Database   `toml:"database"`
	TMDB       TMDB       `toml:"tmdb"`
	Wikipedia  Wikipedia  `toml:"wikipedia"`
	Wikidata   Wikidata   `toml:"wikidata"`
	Harvest    Harvest    `toml:"harvest"`
	Enrichment Enrichment `toml:"enrichment"`
	Sync       Sync       `toml:"sync"`
	Quality    Quality    `toml:"quality"`
	Breaker    Breaker    `toml:"breaker"`
	Runner     Runner     `toml:"runner"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/gleaner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	if env := strings.TrimSpace(os.Getenv("GLEANER_CONFIG")); env != "" {
		expanded, err := expandPath(env)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(expanded); err == nil && !info.IsDir() {
			return expanded, true, nil
		}
		return expanded, false, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gleaner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Database.Path)}
	if strings.TrimSpace(c.Logging.Directory) != "" {
		dirs = append(dirs, c.Logging.Directory)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the flock path guarding pipeline runs against overlap.
func (c *Config) LockPath() string {
	return filepath.Join(filepath.Dir(c.Database.Path), "gleaner.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
