package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownStrategies = map[string]struct{}{
	"breadth":    {},
	"sequential": {},
	"delta":      {},
}

var knownTasks = map[string]struct{}{
	"harvest":        {},
	"enrich-content": {},
	"enrich-people":  {},
	"enrich-wiki":    {},
	"sync":           {},
	"quality":        {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateHarvest(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/gleaner/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'gleaner config init')", defaultPath)
	}
	if err := ensurePositiveMap(map[string]int{
		"tmdb.base_delay_ms":  c.TMDB.BaseDelayMs,
		"tmdb.max_delay_ms":   c.TMDB.MaxDelayMs,
		"tmdb.max_retries":    c.TMDB.MaxRetries,
		"tmdb.retry_floor_ms": c.TMDB.RetryFloorMs,
		"tmdb.retry_cap_ms":   c.TMDB.RetryCapMs,
	}); err != nil {
		return err
	}
	if c.TMDB.MaxDelayMs < c.TMDB.BaseDelayMs {
		return errors.New("tmdb.max_delay_ms must be at least tmdb.base_delay_ms")
	}
	if c.TMDB.RetryCapMs < c.TMDB.RetryFloorMs {
		return errors.New("tmdb.retry_cap_ms must be at least tmdb.retry_floor_ms")
	}
	if c.TMDB.CeilingPerSec <= 0 {
		return errors.New("tmdb.ceiling_per_sec must be positive")
	}
	return nil
}

func (c *Config) validateSources() error {
	return ensurePositiveMap(map[string]int{
		"wikipedia.rest_delay_ms":   c.Wikipedia.RestDelayMs,
		"wikipedia.action_delay_ms": c.Wikipedia.ActionDelayMs,
		"wikipedia.max_retries":     c.Wikipedia.MaxRetries,
		"wikidata.delay_ms":         c.Wikidata.DelayMs,
		"wikidata.max_retries":      c.Wikidata.MaxRetries,
	})
}

func (c *Config) validateHarvest() error {
	for _, strategy := range c.Harvest.Strategies {
		if _, ok := knownStrategies[strategy]; !ok {
			return fmt.Errorf("harvest.strategies contains unknown strategy %q", strategy)
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"harvest.max_pages_per_region":  c.Harvest.MaxPagesPerRegion,
		"harvest.sequential_chunk_size": c.Harvest.SequentialChunkSize,
		"harvest.sequential_gate_width": c.Harvest.SequentialGateWidth,
		"harvest.delta_days_back":       c.Harvest.DeltaDaysBack,
		"harvest.changes_page_cap":      c.Harvest.ChangesPageCap,
	}); err != nil {
		return err
	}
	if c.Harvest.IngestPriority < 0 || c.Harvest.IngestPriority > 10 {
		return errors.New("harvest.ingest_priority must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if err := ensurePositiveMap(map[string]int{
		"enrichment.content_batch_size": c.Enrichment.ContentBatchSize,
		"enrichment.people_batch_size":  c.Enrichment.PeopleBatchSize,
		"enrichment.gate_width":         c.Enrichment.GateWidth,
		"enrichment.cycle_count":        c.Enrichment.CycleCount,
		"enrichment.keyword_cap":        c.Enrichment.KeywordCap,
		"enrichment.related_cap":        c.Enrichment.RelatedCap,
	}); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"sync.days_back": c.Sync.DaysBack,
		"sync.page_cap":  c.Sync.PageCap,
	}); err != nil {
		return err
	}
	if c.Sync.RefreshPriority < 0 || c.Sync.RefreshPriority > 10 {
		return errors.New("sync.refresh_priority must be between 0 and 10")
	}
	if c.Quality.RequeueThreshold < 0 || c.Quality.RequeueThreshold > 100 {
		return errors.New("quality.requeue_threshold must be between 0 and 100")
	}
	if c.Quality.RequeueTop <= 0 {
		return errors.New("quality.requeue_top must be positive")
	}
	if c.Quality.RequeuePriority < 0 || c.Quality.RequeuePriority > 10 {
		return errors.New("quality.requeue_priority must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if !c.Breaker.Enabled {
		return nil
	}
	if c.Breaker.MinRequests <= 0 {
		return errors.New("breaker.min_requests must be positive")
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		return errors.New("breaker.failure_ratio must be in (0, 1]")
	}
	return ensurePositiveMap(map[string]int{
		"breaker.window_seconds":   c.Breaker.WindowSeconds,
		"breaker.cooldown_seconds": c.Breaker.CooldownSeconds,
	})
}

func (c *Config) validateRunner() error {
	for _, task := range c.Runner.Tasks {
		if _, ok := knownTasks[task]; !ok {
			return fmt.Errorf("runner.tasks contains unknown task %q", task)
		}
	}
	return ensurePositiveMap(map[string]int{
		"runner.harvest_interval":     c.Runner.HarvestInterval,
		"runner.enrich_interval":      c.Runner.EnrichInterval,
		"runner.sync_interval":        c.Runner.SyncInterval,
		"runner.quality_interval":     c.Runner.QualityInterval,
		"runner.error_retry_interval": c.Runner.ErrorRetryInterval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
