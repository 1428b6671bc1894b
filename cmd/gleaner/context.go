package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"gleaner/internal/catalog"
	"gleaner/internal/config"
	"gleaner/internal/logging"
	"gleaner/internal/sources/tmdb"
	"gleaner/internal/sources/wikidata"
	"gleaner/internal/sources/wikipedia"
)

// commandContext carries state shared across the command tree. Config and
// logger are resolved once per invocation, on first use.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	logger  *slog.Logger
	logErr  error
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err
			return
		}
		c.logger, c.logErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.logErr
}

// withRunLock holds the pipeline lock for the duration of fn so overlapping
// cron invocations cannot double-run, and a one-shot command cannot run
// beside a resident pipeline. Inspection commands skip this.
func (c *commandContext) withRunLock(fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another pipeline run holds %s", cfg.LockPath())
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

// withStore opens the catalog for the duration of fn and closes it after.
func (c *commandContext) withStore(fn func(store *catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) tmdbClient() (*tmdb.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return tmdb.NewFromConfig(cfg, logger)
}

func (c *commandContext) wikipediaClient() (*wikipedia.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return wikipedia.NewFromConfig(cfg, logger)
}

func (c *commandContext) wikidataClient() (*wikidata.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return wikidata.NewFromConfig(cfg, logger)
}
