package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeWiki()
	c.normalizeHarvest()
	c.normalizeRunner()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	if strings.TrimSpace(c.Logging.Directory) != "" {
		if c.Logging.Directory, err = expandPath(c.Logging.Directory); err != nil {
			return fmt.Errorf("logging.directory: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeWiki() {
	c.Wikipedia.RestBaseURL = strings.TrimRight(strings.TrimSpace(c.Wikipedia.RestBaseURL), "/")
	if c.Wikipedia.RestBaseURL == "" {
		c.Wikipedia.RestBaseURL = defaultWikiRestURL
	}
	c.Wikipedia.ActionBaseURL = strings.TrimSpace(c.Wikipedia.ActionBaseURL)
	if c.Wikipedia.ActionBaseURL == "" {
		c.Wikipedia.ActionBaseURL = defaultWikiActionURL
	}
	c.Wikipedia.UserAgent = strings.TrimSpace(c.Wikipedia.UserAgent)
	if c.Wikipedia.UserAgent == "" {
		c.Wikipedia.UserAgent = defaultWikiUserAgent
	}
	c.Wikidata.SparqlURL = strings.TrimSpace(c.Wikidata.SparqlURL)
	if c.Wikidata.SparqlURL == "" {
		c.Wikidata.SparqlURL = defaultWikidataSparql
	}
	c.Wikidata.UserAgent = strings.TrimSpace(c.Wikidata.UserAgent)
	if c.Wikidata.UserAgent == "" {
		c.Wikidata.UserAgent = c.Wikipedia.UserAgent
	}
}

func (c *Config) normalizeHarvest() {
	seen := make(map[string]struct{}, len(c.Harvest.Strategies))
	normalized := make([]string, 0, len(c.Harvest.Strategies))
	for _, strategy := range c.Harvest.Strategies {
		name := strings.ToLower(strings.TrimSpace(strategy))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		normalized = append(normalized, name)
	}
	c.Harvest.Strategies = normalized
}

func (c *Config) normalizeRunner() {
	seen := make(map[string]struct{}, len(c.Runner.Tasks))
	normalized := make([]string, 0, len(c.Runner.Tasks))
	for _, task := range c.Runner.Tasks {
		name := strings.ToLower(strings.TrimSpace(task))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		normalized = append(normalized, name)
	}
	c.Runner.Tasks = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
