package config

const (
	defaultDatabasePath    = "~/.local/share/gleaner/gleaner.db"
	defaultLogDir          = "~/.local/share/gleaner/logs"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultTMDBBaseURL     = "https://api.themoviedb.org/3"
	defaultTMDBLanguage    = "en-US"
	defaultTMDBBaseDelay   = 50
	defaultTMDBMaxDelay    = 5000
	defaultTMDBRetries     = 5
	defaultTMDBRetryFloor  = 1000
	defaultTMDBRetryCap    = 30000
	defaultTMDBCeiling     = 40.0
	defaultWikiRestURL     = "https://en.wikipedia.org/api/rest_v1"
	defaultWikiActionURL   = "https://en.wikipedia.org/w/api.php"
	defaultWikiUserAgent   = "gleaner/1.0 (https://github.com/gleaner/gleaner)"
	defaultWikiRestDelay   = 100
	defaultWikiActionDelay = 8000
	defaultWikidataSparql  = "https://query.wikidata.org/sparql"
	defaultWikidataDelay   = 1000
	defaultSecondaryRetry  = 3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Database: Database{
			Path: defaultDatabasePath,
		},
		TMDB: TMDB{
			BaseURL:       defaultTMDBBaseURL,
			Language:      defaultTMDBLanguage,
			BaseDelayMs:   defaultTMDBBaseDelay,
			MaxDelayMs:    defaultTMDBMaxDelay,
			MaxRetries:    defaultTMDBRetries,
			RetryFloorMs:  defaultTMDBRetryFloor,
			RetryCapMs:    defaultTMDBRetryCap,
			CeilingPerSec: defaultTMDBCeiling,
		},
		Wikipedia: Wikipedia{
			RestBaseURL:   defaultWikiRestURL,
			ActionBaseURL: defaultWikiActionURL,
			UserAgent:     defaultWikiUserAgent,
			RestDelayMs:   defaultWikiRestDelay,
			ActionDelayMs: defaultWikiActionDelay,
			MaxRetries:    defaultSecondaryRetry,
		},
		Wikidata: Wikidata{
			SparqlURL:  defaultWikidataSparql,
			UserAgent:  defaultWikiUserAgent,
			DelayMs:    defaultWikidataDelay,
			MaxRetries: defaultSecondaryRetry,
		},
		Harvest: Harvest{
			Strategies:          []string{"breadth", "delta"},
			MaxPagesPerRegion:   500,
			SequentialChunkSize: 100,
			SequentialGateWidth: 5,
			DeltaDaysBack:       14,
			ChangesPageCap:      50,
			IngestPriority:      5,
		},
		Enrichment: Enrichment{
			ContentBatchSize: 500,
			PeopleBatchSize:  300,
			GateWidth:        20,
			CycleCount:       9,
			KeywordCap:       20,
			RelatedCap:       20,
		},
		Sync: Sync{
			DaysBack:        1,
			PageCap:         10,
			RefreshPriority: 3,
		},
		Quality: Quality{
			RequeueThreshold: 50,
			RequeueTop:       100,
			RequeuePriority:  8,
		},
		Breaker: Breaker{
			Enabled:         true,
			MinRequests:     10,
			FailureRatio:    0.6,
			WindowSeconds:   60,
			CooldownSeconds: 120,
		},
		Runner: Runner{
			Tasks:              []string{"harvest", "enrich-content", "enrich-people", "sync"},
			HarvestInterval:    86400,
			EnrichInterval:     3600,
			SyncInterval:       21600,
			QualityInterval:    604800,
			ErrorRetryInterval: 30,
		},
		Logging: Logging{
			Format:    defaultLogFormat,
			Level:     defaultLogLevel,
			Directory: defaultLogDir,
		},
	}
}
