package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/provider/openai"
)

// Config represents the task routing service configuration.
type Config struct {
	Log        observability.LogConfig
	Server     ServerConfig
	CORS       CORSConfig
	OpenAI     openai.Config
	Routing    RoutingConfig
	Complexity ComplexityConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Batch      BatchConfig
	Monitor    MonitorConfig
	Feedback   FeedbackConfig
	Store      StoreConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RoutingConfig maps tiers to models and bounds each model call.
type RoutingConfig struct {
	EconomyModel          string        `env:"ROUTING_ECONOMY_MODEL"           envDefault:"gpt-3.5-turbo"`
	ReasoningModel        string        `env:"ROUTING_REASONING_MODEL"         envDefault:"gpt-4o"`
	StructuredModel       string        `env:"ROUTING_STRUCTURED_MODEL"        envDefault:"gpt-4-turbo"`
	BalancedModel         string        `env:"ROUTING_BALANCED_MODEL"          envDefault:"gpt-4o-mini"`
	CostPriorityThreshold float64       `env:"ROUTING_COST_PRIORITY_THRESHOLD" envDefault:"0.6"`
	CallTimeout           time.Duration `env:"ROUTING_CALL_TIMEOUT"            envDefault:"60s"`
	MaxAttempts           int           `env:"ROUTING_MAX_ATTEMPTS"            envDefault:"3"`
	BackoffBase           time.Duration `env:"ROUTING_BACKOFF_BASE"            envDefault:"200ms"`
	BackoffMax            time.Duration `env:"ROUTING_BACKOFF_MAX"             envDefault:"2s"`
}

// ComplexityConfig sets the word-count boundaries between complexity tiers.
type ComplexityConfig struct {
	SimpleMaxWords   int `env:"COMPLEXITY_SIMPLE_MAX_WORDS"   envDefault:"500"`
	ModerateMaxWords int `env:"COMPLEXITY_MODERATE_MAX_WORDS" envDefault:"2000"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	Driver         string        `env:"CACHE_DRIVER"                   envDefault:"memory"`
	TTL            time.Duration `env:"CACHE_TTL"                      envDefault:"24h"`
	Namespace      string        `env:"CACHE_NAMESPACE"                envDefault:"taskcache"`
	TenantScoped   bool          `env:"CACHE_TENANT_SCOPED"            envDefault:"false"`
	PrefixBytes    int           `env:"CACHE_FINGERPRINT_PREFIX_BYTES" envDefault:"8192"`
	SweepInterval  time.Duration `env:"CACHE_SWEEP_INTERVAL"           envDefault:"5m"`
	CoalesceMisses bool          `env:"CACHE_COALESCE_MISSES"          envDefault:"true"`
	SQLitePath     string        `env:"CACHE_SQLITE_PATH"              envDefault:"taskcache.db"`
}

// RedisConfig contains Redis connection settings shared by the cache and the
// alert channel.
type RedisConfig struct {
	Addr         string `env:"REDIS_ADDR"          envDefault:"localhost:6379"`
	Password     string `env:"REDIS_PASSWORD"`
	DB           int    `env:"REDIS_DB"            envDefault:"0"`
	AlertChannel string `env:"REDIS_ALERT_CHANNEL"`
}

// BatchConfig bounds request batching.
type BatchConfig struct {
	Enabled        bool          `env:"BATCH_ENABLED"         envDefault:"true"`
	MaxSize        int           `env:"BATCH_MAX_SIZE"        envDefault:"8"`
	Window         time.Duration `env:"BATCH_WINDOW"          envDefault:"50ms"`
	LatencyCeiling time.Duration `env:"BATCH_LATENCY_CEILING" envDefault:"2s"`
}

// MonitorConfig tunes drift detection.
type MonitorConfig struct {
	MinSamples     int           `env:"MONITOR_MIN_SAMPLES"     envDefault:"20"`
	DriftThreshold float64       `env:"MONITOR_DRIFT_THRESHOLD" envDefault:"0.05"`
	ReportTTL      time.Duration `env:"MONITOR_REPORT_TTL"      envDefault:"5m"`
}

// FeedbackConfig sets the retraining trigger.
type FeedbackConfig struct {
	NegativeRateThreshold float64       `env:"FEEDBACK_NEGATIVE_RATE_THRESHOLD" envDefault:"0.15"`
	MinEvents             int           `env:"FEEDBACK_MIN_EVENTS"              envDefault:"20"`
	Window                time.Duration `env:"FEEDBACK_WINDOW"                  envDefault:"720h"`
}

// StoreConfig selects the durable prediction/feedback store.
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER"      envDefault:"memory"`
	SQLitePath  string `env:"STORE_SQLITE_PATH" envDefault:"predictions.db"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*observability.LogConfig
	*ServerConfig
	*CORSConfig
	*openai.Config
	*RoutingConfig
	*ComplexityConfig
	*CacheConfig
	*RedisConfig
	*BatchConfig
	*MonitorConfig
	*FeedbackConfig
	*StoreConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return &cfg
}

// Validate rejects unknown drivers and inverted bounds.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "memory", "redis", "sqlite", "none":
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}

	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Complexity.SimpleMaxWords >= c.Complexity.ModerateMaxWords {
		return fmt.Errorf("COMPLEXITY_SIMPLE_MAX_WORDS (%d) must be below COMPLEXITY_MODERATE_MAX_WORDS (%d)",
			c.Complexity.SimpleMaxWords, c.Complexity.ModerateMaxWords)
	}

	if c.Routing.CostPriorityThreshold < 0 || c.Routing.CostPriorityThreshold > 1 {
		return fmt.Errorf("ROUTING_COST_PRIORITY_THRESHOLD must be within [0,1], got %g", c.Routing.CostPriorityThreshold)
	}

	return nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Log,
		&cfg.Server,
		&cfg.CORS,
		&cfg.OpenAI,
		&cfg.Routing,
		&cfg.Complexity,
		&cfg.Cache,
		&cfg.Redis,
		&cfg.Batch,
		&cfg.Monitor,
		&cfg.Feedback,
		&cfg.Store,
	}
}
