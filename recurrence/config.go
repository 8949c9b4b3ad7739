package recurrence

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/cyp0633/librecur/recur"
)

// EnvPrefix prefixes every environment variable LoadEngineConfig reads.
const EnvPrefix = "LIBRECUR_"

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool        `env:"CACHE_ENABLED" envDefault:"true"`
	CacheConfig  CacheConfig `envPrefix:"CACHE_"`

	// Performance tuning
	MaxExpansionOccurrences int `env:"MAX_EXPANSION_OCCURRENCES" envDefault:"100"` // Maximum occurrences to check in HasOccurrenceInRange

	// Iterator limits, passed on as recur options
	MaxIdleYears    int  `env:"MAX_IDLE_YEARS" envDefault:"1000"`
	MaxPeriodSize   int  `env:"MAX_PERIOD_SIZE" envDefault:"0"`
	LenientSetPos   bool `env:"LENIENT_SETPOS" envDefault:"false"`
	AllowDuplicates bool `env:"ALLOW_DUPLICATES" envDefault:"false"`
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxExpansionOccurrences: 100,
	MaxIdleYears:            recur.DefaultMaxIdleYears,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute, // Longer cache TTL
		MaxEntries:      5000,             // More cache entries
		CleanupInterval: 10 * time.Minute, // Less frequent cleanup
	},

	MaxExpansionOccurrences: 50,  // Fewer occurrences checked for speed
	MaxIdleYears:            100, // Give up on sparse rules sooner
	MaxPeriodSize:           10000,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},

	MaxExpansionOccurrences: 200, // More thorough checking
	MaxIdleYears:            recur.DefaultMaxIdleYears,
	MaxPeriodSize:           1000, // Bound BYSETPOS buffers
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{}, // Not used

	MaxExpansionOccurrences: 1000, // More thorough without cache
	MaxIdleYears:            recur.DefaultMaxIdleYears,
}

// LoadEngineConfig reads the engine configuration from LIBRECUR_* environment
// variables. Unset variables keep the defaults of DefaultEngineConfig.
func LoadEngineConfig() (EngineConfig, error) {
	return loadEngineConfig(env.Options{Prefix: EnvPrefix})
}

// LoadEngineConfigFrom is LoadEngineConfig over an explicit environment.
func LoadEngineConfigFrom(environ map[string]string) (EngineConfig, error) {
	return loadEngineConfig(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func loadEngineConfig(opts env.Options) (EngineConfig, error) {
	cfg, err := env.ParseAsWithOptions[EngineConfig](opts)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("failed to load engine config: %w", err)
	}
	if cfg.MaxIdleYears < 0 || cfg.MaxPeriodSize < 0 || cfg.MaxExpansionOccurrences < 0 {
		return EngineConfig{}, fmt.Errorf("failed to load engine config: limits must not be negative")
	}
	return cfg, nil
}

// iteratorOptions turns the iterator limits into recur options.
func (c EngineConfig) iteratorOptions() []recur.Option {
	opts := []recur.Option{
		recur.WithMaxIdleYears(c.MaxIdleYears),
		recur.WithMaxPeriodSize(c.MaxPeriodSize),
	}
	if c.LenientSetPos {
		opts = append(opts, recur.LenientSetPos())
	}
	if c.AllowDuplicates {
		opts = append(opts, recur.AllowDuplicates())
	}
	return opts
}
