package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEngineConfigFrom(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadEngineConfigFrom(map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, DefaultEngineConfig, cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := LoadEngineConfigFrom(map[string]string{
			"LIBRECUR_CACHE_ENABLED":             "false",
			"LIBRECUR_CACHE_TTL":                 "1m",
			"LIBRECUR_CACHE_MAX_ENTRIES":         "10",
			"LIBRECUR_MAX_EXPANSION_OCCURRENCES": "25",
			"LIBRECUR_MAX_IDLE_YEARS":            "50",
			"LIBRECUR_MAX_PERIOD_SIZE":           "500",
			"LIBRECUR_LENIENT_SETPOS":            "true",
			"MAX_IDLE_YEARS":                     "7", // no prefix, ignored
		})
		require.NoError(t, err)
		assert.False(t, cfg.CacheEnabled)
		assert.Equal(t, time.Minute, cfg.CacheConfig.TTL)
		assert.Equal(t, 10, cfg.CacheConfig.MaxEntries)
		assert.Equal(t, DefaultCacheConfig.CleanupInterval, cfg.CacheConfig.CleanupInterval)
		assert.Equal(t, 25, cfg.MaxExpansionOccurrences)
		assert.Equal(t, 50, cfg.MaxIdleYears)
		assert.Equal(t, 500, cfg.MaxPeriodSize)
		assert.True(t, cfg.LenientSetPos)
		assert.False(t, cfg.AllowDuplicates)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := LoadEngineConfigFrom(map[string]string{"LIBRECUR_MAX_PERIOD_SIZE": "lots"})
		require.Error(t, err)
	})

	t.Run("negative", func(t *testing.T) {
		_, err := LoadEngineConfigFrom(map[string]string{"LIBRECUR_MAX_IDLE_YEARS": "-1"})
		require.Error(t, err)
	})
}

func TestEngineConfig_IteratorOptions(t *testing.T) {
	cfg := DisabledCacheConfig
	cfg.MaxIdleYears = 5
	engine := NewEngineWithConfig(cfg)

	// A rule that never matches ends after the configured idle years.
	occs, err := engine.Expand(day(1, 9, 0), day(1, 10, 0),
		RecurrenceInfo{RRULE: "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=30"},
		day(2, 0, 0), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC), ExpansionOptions{})
	require.NoError(t, err)
	assert.Empty(t, occs)
	assert.Equal(t, cfg, engine.Config())
}

func TestEngineConfig_Presets(t *testing.T) {
	for name, cfg := range map[string]EngineConfig{
		"default":          DefaultEngineConfig,
		"high performance": HighPerformanceConfig,
		"low memory":       LowMemoryConfig,
		"disabled cache":   DisabledCacheConfig,
	} {
		t.Run(name, func(t *testing.T) {
			engine := NewEngineWithConfig(cfg)
			defer engine.Close()
			assert.Equal(t, cfg.CacheEnabled, engine.CacheStats().IsPresent())

			found, err := engine.HasOccurrenceInRange(day(1, 9, 0), day(1, 10, 0),
				RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=FR"}, day(20, 0, 0), day(27, 0, 0))
			require.NoError(t, err)
			assert.True(t, found)
		})
	}
}
