package recurrence

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/librecur/recur"
)

func day(d, h, m int) time.Time {
	return time.Date(2024, 1, d, h, m, 0, 0, time.UTC)
}

func starts(occs []TimeOccurrence) []time.Time {
	out := make([]time.Time, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Start)
	}
	return out
}

func TestEngine_HasOccurrenceInRange(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)

	// Base event: Daily meeting from 9-10 AM starting Jan 1, 2024
	masterStart := day(1, 9, 0)
	masterEnd := day(1, 10, 0)

	tests := []struct {
		name       string
		recurrence RecurrenceInfo
		rangeStart time.Time
		rangeEnd   time.Time
		expected   bool
	}{
		{
			name:       "Non-recurring event in range",
			recurrence: RecurrenceInfo{},
			rangeStart: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			rangeEnd:   day(2, 0, 0),
			expected:   true,
		},
		{
			name:       "Non-recurring event out of range",
			recurrence: RecurrenceInfo{},
			rangeStart: day(2, 0, 0),
			rangeEnd:   day(3, 0, 0),
			expected:   false,
		},
		{
			name:       "Daily recurring event with occurrence in range",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=7"},
			rangeStart: day(3, 0, 0),
			rangeEnd:   day(4, 0, 0),
			expected:   true,
		},
		{
			name:       "Daily recurring event with no occurrence in range",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=3"},
			rangeStart: day(10, 0, 0),
			rangeEnd:   day(11, 0, 0),
			expected:   false,
		},
		{
			name: "Only occurrence in range is excluded",
			recurrence: RecurrenceInfo{
				RRULE:  "FREQ=DAILY;COUNT=7",
				EXDATE: []time.Time{day(3, 9, 0)},
			},
			rangeStart: day(3, 0, 0),
			rangeEnd:   day(3, 23, 0),
			expected:   false,
		},
		{
			name: "Date-only EXDATE excludes the whole day",
			recurrence: RecurrenceInfo{
				RRULE:  "FREQ=DAILY;COUNT=7",
				EXDATE: []time.Time{day(3, 0, 0)},
			},
			rangeStart: day(3, 0, 0),
			rangeEnd:   day(3, 23, 0),
			expected:   false,
		},
		{
			name:       "RDATE in range",
			recurrence: RecurrenceInfo{RDATE: []time.Time{time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}},
			rangeStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "Range years after the start",
			recurrence: RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=MO"},
			rangeStart: time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2030, 6, 5, 0, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "Occurrence still running at range start",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY"},
			rangeStart: day(5, 9, 30),
			rangeEnd:   day(5, 9, 45),
			expected:   true,
		},
		{
			name:       "Range between occurrences",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY"},
			rangeStart: day(5, 11, 0),
			rangeEnd:   day(5, 20, 0),
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.HasOccurrenceInRange(
				masterStart, masterEnd,
				tt.recurrence,
				tt.rangeStart, tt.rangeEnd,
			)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEngine_HasOccurrenceInRange_InvalidRule(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	_, err := engine.HasOccurrenceInRange(day(1, 9, 0), day(1, 10, 0),
		RecurrenceInfo{RRULE: "FREQ=SOMETIMES"}, day(5, 0, 0), day(6, 0, 0))
	require.ErrorIs(t, err, recur.ErrInvalidRule)
}

func TestEngine_Expand(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	masterStart, masterEnd := day(1, 9, 0), day(1, 10, 0)

	tests := []struct {
		name       string
		recurrence RecurrenceInfo
		rangeStart time.Time
		rangeEnd   time.Time
		opts       ExpansionOptions
		expected   []time.Time
	}{
		{
			name:       "Range inside the series",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=5"},
			rangeStart: day(2, 0, 0),
			rangeEnd:   day(4, 9, 30),
			expected:   []time.Time{day(2, 9, 0), day(3, 9, 0), day(4, 9, 0)},
		},
		{
			name:       "Overlapping occurrence at range start",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=5"},
			rangeStart: day(2, 9, 30),
			rangeEnd:   day(3, 12, 0),
			expected:   []time.Time{day(2, 9, 0), day(3, 9, 0)},
		},
		{
			name: "EXDATE and RDATE",
			recurrence: RecurrenceInfo{
				RRULE:  "FREQ=DAILY;COUNT=5",
				RDATE:  []time.Time{day(3, 15, 0)},
				EXDATE: []time.Time{day(3, 9, 0)},
			},
			rangeStart: day(2, 0, 0),
			rangeEnd:   day(4, 9, 30),
			expected:   []time.Time{day(2, 9, 0), day(3, 15, 0), day(4, 9, 0)},
		},
		{
			name:       "Master instance is excluded",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=3", EXDATE: []time.Time{day(1, 9, 0)}},
			rangeStart: day(1, 0, 0),
			rangeEnd:   day(10, 0, 0),
			expected:   []time.Time{day(2, 9, 0), day(3, 9, 0)},
		},
		{
			name:       "Master instance counts even when the rule skips it",
			recurrence: RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=WE;COUNT=2"},
			rangeStart: day(1, 0, 0),
			rangeEnd:   day(31, 0, 0),
			expected:   []time.Time{day(1, 9, 0), day(3, 9, 0), day(10, 9, 0)},
		},
		{
			name:       "MaxOccurrences",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY"},
			rangeStart: day(1, 0, 0),
			rangeEnd:   day(31, 0, 0),
			opts:       ExpansionOptions{MaxOccurrences: 2},
			expected:   []time.Time{day(1, 9, 0), day(2, 9, 0)},
		},
		{
			name:       "MaxOccurrences skips excluded days",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY", EXDATE: []time.Time{day(2, 0, 0), day(3, 9, 0)}},
			rangeStart: day(1, 0, 0),
			rangeEnd:   day(31, 0, 0),
			opts:       ExpansionOptions{MaxOccurrences: 3},
			expected:   []time.Time{day(1, 9, 0), day(4, 9, 0), day(5, 9, 0)},
		},
		{
			name:       "MaxTimeSpan",
			recurrence: RecurrenceInfo{RRULE: "FREQ=DAILY"},
			rangeStart: day(1, 0, 0),
			rangeEnd:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			opts:       ExpansionOptions{MaxTimeSpan: 48 * time.Hour},
			expected:   []time.Time{day(1, 9, 0), day(2, 9, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occs, err := engine.Expand(masterStart, masterEnd, tt.recurrence, tt.rangeStart, tt.rangeEnd, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, starts(occs))
			for _, o := range occs {
				assert.Equal(t, time.Hour, o.End.Sub(o.Start))
			}
		})
	}
}

func TestEngine_ExpandAllDay(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	occs, err := engine.Expand(day(1, 0, 0), day(2, 0, 0),
		RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=3", AllDay: true, EXDATE: []time.Time{day(2, 0, 0)}},
		day(1, 0, 0), day(10, 0, 0), DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(1, 0, 0), day(3, 0, 0)}, starts(occs))
}

func TestEngine_ExpandIterationError(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	_, err := engine.Expand(day(1, 9, 0), day(1, 10, 0),
		RecurrenceInfo{RRULE: "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=5"},
		day(1, 0, 0), day(31, 0, 0), DefaultExpansionOptions)
	require.ErrorIs(t, err, recur.ErrSetPositionExhausted)

	lenient := DisabledCacheConfig
	lenient.LenientSetPos = true
	occs, err := NewEngineWithConfig(lenient).Expand(day(1, 9, 0), day(1, 10, 0),
		RecurrenceInfo{RRULE: "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=5"},
		day(1, 0, 0), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(1, 9, 0), day(29, 9, 0)}, starts(occs))
}

func TestEngine_NextOccurrence(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	masterStart := day(1, 9, 0) // a Monday

	tests := []struct {
		name       string
		recurrence RecurrenceInfo
		after      time.Time
		expected   time.Time
	}{
		{"weekly", RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=MO"}, day(3, 0, 0), day(8, 9, 0)},
		{"excluded", RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=MO", EXDATE: []time.Time{day(8, 9, 0)}}, day(3, 0, 0), day(15, 9, 0)},
		{"extra date first", RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=MO", RDATE: []time.Time{day(5, 12, 0)}}, day(3, 0, 0), day(5, 12, 0)},
		{"before the start", RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=MO"}, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), day(1, 9, 0)},
		{"exact match", RecurrenceInfo{RRULE: "FREQ=WEEKLY;BYDAY=MO"}, day(22, 9, 0), day(22, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := engine.NextOccurrence(masterStart, tt.recurrence, tt.after)
			require.NoError(t, err)
			got, ok := next.Get()
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)
		})
	}

	next, err := engine.NextOccurrence(masterStart, RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=2"}, day(5, 0, 0))
	require.NoError(t, err)
	assert.True(t, next.IsAbsent())
}

func TestEngine_Cache(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	info := RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=5"}
	first, err := engine.Expand(day(1, 9, 0), day(1, 10, 0), info, day(1, 0, 0), day(10, 0, 0), DefaultExpansionOptions)
	require.NoError(t, err)
	first[0].Start = time.Time{} // callers own the returned slice

	second, err := engine.Expand(day(1, 9, 0), day(1, 10, 0), info, day(1, 0, 0), day(10, 0, 0), DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Equal(t, day(1, 9, 0), second[0].Start)

	stats, ok := engine.CacheStats().Get()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.TotalEntries)

	assert.True(t, NewEngineWithConfig(DisabledCacheConfig).CacheStats().IsAbsent())
}

func TestExtractRecurrenceInfoFromComponent(t *testing.T) {
	comp := &ical.Component{
		Name:  "VEVENT",
		Props: make(ical.Props),
	}

	info := ExtractRecurrenceInfoFromComponent(comp)
	assert.Equal(t, "", info.RRULE)
	assert.Empty(t, info.RDATE)
	assert.Empty(t, info.EXDATE)
	assert.Nil(t, info.RecurrenceID)
	assert.False(t, info.AllDay)
}

func TestEngine_Restore(t *testing.T) {
	engine := NewEngineWithConfig(DisabledCacheConfig)
	it, err := engine.Iterator(day(1, 9, 0), RecurrenceInfo{RRULE: "FREQ=DAILY;COUNT=4"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := it.Next()
		require.NoError(t, err)
	}

	resumed, err := engine.Restore(it.Snapshot())
	require.NoError(t, err)
	next, err := resumed.Next()
	require.NoError(t, err)
	assert.Equal(t, day(3, 9, 0), next.MustGet())
	assert.Equal(t, 3, resumed.OccurrenceNumber())

	broken := it.Snapshot()
	broken.Governor = "fortnight"
	_, err = engine.Restore(broken)
	assert.ErrorIs(t, err, recur.ErrInvalidSnapshot)
}
