package recurrence

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/recur"
)

// Engine expands recurring events. It is safe for concurrent use: every query
// builds its own iterator.
type Engine struct {
	// Logger receives diagnostics; nil means slog.Default().
	Logger *slog.Logger

	config EngineConfig
	cache  *RecurrenceCache
}

// NewEngine creates a new recurrence engine with DefaultEngineConfig
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *RecurrenceCache
	if config.CacheEnabled {
		cache = NewRecurrenceCache(config.CacheConfig)
	}

	return &Engine{
		cache:  cache,
		config: config,
	}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Close releases the cache. The engine keeps working without it.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports cache statistics, or None when caching is disabled.
func (e *Engine) CacheStats() mo.Option[CacheStats] {
	if e.cache == nil {
		return mo.None[CacheStats]()
	}
	return mo.Some(e.cache.Stats())
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Iterator builds an iterator over the RRULE of a recurring event anchored
// at masterStart.
func (e *Engine) Iterator(masterStart time.Time, recurrence RecurrenceInfo) (*recur.Iterator, error) {
	rule, err := ParseRule(recurrence.RRULE, masterStart.Location())
	if err != nil {
		return nil, err
	}
	opts := append(e.config.iteratorOptions(), recur.WithLogger(e.logger()))
	it, err := recur.New(rule, recur.Anchor{Start: masterStart, DateOnly: recurrence.AllDay}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build iterator for RRULE '%s': %w", recurrence.RRULE, err)
	}
	return it, nil
}

// Restore rebuilds an iterator from a snapshot with the engine's iterator
// limits and logger.
func (e *Engine) Restore(s recur.Snapshot) (*recur.Iterator, error) {
	opts := append(e.config.iteratorOptions(), recur.WithLogger(e.logger()))
	it, err := recur.Restore(s, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore iterator for RRULE '%s': %w", s.Rule, err)
	}
	return it, nil
}

// HasOccurrenceInRange checks if a recurring event has any occurrence in the time range
// This is a performance-optimized method that doesn't do full expansion
func (e *Engine) HasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	key := cacheKey{"has", masterStart, masterEnd, recurrence, rangeStart, rangeEnd}
	if e.cache != nil {
		if v, ok := e.cache.get(key); ok {
			e.logger().Debug("recurrence cache hit", "operation", "has", "rrule", recurrence.RRULE)
			return v.(bool), nil
		}
	}

	found, err := e.hasOccurrenceInRange(masterStart, masterEnd, recurrence, rangeStart, rangeEnd)
	if err != nil {
		return false, err
	}
	if e.cache != nil {
		e.cache.set(key, found)
	}
	return found, nil
}

func (e *Engine) hasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	// Fast path: the master instance. Overlap is start <= rangeEnd AND end >= rangeStart.
	if overlaps(masterStart, masterEnd, rangeStart, rangeEnd) && !isExcluded(masterStart, recurrence.EXDATE) {
		return true, nil
	}

	duration := masterEnd.Sub(masterStart)
	for _, rdate := range recurrence.RDATE {
		if overlaps(rdate, rdate.Add(duration), rangeStart, rangeEnd) && !isExcluded(rdate, recurrence.EXDATE) {
			return true, nil
		}
	}

	if recurrence.RRULE == "" {
		return false, nil
	}
	it, err := e.Iterator(masterStart, recurrence)
	if err != nil {
		return false, fmt.Errorf("failed to check RRULE occurrences: %w", err)
	}
	next, err := seekFirstOverlap(it, masterStart, duration, rangeStart)
	// Only a bounded number of excluded occurrences are skipped.
	for checked := 0; checked < e.config.MaxExpansionOccurrences || e.config.MaxExpansionOccurrences == 0; checked++ {
		if err != nil {
			return false, fmt.Errorf("failed to check RRULE occurrences: %w", err)
		}
		start, ok := next.Get()
		if !ok || start.After(rangeEnd) {
			return false, nil
		}
		if !isExcluded(start, recurrence.EXDATE) {
			return true, nil
		}
		next, err = it.Next()
	}
	return false, nil
}

// Expand lists the occurrences of a recurring event that overlap the range,
// in start order. The master instance, RRULE and RDATE occurrences are merged;
// EXDATE removes occurrences. opts bounds the result.
func (e *Engine) Expand(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
	opts ExpansionOptions,
) ([]TimeOccurrence, error) {
	if opts.MaxTimeSpan > 0 && rangeEnd.Sub(rangeStart) > opts.MaxTimeSpan {
		rangeEnd = rangeStart.Add(opts.MaxTimeSpan)
	}

	key := cacheKey{
		operation:   fmt.Sprintf("expand:%d", opts.MaxOccurrences),
		masterStart: masterStart, masterEnd: masterEnd,
		info:       recurrence,
		rangeStart: rangeStart, rangeEnd: rangeEnd,
	}
	if e.cache != nil {
		if v, ok := e.cache.get(key); ok {
			e.logger().Debug("recurrence cache hit", "operation", "expand", "rrule", recurrence.RRULE)
			return slices.Clone(v.([]TimeOccurrence)), nil
		}
	}

	occurrences, err := e.expand(masterStart, masterEnd, recurrence, rangeStart, rangeEnd, opts.MaxOccurrences)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.set(key, slices.Clone(occurrences))
	}
	return occurrences, nil
}

func (e *Engine) expand(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
	limit int,
) ([]TimeOccurrence, error) {
	duration := masterEnd.Sub(masterStart)
	var starts []time.Time

	if overlaps(masterStart, masterEnd, rangeStart, rangeEnd) {
		starts = append(starts, masterStart)
	}
	for _, rdate := range recurrence.RDATE {
		if overlaps(rdate, rdate.Add(duration), rangeStart, rangeEnd) {
			starts = append(starts, rdate)
		}
	}

	if recurrence.RRULE != "" {
		it, err := e.Iterator(masterStart, recurrence)
		if err != nil {
			return nil, err
		}
		// Repeats of the master or an RDATE collapse later, so the RRULE
		// has to supply that many spare occurrences.
		needed := limit + 1 + len(recurrence.RDATE)
		kept := 0
		next, err := seekFirstOverlap(it, masterStart, duration, rangeStart)
		for {
			if err != nil {
				return nil, fmt.Errorf("failed to expand RRULE '%s': %w", recurrence.RRULE, err)
			}
			start, ok := next.Get()
			if !ok || start.After(rangeEnd) {
				break
			}
			starts = append(starts, start)
			if !isExcluded(start, recurrence.EXDATE) {
				kept++
			}
			if limit > 0 && kept >= needed {
				break
			}
			next, err = it.Next()
		}
	}

	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })
	starts = slices.CompactFunc(starts, func(a, b time.Time) bool { return a.Equal(b) })

	occurrences := make([]TimeOccurrence, 0, len(starts))
	for _, start := range starts {
		if isExcluded(start, recurrence.EXDATE) {
			continue
		}
		occurrences = append(occurrences, TimeOccurrence{Start: start, End: start.Add(duration)})
		if limit > 0 && len(occurrences) == limit {
			e.logger().Debug("expansion truncated", "rrule", recurrence.RRULE, "limit", limit)
			break
		}
	}
	return occurrences, nil
}

// NextOccurrence returns the first occurrence starting at or after after,
// honouring RDATE and EXDATE.
func (e *Engine) NextOccurrence(masterStart time.Time, recurrence RecurrenceInfo, after time.Time) (mo.Option[time.Time], error) {
	var best mo.Option[time.Time]
	consider := func(t time.Time) {
		if t.Before(after) || isExcluded(t, recurrence.EXDATE) {
			return
		}
		if cur, ok := best.Get(); !ok || t.Before(cur) {
			best = mo.Some(t)
		}
	}
	consider(masterStart)
	for _, rdate := range recurrence.RDATE {
		consider(rdate)
	}

	if recurrence.RRULE != "" {
		it, err := e.Iterator(masterStart, recurrence)
		if err != nil {
			return mo.None[time.Time](), err
		}
		next, err := seekFirstOverlap(it, masterStart, 0, after)
		for checked := 0; checked < e.config.MaxExpansionOccurrences || e.config.MaxExpansionOccurrences == 0; checked++ {
			if err != nil {
				return mo.None[time.Time](), fmt.Errorf("failed to find next occurrence: %w", err)
			}
			start, ok := next.Get()
			if !ok {
				break
			}
			if cur, found := best.Get(); found && !start.Before(cur) {
				break
			}
			if !isExcluded(start, recurrence.EXDATE) {
				consider(start)
				break
			}
			next, err = it.Next()
		}
	}
	return best, nil
}

// seekFirstOverlap fast-forwards to the first occurrence that can still
// overlap a range starting at rangeStart.
func seekFirstOverlap(it *recur.Iterator, masterStart time.Time, duration time.Duration, rangeStart time.Time) (mo.Option[time.Time], error) {
	target := rangeStart.Add(-duration)
	if target.Before(masterStart) {
		target = masterStart
	}
	return it.FastForward(target)
}

func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	return !start.After(rangeEnd) && !end.Before(rangeStart)
}

// isExcluded checks if a given time is in the EXDATE list
func isExcluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}

		// Date-only exceptions are stored as midnight UTC and exclude the
		// whole day of the occurrence.
		if exdate.Location() == time.UTC && isAllDayDate(exdate) {
			y, m, d := t.Date()
			if time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Equal(exdate) {
				return true
			}
		}
	}
	return false
}
