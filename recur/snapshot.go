package recur

import (
	"fmt"
	"time"
)

// Snapshot is the plain-data form of an Iterator's complete state. It holds
// no references into the iterator and can be stored in any format; Restore
// turns it back into an iterator that continues exactly where this one was.
//
// Date-times are wall-clock values in the anchor's zone, formatted as
// "2006-01-02T15:04:05".
type Snapshot struct {
	Rule      Rule   `json:"rule"`
	Start     string `json:"dtstart"`
	TZID      string `json:"tzid,omitempty"`
	UTCOffset int    `json:"utcOffset"`
	DateOnly  bool   `json:"dateOnly,omitempty"`

	ByParts  ByPartSet     `json:"byParts"`
	Governor string        `json:"governor"`
	Cursors  []CursorState `json:"cursors"`

	CacheYear  int      `json:"cacheYear"`
	Hold       bool     `json:"hold,omitempty"`
	IdleYears  int      `json:"idleYears,omitempty"`
	Started    bool     `json:"started,omitempty"`
	RangeStart string   `json:"rangeStart,omitempty"`
	Exhausted  bool     `json:"exhausted,omitempty"`
	Cache      []string `json:"cache,omitempty"`

	OccurrenceNumber int    `json:"occurrenceNumber"`
	Last             string `json:"last,omitempty"`
	Completed        bool   `json:"completed,omitempty"`
}

// Snapshot captures the iterator's state.
func (it *Iterator) Snapshot() Snapshot {
	_, offset := it.anchor.in(it.loc).Zone()
	s := Snapshot{
		Rule:             it.rule,
		Start:            it.anchor.String(),
		TZID:             it.loc.String(),
		UTCOffset:        offset,
		DateOnly:         it.dateOnly,
		ByParts:          it.plan.by.clone(),
		Governor:         it.plan.gov.String(),
		CacheYear:        it.cacheYear,
		Hold:             it.hold,
		IdleYears:        it.idleYears,
		Started:          it.started,
		Exhausted:        it.exhausted,
		OccurrenceNumber: it.occurrence,
		Completed:        it.completed,
	}
	for _, l := range it.levels {
		s.Cursors = append(s.Cursors, l.cursor.state(l.part))
	}
	if it.started {
		s.RangeStart = it.rangeStart.String()
	}
	for _, c := range it.cache {
		s.Cache = append(s.Cache, c.String())
	}
	if it.hasLast {
		s.Last = it.last.String()
	}
	return s
}

// Restore rebuilds an iterator from a snapshot. The by-parts are taken as
// recorded, not normalized again.
func Restore(s Snapshot, opts ...Option) (*Iterator, error) {
	start, err := parseCivil(s.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: dtstart: %v", ErrInvalidSnapshot, err)
	}
	gov, ok := parseGovernor(s.Governor)
	if !ok {
		return nil, fmt.Errorf("%w: unknown governor %q", ErrInvalidSnapshot, s.Governor)
	}
	if err := validate(s.Rule, s.DateOnly); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	it := newIterator(s.Rule, snapshotLocation(s.TZID, s.UTCOffset), start, s.DateOnly, s.ByParts.clone(), gov, opts)
	if err := it.restoreLevels(s.Cursors); err != nil {
		return nil, err
	}

	it.cacheYear = s.CacheYear
	it.hold = s.Hold
	it.idleYears = s.IdleYears
	it.started = s.Started
	it.exhausted = s.Exhausted
	it.occurrence = s.OccurrenceNumber
	it.completed = s.Completed
	if s.RangeStart != "" {
		if it.rangeStart, err = parseCivil(s.RangeStart); err != nil {
			return nil, fmt.Errorf("%w: rangeStart: %v", ErrInvalidSnapshot, err)
		}
	}
	for _, v := range s.Cache {
		c, err := parseCivil(v)
		if err != nil {
			return nil, fmt.Errorf("%w: cache: %v", ErrInvalidSnapshot, err)
		}
		it.cache = append(it.cache, c)
	}
	if s.Last != "" {
		if it.last, err = parseCivil(s.Last); err != nil {
			return nil, fmt.Errorf("%w: last: %v", ErrInvalidSnapshot, err)
		}
		it.lastTime = it.last.in(it.loc)
		it.hasLast = true
	}
	return it, nil
}

// restoreLevels rebuilds the cursors and checks that they line up with the
// layout the governor implies.
func (it *Iterator) restoreLevels(states []CursorState) error {
	var want []ByPart
	switch it.plan.gov {
	case governMonthDay:
		want = []ByPart{PartMonth, PartMonthDay}
	case governYearDay:
		want = []ByPart{PartYearDay}
	case governWeekNo:
		want = []ByPart{PartWeekNo, PartDay}
	}
	want = append(want, PartHour, PartMinute, PartSecond)
	if len(states) != len(want) {
		return fmt.Errorf("%w: expected %d cursors, got %d", ErrInvalidSnapshot, len(want), len(states))
	}

	levels := make([]level, 0, len(want))
	for i, st := range states {
		if st.Part != want[i] {
			return fmt.Errorf("%w: cursor %d is %s, expected %s", ErrInvalidSnapshot, i, st.Part, want[i])
		}
		c, ok := cursorFromState(st)
		if !ok {
			return fmt.Errorf("%w: cursor %s is inconsistent", ErrInvalidSnapshot, st.Part)
		}
		levels = append(levels, level{st.Part, c})
	}
	it.setLevels(levels)
	return nil
}

func snapshotLocation(tzid string, offset int) *time.Location {
	if tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			return loc
		}
	}
	return time.FixedZone(tzid, offset)
}
