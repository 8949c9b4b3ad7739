package recur

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/internal/calmath"
)

// Anchor is the DTSTART of a recurrence. The location of Start is the zone
// occurrences are produced in. A DateOnly anchor ignores the time of day of
// Start.
type Anchor struct {
	Start    time.Time
	DateOnly bool
}

// level pairs a cursor with the by-part it enumerates. Levels are ordered
// from the coarsest (index 0) to the finest field.
type level struct {
	part   ByPart
	cursor *Cursor
}

// candidate is a resolved calendar position together with the index of the
// frequency period it belongs to.
type candidate struct {
	at  civil
	key int
}

// Iterator expands a Rule from an Anchor into successive occurrences.
// Occurrences are produced in strictly increasing order. An Iterator is not
// safe for concurrent use; build one per goroutine instead.
type Iterator struct {
	rule     Rule
	loc      *time.Location
	anchor   civil
	dateOnly bool
	plan     *plan
	opts     options

	levels    []level
	dayLevel  int
	anchorKey int

	// Cursor position. hold means the position has not been consumed yet.
	cacheYear int
	hold      bool
	idleYears int

	started    bool
	rangeStart civil
	exhausted  bool
	cache      []civil

	occurrence int
	last       civil
	lastTime   time.Time
	hasLast    bool
	completed  bool
	err        error
}

// New normalizes the rule against the anchor and returns an iterator
// positioned before the first occurrence.
func New(rule Rule, anchor Anchor, opts ...Option) (*Iterator, error) {
	start := civilOf(anchor.Start)
	if anchor.DateOnly {
		start = start.date()
	}
	by, gov, err := normalize(rule, start, anchor.DateOnly)
	if err != nil {
		return nil, err
	}
	it := newIterator(rule, anchor.Start.Location(), start, anchor.DateOnly, by, gov, opts)
	it.buildLevels()
	return it, nil
}

func newIterator(rule Rule, loc *time.Location, start civil, dateOnly bool, by ByPartSet, gov governor, opts []Option) *Iterator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	it := &Iterator{
		rule:     rule,
		loc:      loc,
		anchor:   start,
		dateOnly: dateOnly,
		plan:     newPlan(rule, by, gov),
		opts:     o,
	}
	it.anchorKey = it.periodKey(start, it.weekYear(start))
	return it
}

func (it *Iterator) buildLevels() {
	by := it.plan.by
	var levels []level
	switch it.plan.gov {
	case governMonthDay:
		levels = append(levels,
			level{PartMonth, NewCursor(by.Month)},
			level{PartMonthDay, NewCursor(by.MonthDay)})
	case governYearDay:
		levels = append(levels, level{PartYearDay, NewCursor(by.YearDay)})
	case governWeekNo:
		offsets := make([]int, 0, len(by.Day))
		for _, d := range by.Day {
			offsets = append(offsets, calmath.FloorMod(int(d.Day-it.plan.wkst), 7))
		}
		levels = append(levels,
			level{PartWeekNo, NewCursor(by.WeekNo)},
			level{PartDay, NewCursor(offsets)})
	}
	levels = append(levels,
		level{PartHour, NewCursor(by.Hour)},
		level{PartMinute, NewCursor(by.Minute)},
		level{PartSecond, NewCursor(by.Second)})
	it.setLevels(levels)
}

func (it *Iterator) setLevels(levels []level) {
	it.levels = levels
	it.dayLevel = len(levels) - 4
}

// Rule returns the rule the iterator was built from.
func (it *Iterator) Rule() Rule {
	return it.rule
}

// Start returns the anchor.
func (it *Iterator) Start() time.Time {
	return it.anchor.in(it.loc)
}

// OccurrenceNumber returns how many occurrences have been produced.
func (it *Iterator) OccurrenceNumber() int {
	return it.occurrence
}

// Completed reports whether the iterator has produced its last occurrence.
// Once true it stays true.
func (it *Iterator) Completed() bool {
	return it.completed
}

// Last returns the most recent occurrence.
func (it *Iterator) Last() mo.Option[time.Time] {
	if !it.hasLast {
		return mo.None[time.Time]()
	}
	return mo.Some(it.lastTime)
}

// NormalizedByParts returns the by-parts after implicit values were filled in.
func (it *Iterator) NormalizedByParts() ByPartSet {
	return it.plan.by.clone()
}

// Next returns the next occurrence, or None once the rule is exhausted.
// An error is fatal: every later call returns it again.
func (it *Iterator) Next() (mo.Option[time.Time], error) {
	if it.err != nil {
		return mo.None[time.Time](), it.err
	}
	if it.completed {
		return mo.None[time.Time](), nil
	}
	if it.rule.Count > 0 && it.occurrence >= it.rule.Count {
		it.completed = true
		return mo.None[time.Time](), nil
	}
	if it.hasLast && it.afterUntil(it.last, it.lastTime) {
		it.completed = true
		return mo.None[time.Time](), nil
	}
	if !it.started {
		it.seek(it.anchor)
	}

	c, ok, err := it.nextOccurrence()
	if err != nil {
		it.err = err
		return mo.None[time.Time](), err
	}
	if !ok {
		it.completed = true
		return mo.None[time.Time](), nil
	}
	// Repeated candidates collapse when a run is buffered, so this only trips on a cursor bug.
	if it.hasLast && c == it.last && !it.opts.allowDuplicates {
		it.err = fmt.Errorf("%w: %s", ErrDuplicateOccurrence, c)
		return mo.None[time.Time](), it.err
	}

	it.occurrence++
	t := c.in(it.loc)
	if it.afterUntil(c, t) {
		it.occurrence--
		it.completed = true
		return mo.None[time.Time](), nil
	}
	it.last, it.lastTime, it.hasLast = c, t, true
	return mo.Some(t), nil
}

// afterUntil reports whether an occurrence lies beyond UNTIL. Date-only
// anchors compare calendar dates, everything else compares instants.
func (it *Iterator) afterUntil(c civil, t time.Time) bool {
	if !it.rule.HasUntil() {
		return false
	}
	if it.dateOnly {
		return civilOf(it.rule.Until).date().before(c.date())
	}
	return t.After(it.rule.Until)
}

// nextOccurrence pops the next buffered candidate at or after rangeStart,
// resolving further periods as needed.
func (it *Iterator) nextOccurrence() (civil, bool, error) {
	for {
		for len(it.cache) > 0 {
			c := it.cache[0]
			it.cache = it.cache[1:]
			if c.before(it.rangeStart) {
				continue
			}
			return c, true, nil
		}
		if it.exhausted {
			return civil{}, false, nil
		}
		if err := it.fillCache(); err != nil {
			return civil{}, false, err
		}
	}
}

// fillCache resolves the next period that passes the INTERVAL test and
// buffers its candidates, reduced by BYSETPOS. It returns with a non-empty
// cache, or with exhausted set. A period's buffer is complete before any of
// it is emitted.
func (it *Iterator) fillCache() error {
	for !it.exhausted {
		first, ok := it.nextCandidate()
		if !ok {
			it.exhausted = true
			break
		}
		if calmath.FloorMod(first.key-it.anchorKey, it.plan.interval) != 0 {
			if !it.skipPeriod() {
				it.exhausted = true
			}
			continue
		}
		it.idleYears = 0

		// Only BYSETPOS needs the whole period; otherwise the run ends at the
		// first candidate that differs from the previous one.
		setPos := it.plan.by.SetPos
		run := []civil{first.at}
		for {
			next, ok := it.nextCandidate()
			if !ok {
				it.exhausted = true
				break
			}
			if next.key != first.key || (len(setPos) == 0 && next.at != run[len(run)-1]) {
				it.hold = true
				break
			}
			if next.at != run[len(run)-1] {
				run = append(run, next.at)
			}
			if max := it.opts.maxPeriodSize; max > 0 && len(run) > max {
				return fmt.Errorf("%w: more than %d in the period starting %s", ErrPeriodTooLarge, max, run[0])
			}
		}

		if len(setPos) > 0 {
			selected := selectPositions(run, setPos)
			if len(selected) == 0 {
				if !it.opts.lenientSetPos {
					return fmt.Errorf("%w: %d candidates in the period starting %s", ErrSetPositionExhausted, len(run), run[0])
				}
				it.opts.logger.Debug("BYSETPOS selected nothing, skipping period",
					"rule", it.rule.String(), "period", run[0].String(), "candidates", len(run))
				continue
			}
			run = selected
		}
		it.cache = run
		return nil
	}
	return nil
}

// selectPositions picks the 1-based (negative: from the end) positions of
// run, keeping ascending order and dropping repeats.
func selectPositions(run []civil, positions []int) []civil {
	picked := make([]bool, len(run))
	for _, p := range positions {
		i := p - 1
		if p < 0 {
			i = len(run) + p
		}
		if i >= 0 && i < len(run) {
			picked[i] = true
		}
	}
	var out []civil
	for i, ok := range picked {
		if ok {
			out = append(out, run[i])
		}
	}
	return out
}

// nextCandidate moves the cursors to the next valid calendar position. It
// returns false when the idle-year bound is hit.
func (it *Iterator) nextCandidate() (candidate, bool) {
	lvl := len(it.levels) - 1
	for {
		if it.hold {
			it.hold = false
		} else if !it.step(lvl) {
			return candidate{}, false
		}
		c, bad := it.resolve()
		if bad < 0 {
			return c, true
		}
		// Everything finer than the failing level fails the same way.
		lvl = bad
	}
}

// resolve turns the current cursor position into a candidate. When the
// position is not a valid occurrence it returns the level to advance.
func (it *Iterator) resolve() (candidate, int) {
	var y, m, d int
	switch it.plan.gov {
	case governMonthDay:
		m = it.levels[0].cursor.Peek()
		d = it.levels[1].cursor.Peek()
		if d < 1 || d > calmath.DaysInMonth(it.cacheYear, m) {
			return candidate{}, 1
		}
		y = it.cacheYear
	case governYearDay:
		yd := it.levels[0].cursor.Peek()
		if yd < 1 || yd > calmath.DaysInYear(it.cacheYear) {
			return candidate{}, 0
		}
		y = it.cacheYear
		m, d = calmath.MonthDay(y, yd)
	case governWeekNo:
		w := it.levels[0].cursor.Peek()
		if w < 1 || w > calmath.WeeksInYear(it.cacheYear, it.plan.weekStart()) {
			return candidate{}, 0
		}
		n := calmath.FirstWeekStart(it.cacheYear, it.plan.weekStart()) + (w-1)*7 + it.levels[1].cursor.Peek()
		y, m, d = calmath.FromDayNumber(n)
	}
	if !it.plan.matchesDate(y, m, d) {
		return candidate{}, it.dayLevel
	}

	last := len(it.levels) - 1
	sec := it.levels[last].cursor.Peek()
	if sec > 59 {
		return candidate{}, last
	}
	c := civil{
		year:   y,
		month:  m,
		day:    d,
		hour:   it.levels[last-2].cursor.Peek(),
		minute: it.levels[last-1].cursor.Peek(),
		second: sec,
	}
	return candidate{at: c, key: it.periodKey(c, it.cacheYear)}, -1
}

// periodKey numbers the frequency period holding c so that consecutive
// periods get consecutive keys. weekYear is only used by YEARLY rules driven
// by BYWEEKNO, whose years are week-numbering years.
func (it *Iterator) periodKey(c civil, weekYear int) int {
	switch it.plan.freq {
	case Secondly:
		return ((c.dayNumber()*24+c.hour)*60+c.minute)*60 + c.second
	case Minutely:
		return (c.dayNumber()*24+c.hour)*60 + c.minute
	case Hourly:
		return c.dayNumber()*24 + c.hour
	case Daily:
		return c.dayNumber()
	case Weekly:
		return calmath.FloorDiv(calmath.WeekStart(c.dayNumber(), it.plan.weekStart()), 7)
	case Monthly:
		return c.year*12 + c.month - 1
	}
	if it.plan.gov == governWeekNo {
		return weekYear
	}
	return c.year
}

func (it *Iterator) weekYear(c civil) int {
	wy, _ := calmath.WeekNumber(c.year, c.month, c.day, it.plan.weekStart())
	return wy
}

// periodLevel is the level whose advance moves to the next period, or -1 for
// a whole year.
func (it *Iterator) periodLevel() int {
	last := len(it.levels) - 1
	switch it.plan.freq {
	case Secondly:
		return last
	case Minutely:
		return last - 1
	case Hourly:
		return last - 2
	case Daily, Weekly:
		return it.dayLevel
	case Monthly:
		if it.plan.gov == governMonthDay {
			return 0
		}
		return it.dayLevel
	}
	return -1
}

// skipPeriod leaves the period of the current position, which was found not
// to match INTERVAL.
func (it *Iterator) skipPeriod() bool {
	lvl := it.periodLevel()
	var ok bool
	if lvl < 0 {
		ok = it.nextYear()
	} else {
		ok = it.step(lvl)
	}
	it.hold = ok
	return ok
}

// step advances the cursor at lvl, carrying into coarser levels on wrap.
// Finer levels restart from their first value.
func (it *Iterator) step(lvl int) bool {
	for i := lvl + 1; i < len(it.levels); i++ {
		it.levels[i].cursor.reset()
	}
	for i := lvl; i >= 0; i-- {
		c := it.levels[i].cursor
		c.Advance()
		if !c.Wrapped() {
			it.rebase()
			return true
		}
	}
	return it.nextYear()
}

func (it *Iterator) nextYear() bool {
	for _, l := range it.levels {
		l.cursor.reset()
	}
	it.cacheYear++
	it.idleYears++
	it.rebase()
	if limit := it.idleLimit(); limit > 0 && it.idleYears > limit {
		it.opts.logger.Debug("no matching period found, ending iteration",
			"rule", it.rule.String(), "start", it.anchor.String(), "years", it.idleYears)
		return false
	}
	return true
}

func (it *Iterator) idleLimit() int {
	limit := it.opts.maxIdleYears
	if limit == 0 {
		return 0
	}
	switch it.plan.freq {
	case Yearly:
		limit += it.plan.interval
	case Monthly:
		limit += it.plan.interval/12 + 1
	}
	return limit
}

// rebase points the cursors holding relative values at the maximum of the
// current month or year.
func (it *Iterator) rebase() {
	switch it.plan.gov {
	case governMonthDay:
		it.levels[1].cursor.SetMaximum(calmath.DaysInMonth(it.cacheYear, it.levels[0].cursor.Peek()))
	case governYearDay:
		it.levels[0].cursor.SetMaximum(calmath.DaysInYear(it.cacheYear))
	case governWeekNo:
		it.levels[0].cursor.SetMaximum(calmath.WeeksInYear(it.cacheYear, it.plan.weekStart()))
	}
}
