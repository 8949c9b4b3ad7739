package recur

import (
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/internal/calmath"
)

// FastForward returns the first occurrence at or after target and leaves the
// iterator positioned after it, so Next continues from there.
//
// Without COUNT the cursors are moved straight to target. With COUNT the
// ordinal of an occurrence is only known by counting, so the iterator is
// replayed from the anchor instead. A target before the anchor fails with
// ErrSeekBeforeStart; a target past UNTIL completes the iterator.
func (it *Iterator) FastForward(target time.Time) (mo.Option[time.Time], error) {
	if it.err != nil {
		return mo.None[time.Time](), it.err
	}
	tc := civilOf(target.In(it.loc))
	if it.dateOnly {
		tc = tc.date()
	}
	if tc.before(it.anchor) {
		return mo.None[time.Time](), fmt.Errorf("%w: %s is before %s", ErrSeekBeforeStart, tc, it.anchor)
	}
	if it.completed {
		return mo.None[time.Time](), nil
	}
	if it.afterUntil(tc, target) {
		it.completed = true
		return mo.None[time.Time](), nil
	}

	if it.rule.Count > 0 {
		it.rewind()
		for {
			next, err := it.Next()
			if err != nil || next.IsAbsent() {
				return next, err
			}
			if !it.last.before(tc) {
				return next, nil
			}
		}
	}

	if tc == it.anchor {
		it.occurrence = 0
	}
	it.hasLast = false
	it.seek(tc)
	return it.Next()
}

// rewind returns the iterator to its state right after construction.
func (it *Iterator) rewind() {
	it.started = false
	it.occurrence = 0
	it.hasLast = false
	it.cache = nil
	it.exhausted = false
}

// seek positions every cursor on the first position not before target,
// coarsest field first. With BYSETPOS the whole period holding target is
// needed, so the cursors go to the start of that period and candidates
// before target are dropped later through rangeStart.
func (it *Iterator) seek(target civil) {
	it.started = true
	it.rangeStart = target
	it.cache = nil
	it.exhausted = false
	it.idleYears = 0
	it.hold = true

	at := target
	if len(it.plan.by.SetPos) > 0 {
		at = it.periodStart(target)
	}

	var fields []int
	switch it.plan.gov {
	case governMonthDay:
		it.cacheYear = at.year
		fields = []int{at.month, at.day}
	case governYearDay:
		it.cacheYear = at.year
		fields = []int{calmath.DayOfYear(at.year, at.month, at.day)}
	case governWeekNo:
		wy, w := calmath.WeekNumber(at.year, at.month, at.day, it.plan.weekStart())
		it.cacheYear = wy
		fields = []int{w, calmath.FloorMod(int(at.weekday()-it.plan.wkst), 7)}
	}
	fields = append(fields, at.hour, at.minute, at.second)

	for _, l := range it.levels {
		l.cursor.reset()
	}
	it.rebase()
	for i, l := range it.levels {
		v := l.cursor.Seek(fields[i])
		if l.cursor.Wrapped() {
			// Nothing left at or after the target in this field.
			l.cursor.reset()
			var ok bool
			if i == 0 {
				ok = it.nextYear()
			} else {
				ok = it.step(i - 1)
			}
			if !ok {
				it.exhausted = true
			}
			return
		}
		it.rebase()
		if v != fields[i] {
			return
		}
	}
}

// periodStart returns the first instant of the frequency period holding c.
func (it *Iterator) periodStart(c civil) civil {
	switch it.plan.freq {
	case Secondly:
		return c
	case Minutely:
		c.second = 0
		return c
	case Hourly:
		c.minute, c.second = 0, 0
		return c
	case Daily:
		return c.date()
	case Weekly:
		y, m, d := calmath.FromDayNumber(calmath.WeekStart(c.dayNumber(), it.plan.weekStart()))
		return civil{year: y, month: m, day: d}
	case Monthly:
		return civil{year: c.year, month: c.month, day: 1}
	}
	if it.plan.gov == governWeekNo {
		y, m, d := calmath.FromDayNumber(calmath.FirstWeekStart(it.weekYear(c), it.plan.weekStart()))
		return civil{year: y, month: m, day: d}
	}
	return civil{year: c.year, month: 1, day: 1}
}
