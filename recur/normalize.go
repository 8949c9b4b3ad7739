package recur

import (
	"fmt"
	"slices"
	"time"

	"github.com/cyp0633/librecur/internal/calmath"
)

// governor names the by-part that enumerates days. It is chosen once per
// rule: BYYEARDAY wins over BYWEEKNO (YEARLY only), which wins over the
// BYMONTH/BYMONTHDAY pair. The remaining day-level parts become filters.
type governor int

const (
	governMonthDay governor = iota
	governYearDay
	governWeekNo
)

var governorNames = [...]string{"monthday", "yearday", "weekno"}

func (g governor) String() string {
	if g < governMonthDay || g > governWeekNo {
		return fmt.Sprintf("governor(%d)", int(g))
	}
	return governorNames[g]
}

func parseGovernor(s string) (governor, bool) {
	i := slices.Index(governorNames[:], s)
	return governor(i), i >= 0
}

// normalize validates r and fills in the implicit by-parts for its frequency.
// Parts that drive a cursor always come back non-empty; parts that only
// filter stay as given.
func normalize(r Rule, anchor civil, dateOnly bool) (ByPartSet, governor, error) {
	if err := validate(r, dateOnly); err != nil {
		return ByPartSet{}, 0, err
	}

	raw := r.ByParts
	by := ByPartSet{
		Day:      normalizeWeekdays(raw.Day, r.Freq, r.WeekStart),
		MonthDay: sortedInts(raw.MonthDay),
		YearDay:  sortedInts(raw.YearDay),
		WeekNo:   sortedInts(raw.WeekNo),
		Month:    sortedInts(raw.Month),
		SetPos:   sortedInts(raw.SetPos),
		Second:   timePart(raw.Second, r.Freq == Secondly, 59, anchor.second),
		Minute:   timePart(raw.Minute, r.Freq <= Minutely, 59, anchor.minute),
		Hour:     timePart(raw.Hour, r.Freq <= Hourly, 23, anchor.hour),
	}
	if dateOnly {
		by.Second, by.Minute, by.Hour = []int{0}, []int{0}, []int{0}
	}

	gov := governMonthDay
	switch {
	case raw.Has(PartYearDay):
		gov = governYearDay
	case raw.Has(PartWeekNo) && r.Freq == Yearly:
		gov = governWeekNo
	}

	anchorDay := []WeekdayNum{{Day: anchor.weekday()}}
	switch gov {
	case governMonthDay:
		if !raw.Has(PartMonth) {
			if r.Freq == Yearly && !raw.Has(PartDay) {
				by.Month = []int{anchor.month}
			} else {
				by.Month = intRange(1, 12)
			}
		}
		if !raw.Has(PartMonthDay) {
			if (r.Freq == Monthly || r.Freq == Yearly) && !raw.Has(PartDay) {
				by.MonthDay = []int{anchor.day}
			} else {
				by.MonthDay = intRange(1, 31)
			}
		}
		if !raw.Has(PartDay) && r.Freq == Weekly {
			by.Day = anchorDay
		}
	case governWeekNo:
		if !raw.Has(PartDay) {
			if raw.Has(PartMonthDay) {
				by.Day = normalizeWeekdays(everyWeekday(), r.Freq, r.WeekStart)
			} else {
				by.Day = anchorDay
			}
		}
	}
	return by, gov, nil
}

func validate(r Rule, dateOnly bool) error {
	if r.Freq < Secondly || r.Freq > Yearly {
		return fmt.Errorf("%w: unknown frequency %d", ErrInvalidRule, int(r.Freq))
	}
	if r.Interval < 0 {
		return fmt.Errorf("%w: INTERVAL must be positive, got %d", ErrInvalidRule, r.Interval)
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: COUNT must not be negative, got %d", ErrInvalidRule, r.Count)
	}
	if r.WeekStart < Monday || r.WeekStart > Sunday {
		return fmt.Errorf("%w: unknown WKST %d", ErrInvalidRule, int(r.WeekStart))
	}

	by := r.ByParts
	checks := []struct {
		part     ByPart
		values   []int
		min, max int
		negative bool
	}{
		{PartSecond, by.Second, 0, 60, false},
		{PartMinute, by.Minute, 0, 59, false},
		{PartHour, by.Hour, 0, 23, false},
		{PartMonthDay, by.MonthDay, 1, 31, true},
		{PartYearDay, by.YearDay, 1, 366, true},
		{PartWeekNo, by.WeekNo, 1, 53, true},
		{PartMonth, by.Month, 1, 12, false},
	}
	for _, c := range checks {
		for _, v := range c.values {
			abs := v
			if c.negative && v < 0 {
				abs = -v
			}
			if abs < c.min || abs > c.max {
				return fmt.Errorf("%w: %s value %d out of range", ErrInvalidRule, c.part, v)
			}
		}
	}
	for _, v := range by.SetPos {
		if v == 0 || v < -366 || v > 366 {
			return fmt.Errorf("%w: BYSETPOS value %d out of range", ErrInvalidRule, v)
		}
	}
	for _, d := range by.Day {
		if d.Day < Monday || d.Day > Sunday || d.N < -53 || d.N > 53 {
			return fmt.Errorf("%w: BYDAY entry %s out of range", ErrInvalidRule, d)
		}
	}

	switch {
	case r.Freq == Monthly && (by.Has(PartYearDay) || by.Has(PartWeekNo)):
		return fmt.Errorf("%w: MONTHLY rules cannot use BYYEARDAY or BYWEEKNO", ErrStructuralRule)
	case r.Freq == Weekly && (by.Has(PartMonthDay) || by.Has(PartYearDay)):
		return fmt.Errorf("%w: WEEKLY rules cannot use BYMONTHDAY or BYYEARDAY", ErrStructuralRule)
	case by.Has(PartYearDay) && r.Freq >= Daily && r.Freq != Yearly:
		return fmt.Errorf("%w: BYYEARDAY is not allowed with FREQ=%s", ErrStructuralRule, r.Freq)
	case dateOnly && r.Freq.subDaily():
		return fmt.Errorf("%w: FREQ=%s needs a start with a time of day", ErrStructuralRule, r.Freq)
	}
	if r.Freq == Monthly {
		for _, d := range by.Day {
			if d.N < -5 || d.N > 5 {
				return fmt.Errorf("%w: BYDAY ordinal %d exceeds the weeks of a month", ErrStructuralRule, d.N)
			}
		}
	}
	return nil
}

// normalizeWeekdays drops ordinals where the frequency gives them no meaning,
// removes repeats and orders entries by their distance from the week start.
func normalizeWeekdays(days []WeekdayNum, freq Frequency, wkst Weekday) []WeekdayNum {
	if len(days) == 0 {
		return nil
	}
	out := make([]WeekdayNum, 0, len(days))
	for _, d := range days {
		if freq != Monthly && freq != Yearly {
			d.N = 0
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b WeekdayNum) int {
		return calmath.FloorMod(int(a.Day-wkst), 7) - calmath.FloorMod(int(b.Day-wkst), 7)
	})
	return out
}

func everyWeekday() []WeekdayNum {
	days := make([]WeekdayNum, 0, 7)
	for d := Monday; d <= Sunday; d++ {
		days = append(days, WeekdayNum{Day: d})
	}
	return days
}

// timePart returns the explicit values, the full range when the frequency is
// at least as fine as the field, or the anchor's value otherwise.
func timePart(explicit []int, full bool, max, anchor int) []int {
	switch {
	case len(explicit) > 0:
		return sortedInts(explicit)
	case full:
		return intRange(0, max)
	}
	return []int{anchor}
}

func sortedInts(v []int) []int {
	if len(v) == 0 {
		return nil
	}
	out := slices.Clone(v)
	slices.Sort(out)
	return slices.Compact(out)
}

func intRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// plan is the compiled form of a normalized rule.
type plan struct {
	freq     Frequency
	interval int
	wkst     Weekday
	gov      governor
	by       ByPartSet
	scope    dayScope
}

func newPlan(r Rule, by ByPartSet, gov governor) *plan {
	p := &plan{
		freq:     r.Freq,
		interval: r.Interval,
		wkst:     r.WeekStart,
		gov:      gov,
		by:       by,
	}
	if p.interval < 1 {
		p.interval = 1
	}
	switch {
	case r.Freq == Monthly:
		p.scope = scopeMonth
	case r.Freq == Yearly && r.ByParts.Has(PartMonth):
		p.scope = scopeMonth
	case r.Freq == Yearly:
		p.scope = scopeYear
	}
	return p
}

// matchesDate applies the day-level parts that do not drive a cursor.
func (p *plan) matchesDate(year, month, day int) bool {
	if p.gov != governMonthDay {
		if len(p.by.Month) > 0 && !slices.Contains(p.by.Month, month) {
			return false
		}
		if len(p.by.MonthDay) > 0 && !containsRelative(p.by.MonthDay, day, calmath.DaysInMonth(year, month)) {
			return false
		}
	}
	if len(p.by.WeekNo) > 0 && p.gov != governWeekNo {
		wy, w := calmath.WeekNumber(year, month, day, p.wkst.Time())
		if !containsRelative(p.by.WeekNo, w, calmath.WeeksInYear(wy, p.wkst.Time())) {
			return false
		}
	}
	if len(p.by.Day) > 0 && !matchesWeekday(p.by.Day, p.scope, year, month, day) {
		return false
	}
	return true
}

// containsRelative reports whether v appears in values, reading negative
// entries as counted back from max.
func containsRelative(values []int, v, max int) bool {
	for _, e := range values {
		if e == v || (e < 0 && max+1+e == v) {
			return true
		}
	}
	return false
}

func (p *plan) weekStart() time.Weekday {
	return p.wkst.Time()
}
