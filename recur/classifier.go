package recur

import (
	"math/bits"

	"github.com/cyp0633/librecur/internal/calmath"
)

// A Gregorian year has one of fourteen shapes: the weekday of January 1st
// combined with the leap flag. Everything BYDAY needs to know about a year
// follows from its shape, so the lookups below are built once per shape.
const yearShapes = 14

type shapeTables struct {
	// monthDays[shape][month-1][weekday] has bit d set when day d of the
	// month falls on weekday.
	monthDays [yearShapes][12][7]uint32
	// yearDays[shape][weekday] lists, ascending, the days of the year that
	// fall on weekday.
	yearDays [yearShapes][7][]int
}

var shapes = buildShapeTables()

func buildShapeTables() *shapeTables {
	t := &shapeTables{}
	for jan1 := Monday; jan1 <= Sunday; jan1++ {
		for _, leap := range []bool{false, true} {
			s := shapeIndex(jan1, leap)
			// The sample year only supplies month lengths.
			sample := 2001
			if leap {
				sample = 2024
			}
			yd := 0
			for m := 1; m <= 12; m++ {
				for d := 1; d <= calmath.DaysInMonth(sample, m); d++ {
					yd++
					wd := Weekday((int(jan1) + yd - 1) % 7)
					t.monthDays[s][m-1][wd] |= 1 << d
					t.yearDays[s][wd] = append(t.yearDays[s][wd], yd)
				}
			}
		}
	}
	return t
}

func shapeIndex(jan1 Weekday, leap bool) int {
	s := int(jan1) * 2
	if leap {
		s++
	}
	return s
}

func shapeOf(year int) int {
	return shapeIndex(WeekdayFromTime(calmath.WeekdayOf(year, 1, 1)), calmath.IsLeapYear(year))
}

// monthDayMask returns the days of the month falling on wd as a bit set.
func monthDayMask(year, month int, wd Weekday) uint32 {
	return shapes.monthDays[shapeOf(year)][month-1][wd]
}

// yearDayList returns the days of the year falling on wd, ascending. The
// slice is shared and must not be modified.
func yearDayList(year int, wd Weekday) []int {
	return shapes.yearDays[shapeOf(year)][wd]
}

// nthMonthDay returns the day of the nth set bit of mask, counting from the
// highest bit when n is negative, or 0 when there is no such bit.
func nthMonthDay(mask uint32, n int) int {
	count := bits.OnesCount32(mask)
	if n < 0 {
		n = count + 1 + n
	}
	if n < 1 || n > count {
		return 0
	}
	for ; n > 1; n-- {
		mask &= mask - 1
	}
	return bits.TrailingZeros32(mask)
}

// dayScope selects the period an ordinal BYDAY entry counts within.
type dayScope int

const (
	scopeNone dayScope = iota
	scopeMonth
	scopeYear
)

// matchesWeekday reports whether the date satisfies at least one BYDAY
// entry. Ordinals are ignored under scopeNone.
func matchesWeekday(entries []WeekdayNum, scope dayScope, year, month, day int) bool {
	wd := WeekdayFromTime(calmath.WeekdayOf(year, month, day))
	for _, e := range entries {
		if e.Day != wd {
			continue
		}
		if e.N == 0 || scope == scopeNone {
			return true
		}
		switch scope {
		case scopeMonth:
			if nthMonthDay(monthDayMask(year, month, wd), e.N) == day {
				return true
			}
		case scopeYear:
			list := yearDayList(year, wd)
			i := e.N - 1
			if e.N < 0 {
				i = len(list) + e.N
			}
			if i >= 0 && i < len(list) && list[i] == calmath.DayOfYear(year, month, day) {
				return true
			}
		}
	}
	return false
}
