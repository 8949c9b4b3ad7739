// Package calmath holds the proleptic Gregorian arithmetic the recurrence
// iterator relies on. Dates are handled as plain (year, month, day) integers
// and as civil day numbers counted from 1970-01-01, so nothing here depends on
// a time zone or on daylight saving transitions.
package calmath

import "time"

// daysBefore[m] counts the days of a non-leap year before month m+1 begins.
var daysBefore = [...]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}

// IsLeapYear reports whether year has a February 29th.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in month (1-12) of year.
func DaysInMonth(year, month int) int {
	if month == 2 {
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	if month == 4 || month == 6 || month == 9 || month == 11 {
		return 30
	}
	return 31
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// DayOfYear returns the 1-based ordinal of the date within its year.
func DayOfYear(year, month, day int) int {
	n := daysBefore[month-1] + day
	if month > 2 && IsLeapYear(year) {
		n++
	}
	return n
}

// MonthDay converts a 1-based day of year into month and day. The caller
// guarantees 1 <= yearDay <= DaysInYear(year).
func MonthDay(year, yearDay int) (month, day int) {
	leap := 0
	if IsLeapYear(year) {
		leap = 1
	}
	for m := 12; m >= 1; m-- {
		before := daysBefore[m-1]
		if m > 2 {
			before += leap
		}
		if yearDay > before {
			return m, yearDay - before
		}
	}
	return 1, yearDay
}

// DayNumber returns the number of days between 1970-01-01 and the date.
// Dates before the epoch yield negative numbers.
func DayNumber(year, month, day int) int {
	if month <= 2 {
		year--
	}
	era := FloorDiv(year, 400)
	yoe := year - era*400
	mp := (month + 9) % 12
	doy := (153*mp+2)/5 + day - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// FromDayNumber is the inverse of DayNumber.
func FromDayNumber(n int) (year, month, day int) {
	n += 719468
	era := FloorDiv(n, 146097)
	doe := n - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	year = yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day = doy - (153*mp+2)/5 + 1
	if mp < 10 {
		month = mp + 3
	} else {
		month = mp - 9
	}
	if month <= 2 {
		year++
	}
	return year, month, day
}

// Weekday returns the day of the week for the given day number.
func Weekday(dayNumber int) time.Weekday {
	// 1970-01-01 was a Thursday.
	return time.Weekday(FloorMod(dayNumber+4, 7))
}

// WeekdayOf returns the day of the week of a calendar date.
func WeekdayOf(year, month, day int) time.Weekday {
	return Weekday(DayNumber(year, month, day))
}

// FirstWeekStart returns the day number on which week 1 of year begins when
// weeks start on wkst. Week 1 is the first week holding at least four days of
// the year, which is the week containing January 4th.
func FirstWeekStart(year int, wkst time.Weekday) int {
	jan4 := DayNumber(year, 1, 4)
	return jan4 - FloorMod(int(Weekday(jan4))-int(wkst), 7)
}

// WeeksInYear returns 52 or 53, the number of weeks numbered within year.
func WeeksInYear(year int, wkst time.Weekday) int {
	return (FirstWeekStart(year+1, wkst) - FirstWeekStart(year, wkst)) / 7
}

// WeekNumber returns the week-numbering year and week of a date. Early January
// dates can belong to the last week of the previous year and late December
// dates to week 1 of the next.
func WeekNumber(year, month, day int, wkst time.Weekday) (weekYear, week int) {
	n := DayNumber(year, month, day)
	weekYear = year
	start := FirstWeekStart(year, wkst)
	if n < start {
		weekYear--
		start = FirstWeekStart(weekYear, wkst)
	} else if next := FirstWeekStart(year+1, wkst); n >= next {
		weekYear++
		start = next
	}
	return weekYear, (n-start)/7 + 1
}

// WeekStart returns the day number of the first day of the week holding
// dayNumber.
func WeekStart(dayNumber int, wkst time.Weekday) int {
	return dayNumber - FloorMod(int(Weekday(dayNumber))-int(wkst), 7)
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod returns the remainder matching FloorDiv, always in [0, b) for b > 0.
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
