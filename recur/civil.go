package recur

import (
	"fmt"
	"time"

	"github.com/cyp0633/librecur/internal/calmath"
)

const civilLayout = "2006-01-02T15:04:05"

// civil is a wall-clock date-time without a zone. Candidates are generated
// and compared in this form and only converted to time.Time when emitted, so
// daylight saving transitions cannot reorder them.
type civil struct {
	year, month, day     int
	hour, minute, second int
}

func civilOf(t time.Time) civil {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return civil{y, int(m), d, hh, mm, ss}
}

func (c civil) date() civil {
	return civil{year: c.year, month: c.month, day: c.day}
}

func (c civil) before(o civil) bool {
	switch {
	case c.year != o.year:
		return c.year < o.year
	case c.month != o.month:
		return c.month < o.month
	case c.day != o.day:
		return c.day < o.day
	case c.hour != o.hour:
		return c.hour < o.hour
	case c.minute != o.minute:
		return c.minute < o.minute
	}
	return c.second < o.second
}

func (c civil) dayNumber() int {
	return calmath.DayNumber(c.year, c.month, c.day)
}

func (c civil) weekday() Weekday {
	return WeekdayFromTime(calmath.Weekday(c.dayNumber()))
}

func (c civil) in(loc *time.Location) time.Time {
	return time.Date(c.year, time.Month(c.month), c.day, c.hour, c.minute, c.second, 0, loc)
}

func (c civil) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", c.year, c.month, c.day, c.hour, c.minute, c.second)
}

func parseCivil(s string) (civil, error) {
	t, err := time.Parse(civilLayout, s)
	if err != nil {
		return civil{}, err
	}
	return civilOf(t), nil
}
