package recur

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mustRule reads the small RRULE subset the tests use. Production code gets
// its rules from the recurrence package.
func mustRule(t *testing.T, s string) Rule {
	t.Helper()
	var r Rule
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, "=")
		require.True(t, ok, "malformed part %q", part)
		switch key {
		case "FREQ":
			f, err := ParseFrequency(value)
			require.NoError(t, err)
			r.Freq = f
		case "INTERVAL":
			r.Interval = mustAtoi(t, value)
		case "COUNT":
			r.Count = mustAtoi(t, value)
		case "UNTIL":
			until, err := time.Parse("20060102T150405Z", value)
			require.NoError(t, err)
			r.Until = until
		case "WKST":
			d, err := ParseWeekday(value)
			require.NoError(t, err)
			r.WeekStart = d
		case "BYDAY":
			for _, v := range strings.Split(value, ",") {
				d, err := ParseWeekdayNum(v)
				require.NoError(t, err)
				r.ByParts.Day = append(r.ByParts.Day, d)
			}
		case "BYSECOND":
			r.ByParts.Second = mustInts(t, value)
		case "BYMINUTE":
			r.ByParts.Minute = mustInts(t, value)
		case "BYHOUR":
			r.ByParts.Hour = mustInts(t, value)
		case "BYMONTHDAY":
			r.ByParts.MonthDay = mustInts(t, value)
		case "BYYEARDAY":
			r.ByParts.YearDay = mustInts(t, value)
		case "BYWEEKNO":
			r.ByParts.WeekNo = mustInts(t, value)
		case "BYMONTH":
			r.ByParts.Month = mustInts(t, value)
		case "BYSETPOS":
			r.ByParts.SetPos = mustInts(t, value)
		default:
			t.Fatalf("unsupported rule part %q", key)
		}
	}
	return r
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}

func mustInts(t *testing.T, s string) []int {
	t.Helper()
	var out []int
	for _, v := range strings.Split(s, ",") {
		out = append(out, mustAtoi(t, v))
	}
	return out
}

// at parses a wall-clock time in UTC.
func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(civilLayout, s)
	require.NoError(t, err)
	return v
}

func mustIterator(t *testing.T, rule, start string, opts ...Option) *Iterator {
	t.Helper()
	it, err := New(mustRule(t, rule), Anchor{Start: at(t, start)}, opts...)
	require.NoError(t, err)
	return it
}

// collect calls Next up to n times and formats what it gets.
func collect(t *testing.T, it *Iterator, n int) []string {
	t.Helper()
	out := []string{}
	for i := 0; i < n; i++ {
		next, err := it.Next()
		require.NoError(t, err)
		v, ok := next.Get()
		if !ok {
			break
		}
		out = append(out, v.Format(civilLayout))
	}
	return out
}
