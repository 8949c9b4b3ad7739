package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cyp0633/librecur/recur"
	"github.com/cyp0633/librecur/recurrence"
)

// ruleInput is a recurring rule given on the command line or in a YAML file:
//
//	rule: FREQ=MONTHLY;BYDAY=-1FR
//	start: 2024-01-26T17:00:00
//	tzid: Europe/Berlin
//
// Flags override the file.
type ruleInput struct {
	Rule  string `yaml:"rule"`
	Start string `yaml:"start"`
	TZID  string `yaml:"tzid"`
	Date  bool   `yaml:"date"`

	file string
}

func (in *ruleInput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.Rule, "rule", "", "RRULE value, e.g. FREQ=WEEKLY;BYDAY=MO")
	cmd.Flags().StringVar(&in.file, "rule-file", "", "YAML file with rule, start, tzid and date")
	cmd.Flags().StringVar(&in.Start, "start", "", "DTSTART (RFC 3339, iCalendar or date-only form)")
	cmd.Flags().StringVar(&in.TZID, "tzid", "", "IANA time zone the start is read in (default UTC)")
	cmd.Flags().BoolVar(&in.Date, "date", false, "treat the start as a date without time of day")
}

// recurring is a resolved ruleInput.
type recurring struct {
	Info  recurrence.RecurrenceInfo
	Start time.Time
}

// resolve merges the rule file under the flags and parses the start.
func (in *ruleInput) resolve() (recurring, error) {
	merged := *in
	if in.file != "" {
		data, err := os.ReadFile(in.file)
		if err != nil {
			return recurring{}, &inputError{code: ErrCodeInput, err: err}
		}
		var fromFile ruleInput
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return recurring{}, &inputError{code: ErrCodeInput, err: fmt.Errorf("%s: %w", in.file, err)}
		}
		merged = fromFile
		if in.Rule != "" {
			merged.Rule = in.Rule
		}
		if in.Start != "" {
			merged.Start = in.Start
		}
		if in.TZID != "" {
			merged.TZID = in.TZID
		}
		merged.Date = merged.Date || in.Date
	}

	if strings.TrimSpace(merged.Rule) == "" {
		return recurring{}, &inputError{code: ErrCodeUsage, err: errors.New("a rule is required (--rule or --rule-file)")}
	}
	if merged.Start == "" {
		return recurring{}, &inputError{code: ErrCodeUsage, err: errors.New("a start is required (--start or --rule-file)")}
	}
	loc, err := loadLocation(merged.TZID)
	if err != nil {
		return recurring{}, &inputError{code: ErrCodeUsage, err: err}
	}
	start, dateOnly, err := parseTime(merged.Start, loc)
	if err != nil {
		return recurring{}, &inputError{code: ErrCodeUsage, err: fmt.Errorf("start: %w", err)}
	}
	if merged.Date && !dateOnly {
		y, m, d := start.Date()
		start, dateOnly = time.Date(y, m, d, 0, 0, 0, 0, start.Location()), true
	}
	return recurring{
		Info:  recurrence.RecurrenceInfo{RRULE: strings.TrimSpace(merged.Rule), AllDay: dateOnly},
		Start: start,
	}, nil
}

// inputError is a problem with what the user passed in; it always exits
// with ExitCommandError.
type inputError struct {
	code string
	err  error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

// failInput reports a resolve or flag error.
func failInput(f *OutputFormatter, err error) error {
	code := ErrCodeUsage
	var in *inputError
	if errors.As(err, &in) {
		code = in.code
	}
	return f.Fail(ExitCommandError, code, err)
}

func loadLocation(tzid string) (*time.Location, error) {
	if tzid == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", tzid)
	}
	return loc, nil
}

var (
	dateLayouts     = []string{"2006-01-02", "20060102"}
	floatingLayouts = []string{"2006-01-02T15:04:05", "20060102T150405"}
)

// parseTime reads a date-time in one of the forms users paste from calendars.
// Dates and floating times are taken in loc; zoned times are moved into it.
func parseTime(value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true, nil
		}
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.Parse("20060102T150405Z", value); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), false, nil
	}
	return time.Time{}, false, fmt.Errorf("cannot parse %q as a date or date-time", value)
}

// parseOptionalTime parses a flag that may be left empty.
func parseOptionalTime(name, value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, _, err := parseTime(value, loc)
	if err != nil {
		return time.Time{}, &inputError{code: ErrCodeUsage, err: fmt.Errorf("--%s: %w", name, err)}
	}
	return t, nil
}

func formatTime(t time.Time, dateOnly bool) string {
	if dateOnly {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

// collect reads up to limit occurrences, the first of which is next,
// stopping after until when it is set.
func collect(it *recur.Iterator, next mo.Option[time.Time], err error, limit int, until time.Time) ([]time.Time, error) {
	var out []time.Time
	for ; err == nil; next, err = it.Next() {
		t, ok := next.Get()
		if !ok || (!until.IsZero() && t.After(until)) {
			return out, nil
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			return out, nil
		}
	}
	return out, err
}
