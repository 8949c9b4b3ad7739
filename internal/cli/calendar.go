package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/recurrence"
)

// CalendarOccurrence is one event instance in a calendar expansion.
type CalendarOccurrence struct {
	UID          string `json:"uid" yaml:"uid"`
	Summary      string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Start        string `json:"start" yaml:"start"`
	End          string `json:"end" yaml:"end"`
	Exception    bool   `json:"exception,omitempty" yaml:"exception,omitempty"`
	RecurrenceID string `json:"recurrenceId,omitempty" yaml:"recurrenceId,omitempty"`
}

// CalendarResult lists the event instances of a calendar within a range.
type CalendarResult struct {
	RangeStart  string               `json:"rangeStart" yaml:"rangeStart"`
	RangeEnd    string               `json:"rangeEnd" yaml:"rangeEnd"`
	Occurrences []CalendarOccurrence `json:"occurrences" yaml:"occurrences"`
}

// RenderText implements TextRenderer.
func (r *CalendarResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%d occurrences between %s and %s\n", len(r.Occurrences), r.RangeStart, r.RangeEnd)
	for _, occ := range r.Occurrences {
		line := fmt.Sprintf("%s  %s  %s", occ.Start, occ.UID, occ.Summary)
		if occ.Exception {
			line += "  (moved from " + occ.RecurrenceID + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

type calendarOptions struct {
	rangeStart string
	rangeEnd   string
	tzid       string
	limit      int
	exceptions bool
}

// NewCalendarCommand creates the calendar command.
func NewCalendarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &calendarOptions{}
	cmd := &cobra.Command{
		Use:   "calendar <file.ics>",
		Short: "Expand the events of an iCalendar file",
		Long: `Expand every VEVENT of an iCalendar file over a time range.

RRULE, RDATE and EXDATE are honoured. Instances overridden by a
RECURRENCE-ID component are replaced by the override, or dropped with
--exceptions=false.`,
		Example:       `  librecur calendar team.ics --range-start 2024-01-01 --range-end 2024-02-01`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalendar(rootOpts, opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.rangeStart, "range-start", "", "start of the range (required)")
	cmd.Flags().StringVar(&opts.rangeEnd, "range-end", "", "end of the range (required)")
	cmd.Flags().StringVar(&opts.tzid, "tzid", "", "time zone for floating range bounds and output (default UTC)")
	cmd.Flags().IntVar(&opts.limit, "limit", recurrence.DefaultExpansionOptions.MaxOccurrences, "maximum occurrences per event (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.exceptions, "exceptions", true, "include override instances")
	return cmd
}

func runCalendar(rootOpts *RootOptions, opts *calendarOptions, path string, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	loc, err := loadLocation(opts.tzid)
	if err != nil {
		return failInput(formatter, err)
	}
	if opts.rangeStart == "" || opts.rangeEnd == "" {
		return failInput(formatter, errors.New("--range-start and --range-end are required"))
	}
	rangeStart, err := parseOptionalTime("range-start", opts.rangeStart, loc)
	if err != nil {
		return failInput(formatter, err)
	}
	rangeEnd, err := parseOptionalTime("range-end", opts.rangeEnd, loc)
	if err != nil {
		return failInput(formatter, err)
	}
	if rangeEnd.Before(rangeStart) {
		return failInput(formatter, errors.New("--range-end is before --range-start"))
	}

	f, err := os.Open(path)
	if err != nil {
		return failInput(formatter, &inputError{code: ErrCodeInput, err: err})
	}
	defer f.Close()
	cal, err := ical.NewDecoder(f).Decode()
	if err != nil {
		return failInput(formatter, &inputError{code: ErrCodeInput, err: fmt.Errorf("%s: %w", path, err)})
	}
	formatter.VerboseLog("decoded %d components from %s", len(cal.Children), path)

	expansion := recurrence.ExpansionOptions{
		MaxOccurrences:    opts.limit,
		IncludeExceptions: opts.exceptions,
	}
	occurrences, err := rootOpts.engine().ExpandCalendar(cal, rangeStart, rangeEnd, expansion)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeIteration, err)
	}

	result := &CalendarResult{
		RangeStart:  formatTime(rangeStart.In(loc), false),
		RangeEnd:    formatTime(rangeEnd.In(loc), false),
		Occurrences: make([]CalendarOccurrence, 0, len(occurrences)),
	}
	for _, occ := range occurrences {
		allDay := recurrence.ExtractRecurrenceInfoFromComponent(occ.Component).AllDay
		out := CalendarOccurrence{
			UID:       occ.UID,
			Start:     formatTime(displayTime(occ.Start, allDay, loc), allDay),
			End:       formatTime(displayTime(occ.End, allDay, loc), allDay),
			Exception: occ.IsException,
		}
		if prop := occ.Component.Props.Get(ical.PropSummary); prop != nil {
			out.Summary = prop.Value
		}
		if occ.RecurrenceID != nil {
			out.RecurrenceID = formatTime(displayTime(*occ.RecurrenceID, allDay, loc), allDay)
		}
		result.Occurrences = append(result.Occurrences, out)
	}
	return formatter.Success(result)
}

// displayTime moves timed instants into the output zone. Dates stay as they
// are so an all-day event keeps its calendar day.
func displayTime(t time.Time, allDay bool, loc *time.Location) time.Time {
	if allDay {
		return t
	}
	return t.In(loc)
}
