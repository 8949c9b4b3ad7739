package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/recur"
)

// ExpandResult lists occurrences of a rule.
type ExpandResult struct {
	Rule        string   `json:"rule" yaml:"rule"`
	Start       string   `json:"start" yaml:"start"`
	Offset      int      `json:"offset,omitempty" yaml:"offset,omitempty"` // occurrences produced before the first listed
	Occurrences []string `json:"occurrences" yaml:"occurrences"`
	Completed   bool     `json:"completed" yaml:"completed"`
}

// RenderText implements TextRenderer.
func (r *ExpandResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "%s from %s\n", r.Rule, r.Start)
	for i, occ := range r.Occurrences {
		fmt.Fprintf(w, "%4d  %s\n", r.Offset+i+1, occ)
	}
	if len(r.Occurrences) == 0 {
		fmt.Fprintln(w, "no occurrences")
	}
	if r.Completed {
		fmt.Fprintln(w, "end of recurrence")
	}
	return nil
}

func newExpandResult(it *recur.Iterator, dateOnly bool, offset int, occurrences []time.Time) *ExpandResult {
	r := &ExpandResult{
		Rule:        it.Rule().String(),
		Start:       formatTime(it.Start(), dateOnly),
		Offset:      offset,
		Occurrences: make([]string, 0, len(occurrences)),
		Completed:   it.Completed(),
	}
	for _, t := range occurrences {
		r.Occurrences = append(r.Occurrences, formatTime(t, dateOnly))
	}
	return r
}

type expandOptions struct {
	input ruleInput
	limit int
	from  string
	until string
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &expandOptions{}
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "List the occurrences of a recurrence rule",
		Long: `List the occurrences of a recurrence rule in order.

--from skips ahead to the first occurrence at or after a date-time without
producing the ones before it; --until stops the listing.`,
		Example: `  librecur expand --rule 'FREQ=MONTHLY;BYDAY=-1FR' --start 2024-01-26T17:00:00 --limit 5
  librecur expand --rule-file standup.yaml --from 2025-03-01 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(rootOpts, opts, cmd)
		},
	}
	opts.input.bind(cmd)
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "maximum number of occurrences (0 = until the rule ends)")
	cmd.Flags().StringVar(&opts.from, "from", "", "start listing at the first occurrence at or after this date-time")
	cmd.Flags().StringVar(&opts.until, "until", "", "stop listing after this date-time")
	return cmd
}

func runExpand(rootOpts *RootOptions, opts *expandOptions, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	rec, err := opts.input.resolve()
	if err != nil {
		return failInput(formatter, err)
	}
	loc := rec.Start.Location()
	from, err := parseOptionalTime("from", opts.from, loc)
	if err != nil {
		return failInput(formatter, err)
	}
	until, err := parseOptionalTime("until", opts.until, loc)
	if err != nil {
		return failInput(formatter, err)
	}
	if opts.limit == 0 && until.IsZero() {
		formatter.VerboseLog("no --limit or --until: listing runs until the rule ends")
	}

	it, err := rootOpts.engine().Iterator(rec.Start, rec.Info)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRule, err)
	}

	var next mo.Option[time.Time]
	if !from.IsZero() && from.After(rec.Start) {
		formatter.VerboseLog("fast-forwarding to %s", formatTime(from, false))
		next, err = it.FastForward(from)
	} else {
		next, err = it.Next()
	}
	occurrences, err := collect(it, next, err, opts.limit, until)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeIteration, err)
	}
	return formatter.Success(newExpandResult(it, rec.Info.AllDay, 0, occurrences))
}
