package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/recur"
)

// SeekResult is the outcome of a fast-forward.
type SeekResult struct {
	Rule        string   `json:"rule" yaml:"rule"`
	Target      string   `json:"target" yaml:"target"`
	Found       bool     `json:"found" yaml:"found"`
	Occurrences []string `json:"occurrences,omitempty" yaml:"occurrences,omitempty"`
}

// RenderText implements TextRenderer.
func (r *SeekResult) RenderText(w io.Writer) error {
	if !r.Found {
		fmt.Fprintf(w, "no occurrence of %s at or after %s\n", r.Rule, r.Target)
		return nil
	}
	fmt.Fprintf(w, "first occurrence of %s at or after %s:\n", r.Rule, r.Target)
	for _, occ := range r.Occurrences {
		fmt.Fprintf(w, "  %s\n", occ)
	}
	return nil
}

type seekOptions struct {
	input  ruleInput
	target string
	limit  int
}

// NewSeekCommand creates the seek command.
func NewSeekCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &seekOptions{}
	cmd := &cobra.Command{
		Use:   "seek",
		Short: "Find the first occurrence at or after a date-time",
		Long: `Fast-forward a rule to the first occurrence at or after --target.

Rules without COUNT jump straight to the target; rules with COUNT are
replayed from the start so the count stays exact.`,
		Example:       `  librecur seek --rule 'FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=29' --start 2024-02-29 --target 2025-01-01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeek(rootOpts, opts, cmd)
		},
	}
	opts.input.bind(cmd)
	cmd.Flags().StringVar(&opts.target, "target", "", "date-time to seek to (required)")
	cmd.Flags().IntVar(&opts.limit, "limit", 1, "number of occurrences to list from the target")
	return cmd
}

func runSeek(rootOpts *RootOptions, opts *seekOptions, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	rec, err := opts.input.resolve()
	if err != nil {
		return failInput(formatter, err)
	}
	if opts.target == "" {
		return failInput(formatter, errors.New("--target is required"))
	}
	target, err := parseOptionalTime("target", opts.target, rec.Start.Location())
	if err != nil {
		return failInput(formatter, err)
	}

	it, err := rootOpts.engine().Iterator(rec.Start, rec.Info)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRule, err)
	}
	next, err := it.FastForward(target)
	if errors.Is(err, recur.ErrSeekBeforeStart) {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}
	occurrences, err := collect(it, next, err, max(opts.limit, 1), time.Time{})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeIteration, err)
	}

	result := &SeekResult{
		Rule:   it.Rule().String(),
		Target: formatTime(target, false),
		Found:  len(occurrences) > 0,
	}
	for _, t := range occurrences {
		result.Occurrences = append(result.Occurrences, formatTime(t, rec.Info.AllDay))
	}
	return formatter.Success(result)
}
