package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool   `json:"valid" yaml:"valid"`
	Rule       string `json:"rule" yaml:"rule"`
	Governor   string `json:"governor,omitempty" yaml:"governor,omitempty"`
	Normalized string `json:"normalized,omitempty" yaml:"normalized,omitempty"`
}

// RenderText implements TextRenderer.
func (r *ValidationResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "✓ %s is valid\n", r.Rule)
	fmt.Fprintf(w, "  day selection: %s\n", r.Governor)
	fmt.Fprintf(w, "  normalized:    %s\n", r.Normalized)
	return nil
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	input := &ruleInput{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a recurrence rule without expanding it",
		Long: `Check that a recurrence rule can be iterated from the given start and show
the by-parts it expands to.

Exits with 1 when the rule is invalid and 2 when the input cannot be read.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, input, cmd)
		},
	}
	input.bind(cmd)
	return cmd
}

func runValidate(opts *RootOptions, input *ruleInput, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	rec, err := input.resolve()
	if err != nil {
		return failInput(formatter, err)
	}
	it, err := opts.engine().Iterator(rec.Start, rec.Info)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeRule, err)
	}

	normalized := it.Rule()
	normalized.ByParts = it.NormalizedByParts()
	return formatter.Success(&ValidationResult{
		Valid:      true,
		Rule:       it.Rule().String(),
		Governor:   it.Snapshot().Governor,
		Normalized: normalized.String(),
	})
}
