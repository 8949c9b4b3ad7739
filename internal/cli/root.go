package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/cyp0633/librecur/storage/file"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"

	// Set up by the root command before a subcommand runs. Subcommands built
	// on their own fall back to defaults.
	Logger *slog.Logger
	Config *recurrence.EngineConfig

	// OpenStore opens the snapshot store in dir; nil means a file store.
	OpenStore func(dir string, codec storage.Codec) (storage.Store, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the librecur CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "librecur",
		Short: "librecur - RFC 5545 recurrence rules",
		Long: `Expand, seek, validate and checkpoint iCalendar recurrence rules.

Engine limits are read from LIBRECUR_* environment variables.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintf(cmd.ErrOrStderr(), "Error [%s]: %s\n", ErrCodeUsage, msg)
				return NewExitError(ExitCommandError, msg)
			}

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			cfg, err := recurrence.LoadEngineConfig()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error [%s]: %v\n", ErrCodeUsage, err)
				return WrapExitError(ExitCommandError, "invalid environment configuration", err)
			}
			opts.Config = &cfg
			opts.Logger.Debug("engine configuration loaded", "config", fmt.Sprintf("%+v", cfg))
			return nil
		},
	}

	// Subcommands silence cobra's own error output, so flag errors are
	// reported here.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintf(c.ErrOrStderr(), "Error [%s]: %v\n", ErrCodeUsage, err)
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	// Add subcommands
	cmd.AddCommand(NewExpandCommand(opts))
	cmd.AddCommand(NewCalendarCommand(opts))
	cmd.AddCommand(NewSeekCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewSnapshotsCommand(opts))

	return cmd
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *RootOptions) engine() *recurrence.Engine {
	cfg := recurrence.DefaultEngineConfig
	if o.Config != nil {
		cfg = *o.Config
	}
	// One command runs one query; a result cache would never be hit.
	cfg.CacheEnabled = false
	engine := recurrence.NewEngineWithConfig(cfg)
	engine.Logger = o.logger()
	return engine
}

func (o *RootOptions) openStore(dir string, codec storage.Codec) (storage.Store, error) {
	if o.OpenStore != nil {
		return o.OpenStore(dir, codec)
	}
	return file.Open(dir, codec)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
