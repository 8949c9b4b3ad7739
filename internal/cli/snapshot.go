package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cyp0633/librecur/storage"
	"github.com/cyp0633/librecur/storage/sqlite"
)

// DefaultStoreDir is where snapshots are kept unless --dir says otherwise.
const DefaultStoreDir = "snapshots"

type storeFlags struct {
	dir string
	xml bool
	db  string
}

func (s *storeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.dir, "dir", DefaultStoreDir, "snapshot directory")
	cmd.Flags().BoolVar(&s.xml, "xml", false, "store snapshots as XML instead of JSON")
	cmd.Flags().StringVar(&s.db, "db", "", "SQLite database to use instead of the snapshot directory")
	cmd.MarkFlagsMutuallyExclusive("db", "xml")
}

func (s *storeFlags) open(rootOpts *RootOptions) (storage.Store, error) {
	if s.db != "" {
		store, err := sqlite.Open(s.db)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	name := "json"
	if s.xml {
		name = "xml"
	}
	codec, err := storage.CodecFor(name)
	if err != nil {
		return nil, err
	}
	return rootOpts.openStore(s.dir, codec)
}

func closeStore(store storage.Store) {
	if c, ok := store.(io.Closer); ok {
		c.Close()
	}
}

// SnapshotResult describes a saved iterator.
type SnapshotResult struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Rule        string `json:"rule" yaml:"rule"`
	Occurrences int    `json:"occurrences" yaml:"occurrences"` // produced before the snapshot
	Last        string `json:"last,omitempty" yaml:"last,omitempty"`
	Completed   bool   `json:"completed" yaml:"completed"`
}

// RenderText implements TextRenderer.
func (r *SnapshotResult) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "saved snapshot %s after %d occurrences\n", r.ID, r.Occurrences)
	if r.Last != "" {
		fmt.Fprintf(w, "  last occurrence: %s\n", r.Last)
	}
	if r.Completed {
		fmt.Fprintln(w, "  the recurrence has ended")
	}
	return nil
}

func newSnapshotResult(rec *storage.SnapshotRecord) *SnapshotResult {
	s := rec.Snapshot
	return &SnapshotResult{
		ID:          rec.ID.String(),
		Name:        rec.Name,
		Rule:        s.Rule.String(),
		Occurrences: s.OccurrenceNumber,
		Last:        s.Last,
		Completed:   s.Completed,
	}
}

type snapshotOptions struct {
	input ruleInput
	store storeFlags
	after int
	name  string
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &snapshotOptions{}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Advance an iterator and save its state",
		Long: `Produce --after occurrences of a rule and save the iterator's state to the
snapshot directory. The printed ID resumes it later with "librecur resume".`,
		Example:       `  librecur snapshot --rule 'FREQ=DAILY;COUNT=30' --start 2024-01-01T09:00:00Z --after 10 --name billing`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(rootOpts, opts, cmd)
		},
	}
	opts.input.bind(cmd)
	opts.store.bind(cmd)
	cmd.Flags().IntVar(&opts.after, "after", 0, "occurrences to produce before saving")
	cmd.Flags().StringVar(&opts.name, "name", "", "label stored with the snapshot")
	return cmd
}

func runSnapshot(rootOpts *RootOptions, opts *snapshotOptions, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	rec, err := opts.input.resolve()
	if err != nil {
		return failInput(formatter, err)
	}
	if opts.after < 0 {
		return failInput(formatter, errors.New("--after must not be negative"))
	}
	store, err := opts.store.open(rootOpts)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}
	defer closeStore(store)

	it, err := rootOpts.engine().Iterator(rec.Start, rec.Info)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRule, err)
	}
	for i := 0; i < opts.after; i++ {
		next, err := it.Next()
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeIteration, err)
		}
		if next.IsAbsent() {
			formatter.VerboseLog("recurrence ended after %d occurrences", i)
			break
		}
	}

	record := storage.NewRecord(opts.name, it)
	if err := store.Save(contextOf(cmd), record); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}
	rootOpts.logger().Debug("snapshot saved", "id", record.ID, "occurrences", it.OccurrenceNumber())
	return formatter.Success(newSnapshotResult(record))
}

type resumeOptions struct {
	store storeFlags
	id    string
	limit int
	save  bool
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &resumeOptions{}
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue a saved iterator",
		Long: `Restore a saved iterator and list the occurrences that follow. With --save
the advanced state replaces the stored snapshot.`,
		Example:       `  librecur resume --id 5f0c... --limit 5 --save`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(rootOpts, opts, cmd)
		},
	}
	opts.store.bind(cmd)
	cmd.Flags().StringVar(&opts.id, "id", "", "snapshot ID (required)")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "maximum number of occurrences (0 = until the rule ends)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the advanced state")
	return cmd
}

func runResume(rootOpts *RootOptions, opts *resumeOptions, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	if opts.id == "" {
		return failInput(formatter, errors.New("--id is required"))
	}
	id, err := uuid.Parse(opts.id)
	if err != nil {
		return failInput(formatter, fmt.Errorf("--id: %w", err))
	}
	store, err := opts.store.open(rootOpts)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}
	defer closeStore(store)
	ctx := contextOf(cmd)
	record, err := store.Load(ctx, id)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}

	it, err := rootOpts.engine().Restore(record.Snapshot)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}
	offset := it.OccurrenceNumber()
	next, err := it.Next()
	occurrences, err := collect(it, next, err, opts.limit, time.Time{})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeIteration, err)
	}

	if opts.save {
		record.Snapshot = it.Snapshot()
		if err := store.Save(ctx, record); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStorage, err)
		}
		formatter.VerboseLog("saved snapshot %s at occurrence %d", record.ID, it.OccurrenceNumber())
	}
	return formatter.Success(newExpandResult(it, record.Snapshot.DateOnly, offset, occurrences))
}

// SnapshotSummary is one entry of a snapshot listing.
type SnapshotSummary struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Rule        string `json:"rule" yaml:"rule"`
	Occurrences int    `json:"occurrences" yaml:"occurrences"`
	Completed   bool   `json:"completed" yaml:"completed"`
	Modified    string `json:"modified" yaml:"modified"`
}

// SnapshotList lists the snapshots of a directory.
type SnapshotList struct {
	Snapshots []SnapshotSummary `json:"snapshots" yaml:"snapshots"`
}

// RenderText implements TextRenderer.
func (l *SnapshotList) RenderText(w io.Writer) error {
	if len(l.Snapshots) == 0 {
		fmt.Fprintln(w, "no snapshots")
		return nil
	}
	for _, s := range l.Snapshots {
		state := fmt.Sprintf("%d occurrences", s.Occurrences)
		if s.Completed {
			state += ", ended"
		}
		fmt.Fprintf(w, "%s  %-12s  %s  (%s)\n", s.ID, s.Name, s.Rule, state)
	}
	return nil
}

// NewSnapshotsCommand creates the snapshots command.
func NewSnapshotsCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &storeFlags{}
	var remove string
	cmd := &cobra.Command{
		Use:           "snapshots",
		Short:         "List saved iterators, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(rootOpts, flags, remove, cmd)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&remove, "delete", "", "delete the snapshot with this ID instead of listing")
	return cmd
}

func runSnapshots(rootOpts *RootOptions, flags *storeFlags, remove string, cmd *cobra.Command) error {
	formatter := rootOpts.formatter(cmd)

	store, err := flags.open(rootOpts)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}
	defer closeStore(store)
	ctx := contextOf(cmd)
	if remove != "" {
		id, err := uuid.Parse(remove)
		if err != nil {
			return failInput(formatter, fmt.Errorf("--delete: %w", err))
		}
		if err := store.Delete(ctx, id); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStorage, err)
		}
		formatter.VerboseLog("deleted snapshot %s", id)
	}

	records, err := store.List(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStorage, err)
	}
	list := &SnapshotList{Snapshots: make([]SnapshotSummary, 0, len(records))}
	for _, rec := range records {
		list.Snapshots = append(list.Snapshots, SnapshotSummary{
			ID:          rec.ID.String(),
			Name:        rec.Name,
			Rule:        rec.Snapshot.Rule.String(),
			Occurrences: rec.Snapshot.OccurrenceNumber,
			Completed:   rec.Snapshot.Completed,
			Modified:    rec.Modified.Format(time.RFC3339),
		})
	}
	return formatter.Success(list)
}

// contextOf returns the command's context, or Background for commands run
// without ExecuteContext.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
