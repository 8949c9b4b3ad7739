package recur

import (
	"io"
	"log/slog"
)

// Option configures an Iterator.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	allowDuplicates bool
	lenientSetPos   bool
	maxIdleYears    int
	maxPeriodSize   int
}

// DefaultMaxIdleYears is how many years an iterator searches without finding
// a matching period before it gives up.
const DefaultMaxIdleYears = 1000

func defaultOptions() options {
	return options{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxIdleYears: DefaultMaxIdleYears,
	}
}

// WithLogger sets the logger used for debug diagnostics (default: discard).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// AllowDuplicates turns off the repeated-occurrence guard.
func AllowDuplicates() Option {
	return func(o *options) { o.allowDuplicates = true }
}

// LenientSetPos makes a period whose BYSETPOS selects nothing be skipped
// instead of failing the iterator.
func LenientSetPos() Option {
	return func(o *options) { o.lenientSetPos = true }
}

// WithMaxIdleYears bounds the search for the next matching period. Zero
// disables the bound, which lets rules that can never match loop forever.
func WithMaxIdleYears(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxIdleYears = n
	}
}

// WithMaxPeriodSize caps the number of candidates buffered for one period
// (default: 0, unlimited). Rules such as FREQ=YEARLY;BYSECOND=... with
// BYSETPOS can otherwise buffer millions of candidates.
func WithMaxPeriodSize(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxPeriodSize = n
	}
}
