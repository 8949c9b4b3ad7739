package recurrence

import (
	"time"
)

// RecurrenceInfo is the recurrence data of one calendar component, as read by
// ExtractRecurrenceInfoFromComponent.
//
// AllDay marks a DATE-valued DTSTART. The iterator then runs date-only: its
// occurrences are midnights in the DTSTART zone, UNTIL compares calendar dates
// and a date-only EXDATE removes the whole day.
type RecurrenceInfo struct {
	RRULE        string      // RRULE value without the "RRULE:" prefix, parsed by ParseRule
	RDATE        []time.Time // extra starts merged into the expansion
	EXDATE       []time.Time // starts removed from the expansion
	RecurrenceID *time.Time  // set on override instances: the start they replace
	AllDay       bool
}

// TimeOccurrence is one expanded instance. End is Start plus the master's
// duration, or the override's own end for exceptions.
type TimeOccurrence struct {
	Start        time.Time
	End          time.Time
	IsException  bool       // produced by a RECURRENCE-ID override
	RecurrenceID *time.Time // the replaced start, for exceptions
}

// ExpansionOptions bounds Expand and ExpandCalendar.
type ExpansionOptions struct {
	MaxOccurrences    int           // per event; 0 means unlimited
	MaxTimeSpan       time.Duration // longer ranges are cut to this span; 0 means unlimited
	IncludeExceptions bool          // false drops overridden instances entirely
}

// DefaultExpansionOptions caps an expansion at 1000 occurrences over two years.
var DefaultExpansionOptions = ExpansionOptions{
	MaxOccurrences:    1000,
	MaxTimeSpan:       2 * 365 * 24 * time.Hour,
	IncludeExceptions: true,
}
