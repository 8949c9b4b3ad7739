package recur

import "errors"

var (
	// ErrInvalidRule is returned for values a rule can never hold, such as an
	// unknown frequency name or BYHOUR=24.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrStructuralRule is returned when by-parts are combined in a way the
	// frequency does not allow, or a sub-daily rule is anchored to a date.
	ErrStructuralRule = errors.New("illegal by-part combination")
	// ErrSeekBeforeStart is returned by FastForward for targets before the
	// anchor.
	ErrSeekBeforeStart = errors.New("fast-forward target precedes the start")
	// ErrSetPositionExhausted is returned when BYSETPOS selects nothing from a
	// non-empty period.
	ErrSetPositionExhausted = errors.New("BYSETPOS selected no occurrence")
	// ErrDuplicateOccurrence is returned when the same occurrence would be
	// produced twice in a row.
	ErrDuplicateOccurrence = errors.New("duplicate occurrence")
	// ErrPeriodTooLarge is returned when a period holds more candidates than
	// WithMaxPeriodSize allows.
	ErrPeriodTooLarge = errors.New("too many candidates in one period")
	// ErrInvalidSnapshot is returned by Restore for inconsistent records.
	ErrInvalidSnapshot = errors.New("invalid iterator snapshot")
)
