package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the FREQ part of a recurrence rule. Values are ordered from
// the finest to the coarsest period.
type Frequency int

const (
	Secondly Frequency = iota
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = [...]string{"SECONDLY", "MINUTELY", "HOURLY", "DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

func (f Frequency) String() string {
	if f < Secondly || f > Yearly {
		return "Frequency(" + strconv.Itoa(int(f)) + ")"
	}
	return frequencyNames[f]
}

// ParseFrequency accepts the RFC 5545 names, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	for i, name := range frequencyNames {
		if strings.EqualFold(s, name) {
			return Frequency(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, s)
}

func (f Frequency) MarshalText() ([]byte, error) {
	if f < Secondly || f > Yearly {
		return nil, fmt.Errorf("%w: unknown frequency %d", ErrInvalidRule, int(f))
	}
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(text []byte) error {
	v, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// subDaily reports whether the period is shorter than a day.
func (f Frequency) subDaily() bool {
	return f <= Hourly
}

// Weekday counts from Monday so the zero value is the default week start.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

// Time converts to the standard library representation.
func (d Weekday) Time() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// WeekdayFromTime converts from the standard library representation.
func WeekdayFromTime(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// ParseWeekday accepts two-letter RFC 5545 weekday names.
func ParseWeekday(s string) (Weekday, error) {
	for i, name := range weekdayNames {
		if strings.EqualFold(s, name) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, s)
}

func (d Weekday) MarshalText() ([]byte, error) {
	if d < Monday || d > Sunday {
		return nil, fmt.Errorf("%w: unknown weekday %d", ErrInvalidRule, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	v, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// WeekdayNum is one BYDAY entry. N == 0 selects every such weekday in the
// period; otherwise it selects the Nth one, counting from the end when
// negative.
type WeekdayNum struct {
	N   int
	Day Weekday
}

func (w WeekdayNum) String() string {
	if w.N == 0 {
		return w.Day.String()
	}
	return strconv.Itoa(w.N) + w.Day.String()
}

// ParseWeekdayNum parses entries such as "MO", "2TU", "+1WE" or "-1SU".
func ParseWeekdayNum(s string) (WeekdayNum, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return WeekdayNum{}, fmt.Errorf("%w: invalid BYDAY entry %q", ErrInvalidRule, s)
	}
	day, err := ParseWeekday(s[len(s)-2:])
	if err != nil {
		return WeekdayNum{}, err
	}
	n := 0
	if prefix := s[:len(s)-2]; prefix != "" {
		n, err = strconv.Atoi(prefix)
		if err != nil || n == 0 {
			return WeekdayNum{}, fmt.Errorf("%w: invalid BYDAY ordinal %q", ErrInvalidRule, s)
		}
	}
	return WeekdayNum{N: n, Day: day}, nil
}

func (w WeekdayNum) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *WeekdayNum) UnmarshalText(text []byte) error {
	v, err := ParseWeekdayNum(string(text))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// ByPart names one of the eight by-part kinds that can drive or filter
// candidate generation.
type ByPart int

const (
	PartSecond ByPart = iota
	PartMinute
	PartHour
	PartDay
	PartMonthDay
	PartYearDay
	PartWeekNo
	PartMonth
)

var byPartNames = [...]string{"BYSECOND", "BYMINUTE", "BYHOUR", "BYDAY", "BYMONTHDAY", "BYYEARDAY", "BYWEEKNO", "BYMONTH"}

func (p ByPart) String() string {
	if p < PartSecond || p > PartMonth {
		return "ByPart(" + strconv.Itoa(int(p)) + ")"
	}
	return byPartNames[p]
}

func (p ByPart) MarshalText() ([]byte, error) {
	if p < PartSecond || p > PartMonth {
		return nil, fmt.Errorf("%w: unknown by-part %d", ErrInvalidRule, int(p))
	}
	return []byte(p.String()), nil
}

func (p *ByPart) UnmarshalText(text []byte) error {
	for i, name := range byPartNames {
		if strings.EqualFold(string(text), name) {
			*p = ByPart(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown by-part %q", ErrInvalidRule, string(text))
}

// ByPartSet holds the by-part lists of a rule. A nil or empty list means the
// part is absent. SetPos is kept here too although it never drives a cursor.
type ByPartSet struct {
	Second   []int        `json:"bysecond,omitempty" yaml:"bysecond,omitempty"`
	Minute   []int        `json:"byminute,omitempty" yaml:"byminute,omitempty"`
	Hour     []int        `json:"byhour,omitempty" yaml:"byhour,omitempty"`
	Day      []WeekdayNum `json:"byday,omitempty" yaml:"byday,omitempty"`
	MonthDay []int        `json:"bymonthday,omitempty" yaml:"bymonthday,omitempty"`
	YearDay  []int        `json:"byyearday,omitempty" yaml:"byyearday,omitempty"`
	WeekNo   []int        `json:"byweekno,omitempty" yaml:"byweekno,omitempty"`
	Month    []int        `json:"bymonth,omitempty" yaml:"bymonth,omitempty"`
	SetPos   []int        `json:"bysetpos,omitempty" yaml:"bysetpos,omitempty"`
}

// Ints returns the list of a numeric by-part. BYDAY has no numeric form and
// yields nil.
func (s ByPartSet) Ints(p ByPart) []int {
	switch p {
	case PartSecond:
		return s.Second
	case PartMinute:
		return s.Minute
	case PartHour:
		return s.Hour
	case PartMonthDay:
		return s.MonthDay
	case PartYearDay:
		return s.YearDay
	case PartWeekNo:
		return s.WeekNo
	case PartMonth:
		return s.Month
	}
	return nil
}

// Has reports whether the part is present.
func (s ByPartSet) Has(p ByPart) bool {
	if p == PartDay {
		return len(s.Day) > 0
	}
	return len(s.Ints(p)) > 0
}

func (s ByPartSet) clone() ByPartSet {
	return ByPartSet{
		Second:   cloneInts(s.Second),
		Minute:   cloneInts(s.Minute),
		Hour:     cloneInts(s.Hour),
		Day:      append([]WeekdayNum(nil), s.Day...),
		MonthDay: cloneInts(s.MonthDay),
		YearDay:  cloneInts(s.YearDay),
		WeekNo:   cloneInts(s.WeekNo),
		Month:    cloneInts(s.Month),
		SetPos:   cloneInts(s.SetPos),
	}
}

func cloneInts(v []int) []int {
	if len(v) == 0 {
		return nil
	}
	return append([]int(nil), v...)
}

// Rule is an already-parsed RRULE. A zero Count means no count bound and a
// zero Until means no until bound. Interval 0 is read as 1.
type Rule struct {
	Freq      Frequency `json:"freq"`
	Interval  int       `json:"interval,omitempty"`
	Count     int       `json:"count,omitempty"`
	Until     time.Time `json:"until"`
	WeekStart Weekday   `json:"wkst"`
	ByParts   ByPartSet `json:"byParts"`
}

// HasUntil reports whether the rule carries an UNTIL bound.
func (r Rule) HasUntil() bool {
	return !r.Until.IsZero()
}

// String renders the rule in RRULE value syntax, e.g.
// "FREQ=WEEKLY;COUNT=4;INTERVAL=2;BYDAY=TU,SU".
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(r.Freq.String())
	if r.Count > 0 {
		b.WriteString(";COUNT=")
		b.WriteString(strconv.Itoa(r.Count))
	}
	if r.HasUntil() {
		b.WriteString(";UNTIL=")
		b.WriteString(r.Until.UTC().Format("20060102T150405Z"))
	}
	if r.Interval > 1 {
		b.WriteString(";INTERVAL=")
		b.WriteString(strconv.Itoa(r.Interval))
	}
	writeInts(&b, "BYSECOND", r.ByParts.Second)
	writeInts(&b, "BYMINUTE", r.ByParts.Minute)
	writeInts(&b, "BYHOUR", r.ByParts.Hour)
	if len(r.ByParts.Day) > 0 {
		b.WriteString(";BYDAY=")
		for i, d := range r.ByParts.Day {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(d.String())
		}
	}
	writeInts(&b, "BYMONTHDAY", r.ByParts.MonthDay)
	writeInts(&b, "BYYEARDAY", r.ByParts.YearDay)
	writeInts(&b, "BYWEEKNO", r.ByParts.WeekNo)
	writeInts(&b, "BYMONTH", r.ByParts.Month)
	writeInts(&b, "BYSETPOS", r.ByParts.SetPos)
	if r.WeekStart != Monday {
		b.WriteString(";WKST=")
		b.WriteString(r.WeekStart.String())
	}
	return b.String()
}

func writeInts(b *strings.Builder, name string, values []int) {
	if len(values) == 0 {
		return
	}
	b.WriteByte(';')
	b.WriteString(name)
	b.WriteByte('=')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
}
