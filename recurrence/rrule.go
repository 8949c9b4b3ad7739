package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/cyp0633/librecur/recur"
)

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// ParseRule parses an RRULE value such as "FREQ=WEEKLY;BYDAY=MO,WE". An UNTIL
// without a zone is read in loc; nil means UTC. Range checks happen when an
// iterator is built from the rule.
func ParseRule(value string, loc *time.Location) (recur.Rule, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROptionInLocation(value, loc)
	if err != nil {
		return recur.Rule{}, fmt.Errorf("%w: %q: %v", recur.ErrInvalidRule, value, err)
	}
	return RuleFromROption(*opt)
}

// RuleFromROption converts parsed rrule-go options. DTSTART is not part of a
// recur.Rule and is ignored.
func RuleFromROption(opt rrule.ROption) (recur.Rule, error) {
	if len(opt.Byeaster) > 0 {
		return recur.Rule{}, fmt.Errorf("%w: BYEASTER is not supported", recur.ErrInvalidRule)
	}
	if opt.Freq < rrule.YEARLY || opt.Freq > rrule.SECONDLY {
		return recur.Rule{}, fmt.Errorf("%w: unknown frequency %d", recur.ErrInvalidRule, int(opt.Freq))
	}

	r := recur.Rule{
		// rrule-go counts frequencies from YEARLY, recur from SECONDLY.
		Freq:      recur.Frequency(int(rrule.SECONDLY) - int(opt.Freq)),
		Interval:  opt.Interval,
		Count:     opt.Count,
		Until:     opt.Until,
		WeekStart: recur.Weekday(opt.Wkst.Day()),
		ByParts: recur.ByPartSet{
			Second:   opt.Bysecond,
			Minute:   opt.Byminute,
			Hour:     opt.Byhour,
			MonthDay: opt.Bymonthday,
			YearDay:  opt.Byyearday,
			WeekNo:   opt.Byweekno,
			Month:    opt.Bymonth,
			SetPos:   opt.Bysetpos,
		},
	}
	for _, d := range opt.Byweekday {
		r.ByParts.Day = append(r.ByParts.Day, recur.WeekdayNum{N: d.N(), Day: recur.Weekday(d.Day())})
	}
	return r, nil
}

// ROptionFromRule is the inverse of RuleFromROption.
func ROptionFromRule(r recur.Rule, dtstart time.Time) rrule.ROption {
	wkst := rruleWeekdays[r.WeekStart]
	opt := rrule.ROption{
		Freq:       rrule.Frequency(int(rrule.SECONDLY) - int(r.Freq)),
		Dtstart:    dtstart,
		Interval:   r.Interval,
		Wkst:       wkst,
		Count:      r.Count,
		Until:      r.Until,
		Bysetpos:   r.ByParts.SetPos,
		Bymonth:    r.ByParts.Month,
		Bymonthday: r.ByParts.MonthDay,
		Byyearday:  r.ByParts.YearDay,
		Byweekno:   r.ByParts.WeekNo,
		Byhour:     r.ByParts.Hour,
		Byminute:   r.ByParts.Minute,
		Bysecond:   r.ByParts.Second,
	}
	for _, d := range r.ByParts.Day {
		w := rruleWeekdays[d.Day]
		opt.Byweekday = append(opt.Byweekday, w.Nth(d.N))
	}
	return opt
}
