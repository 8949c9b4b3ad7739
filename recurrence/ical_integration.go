package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const (
	icalDate          = "20060102"
	icalDateTime      = "20060102T150405"
	icalDateTimeUTC   = "20060102T150405Z"
	propRecurrenceID  = "RECURRENCE-ID"
	paramValue        = "VALUE"
	paramTimezoneID   = "TZID"
	valueTypeDate     = "DATE"
	valueTypePeriod   = "PERIOD"
	recurringCompKind = ical.CompEvent
)

// ExtractRecurrenceInfoFromComponent extracts recurrence information from an
// iCal component. Values that cannot be parsed are dropped.
func ExtractRecurrenceInfoFromComponent(comp *ical.Component) RecurrenceInfo {
	info, _ := extractRecurrenceInfo(comp)
	return info
}

// extractRecurrenceInfo is ExtractRecurrenceInfoFromComponent reporting every
// value it had to drop.
func extractRecurrenceInfo(comp *ical.Component) (RecurrenceInfo, error) {
	info := RecurrenceInfo{}
	var errs []error

	loc := time.UTC
	if dtstart := comp.Props.Get(ical.PropDateTimeStart); dtstart != nil {
		info.AllDay = isDateValue(dtstart)
		if start, ok := propDateTime(comp, ical.PropDateTimeStart); ok {
			loc = start.Location()
		}
	}

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil && rruleProp.Value != "" {
		info.RRULE = rruleProp.Value
	}

	// RDATE and EXDATE may appear several times.
	for _, prop := range comp.Props[ical.PropRecurrenceDates] {
		dates, err := parseDateList(prop, loc)
		info.RDATE = append(info.RDATE, dates...)
		errs = append(errs, err)
	}
	for _, prop := range comp.Props[ical.PropExceptionDates] {
		dates, err := parseDateList(prop, loc)
		info.EXDATE = append(info.EXDATE, dates...)
		errs = append(errs, err)
	}

	if recurrenceIDProp := comp.Props.Get(propRecurrenceID); recurrenceIDProp != nil && recurrenceIDProp.Value != "" {
		recID, err := parseDateTime(recurrenceIDProp.Value, recurrenceIDProp.Params, loc)
		if err == nil {
			info.RecurrenceID = &recID
		}
		errs = append(errs, err)
	}

	return info, errors.Join(errs...)
}

// ExtractBasicTimeInfoFromComponent extracts start and end times from an iCal
// component. hasTime is false when the component has no usable DTSTART (or DUE
// for a VTODO).
func ExtractBasicTimeInfoFromComponent(comp *ical.Component) (start, end time.Time, hasTime bool) {
	if dtstart, ok := propDateTime(comp, ical.PropDateTimeStart); ok {
		start = dtstart
		hasTime = true

		// End comes from DTEND, DURATION or a default
		if dtend, ok := propDateTime(comp, ical.PropDateTimeEnd); ok {
			end = dtend

			// An all-day event whose DTEND equals its DTSTART lasts the whole day.
			if isAllDayDate(start) && sameDate(start, end) {
				end = start.AddDate(0, 0, 1)
			}
		} else if durationProp := comp.Props.Get(ical.PropDuration); durationProp != nil {
			if duration, err := durationProp.Duration(); err == nil {
				end = start.Add(duration)
			} else {
				hasTime = false
				return
			}
		} else {
			// All-day events last one day, timed events are instantaneous.
			if isAllDayDate(start) {
				end = start.AddDate(0, 0, 1)
			} else {
				end = start
			}
		}
	}

	// For VTODO, also check DUE property
	if comp.Name == ical.CompToDo {
		if due, ok := propDateTime(comp, ical.PropDue); ok {
			if !hasTime {
				start = due
				end = due
				hasTime = true
			} else if due.After(end) {
				end = due
			}
		}
	}

	return start, end, hasTime
}

// propDateTime reads a DATE or DATE-TIME property. go-ical reports a missing
// property as a zero time without an error, so presence is checked first.
func propDateTime(comp *ical.Component, name string) (time.Time, bool) {
	if prop := comp.Props.Get(name); prop == nil || prop.Value == "" {
		return time.Time{}, false
	}
	t, err := comp.Props.DateTime(name, nil)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ComponentOccurrence is one instance of a calendar component.
type ComponentOccurrence struct {
	UID       string
	Component *ical.Component // The master, or the override for exceptions
	TimeOccurrence
}

// ExpandComponent expands a single recurring component over the range.
func (e *Engine) ExpandComponent(comp *ical.Component, rangeStart, rangeEnd time.Time, opts ExpansionOptions) ([]TimeOccurrence, error) {
	start, end, ok := ExtractBasicTimeInfoFromComponent(comp)
	if !ok {
		return nil, fmt.Errorf("component %s has no start time", comp.Name)
	}
	info, err := extractRecurrenceInfo(comp)
	if err != nil {
		e.logger().Warn("dropped unparsable recurrence values", "component", comp.Name, "error", err)
	}
	return e.Expand(start, end, info, rangeStart, rangeEnd, opts)
}

// ExpandCalendar expands every event of a calendar over the range. Override
// instances (RECURRENCE-ID) replace the occurrence they name; with
// opts.IncludeExceptions false they are dropped together with it. Events are
// returned in start order.
func (e *Engine) ExpandCalendar(cal *ical.Calendar, rangeStart, rangeEnd time.Time, opts ExpansionOptions) ([]ComponentOccurrence, error) {
	masters := map[string]*ical.Component{}
	overrides := map[string][]*ical.Component{}
	var order []string

	for _, child := range cal.Children {
		if child.Name != recurringCompKind {
			continue
		}
		uid := ""
		if prop := child.Props.Get(ical.PropUID); prop != nil {
			uid = prop.Value
		}
		if child.Props.Get(propRecurrenceID) != nil {
			overrides[uid] = append(overrides[uid], child)
			continue
		}
		if _, seen := masters[uid]; seen {
			return nil, fmt.Errorf("duplicate master event with UID %q", uid)
		}
		masters[uid] = child
		order = append(order, uid)
	}

	var result []ComponentOccurrence
	for _, uid := range order {
		master := masters[uid]
		var replaced []time.Time
		for _, override := range overrides[uid] {
			info := ExtractRecurrenceInfoFromComponent(override)
			if info.RecurrenceID == nil {
				continue
			}
			replaced = append(replaced, *info.RecurrenceID)
			if !opts.IncludeExceptions {
				continue
			}
			start, end, ok := ExtractBasicTimeInfoFromComponent(override)
			if !ok || !overlaps(start, end, rangeStart, rangeEnd) {
				continue
			}
			result = append(result, ComponentOccurrence{
				UID:       uid,
				Component: override,
				TimeOccurrence: TimeOccurrence{
					Start:        start,
					End:          end,
					IsException:  true,
					RecurrenceID: info.RecurrenceID,
				},
			})
		}

		occurrences, err := e.ExpandComponent(master, rangeStart, rangeEnd, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to expand event %q: %w", uid, err)
		}
		for _, occ := range occurrences {
			if slices.ContainsFunc(replaced, occ.Start.Equal) {
				continue
			}
			result = append(result, ComponentOccurrence{UID: uid, Component: master, TimeOccurrence: occ})
		}
	}

	slices.SortStableFunc(result, func(a, b ComponentOccurrence) int {
		return a.Start.Compare(b.Start)
	})
	return result, nil
}

// parseDateList parses an RDATE or EXDATE property. Date-only values are
// stored as midnight UTC. PERIOD values contribute their start.
func parseDateList(prop ical.Prop, defaultLoc *time.Location) ([]time.Time, error) {
	var dates []time.Time
	var errs []error
	for _, s := range strings.Split(prop.Value, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if paramIs(prop.Params, paramValue, valueTypePeriod) {
			s, _, _ = strings.Cut(s, "/")
		}
		t, err := parseDateTime(s, prop.Params, defaultLoc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prop.Name, err))
			continue
		}
		dates = append(dates, t)
	}
	return dates, errors.Join(errs...)
}

// parseDateTime parses a DATE or DATE-TIME value. Floating times are read in
// the TZID location when given, in defaultLoc otherwise.
func parseDateTime(value string, params ical.Params, defaultLoc *time.Location) (time.Time, error) {
	if paramIs(params, paramValue, valueTypeDate) || len(value) == len(icalDate) {
		t, err := time.Parse(icalDate, value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if strings.HasSuffix(value, "Z") {
		return time.Parse(icalDateTimeUTC, value)
	}

	loc := defaultLoc
	if loc == nil {
		loc = time.UTC
	}
	if tzids := params[paramTimezoneID]; len(tzids) > 0 && tzids[0] != "" {
		tz, err := time.LoadLocation(tzids[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown TZID %q: %w", tzids[0], err)
		}
		loc = tz
	}
	return time.ParseInLocation(icalDateTime, value, loc)
}

func paramIs(params ical.Params, name, want string) bool {
	values := params[name]
	return len(values) > 0 && strings.EqualFold(values[0], want)
}

func isDateValue(prop *ical.Prop) bool {
	return paramIs(prop.Params, paramValue, valueTypeDate) || len(prop.Value) == len(icalDate)
}

// isAllDayDate checks if a time represents an all-day date (time part is midnight)
func isAllDayDate(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SafeTimeDeref safely dereferences a time pointer, returning defaultTime if nil
func SafeTimeDeref(t *time.Time, defaultTime time.Time) time.Time {
	if t == nil {
		return defaultTime
	}
	return *t
}
