package storage

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/cyp0633/librecur/recur"
)

// Element and attribute names of the XML snapshot document
const (
	TagRecord     = "snapshot-record"
	TagRule       = "rule"
	TagBy         = "by"
	TagAnchor     = "anchor"
	TagNormalized = "normalized"
	TagCursor     = "cursor"
	TagState      = "state"
	TagRangeStart = "range-start"
	TagCache      = "cache"
	TagLast       = "last"

	partSetPos = "BYSETPOS"
)

// XMLCodec encodes records as XML documents:
//
//	<snapshot-record id="..." created="...">
//	  <rule freq="MONTHLY" wkst="MO"><by part="BYDAY">-1FR</by></rule>
//	  <anchor tzid="Europe/Berlin" utc-offset="3600">2015-06-17T09:30:15</anchor>
//	  <normalized governor="monthday">...</normalized>
//	  <cursor part="BYMONTH" index="5">1,2,3,4,5,6,7,8,9,10,11,12</cursor>
//	  <state cache-year="2015" started="true" occurrence="3"/>
//	  ...
//	</snapshot-record>
type XMLCodec struct{}

func (XMLCodec) Extension() string { return ".xml" }

func (XMLCodec) Encode(w io.Writer, rec *SnapshotRecord) error {
	doc := RecordToXML(rec)
	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return &Error{Type: TypeUnavailable, Message: "failed to write snapshot", Err: err}
	}
	return nil
}

func (XMLCodec) Decode(r io.Reader) (*SnapshotRecord, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, &Error{Type: TypeCorrupt, Message: "failed to parse XML", Err: err}
	}
	rec, err := RecordFromXML(doc)
	if err != nil {
		return nil, &Error{Type: TypeCorrupt, Message: "invalid snapshot document", Err: err}
	}
	return rec, nil
}

// RecordToXML converts a SnapshotRecord to an XML document
func RecordToXML(rec *SnapshotRecord) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(TagRecord)
	root.CreateAttr("id", rec.ID.String())
	if rec.Name != "" {
		root.CreateAttr("name", rec.Name)
	}
	setTimeAttr(root, "created", rec.Created)
	setTimeAttr(root, "modified", rec.Modified)

	s := rec.Snapshot
	rule := root.CreateElement(TagRule)
	rule.CreateAttr("freq", s.Rule.Freq.String())
	setIntAttr(rule, "interval", s.Rule.Interval)
	setIntAttr(rule, "count", s.Rule.Count)
	setTimeAttr(rule, "until", s.Rule.Until)
	rule.CreateAttr("wkst", s.Rule.WeekStart.String())
	writeByParts(rule, s.Rule.ByParts)

	anchor := root.CreateElement(TagAnchor)
	if s.TZID != "" {
		anchor.CreateAttr("tzid", s.TZID)
	}
	anchor.CreateAttr("utc-offset", strconv.Itoa(s.UTCOffset))
	setBoolAttr(anchor, "date-only", s.DateOnly)
	anchor.SetText(s.Start)

	norm := root.CreateElement(TagNormalized)
	norm.CreateAttr("governor", s.Governor)
	writeByParts(norm, s.ByParts)

	for _, c := range s.Cursors {
		el := root.CreateElement(TagCursor)
		el.CreateAttr("part", c.Part.String())
		el.CreateAttr("index", strconv.Itoa(c.Index))
		setBoolAttr(el, "wrapped", c.Wrapped)
		setIntAttr(el, "max", c.Max)
		el.SetText(joinInts(c.Values))
	}

	state := root.CreateElement(TagState)
	state.CreateAttr("cache-year", strconv.Itoa(s.CacheYear))
	setBoolAttr(state, "hold", s.Hold)
	setIntAttr(state, "idle-years", s.IdleYears)
	setBoolAttr(state, "started", s.Started)
	setBoolAttr(state, "exhausted", s.Exhausted)
	state.CreateAttr("occurrence", strconv.Itoa(s.OccurrenceNumber))
	setBoolAttr(state, "completed", s.Completed)

	if s.RangeStart != "" {
		root.CreateElement(TagRangeStart).SetText(s.RangeStart)
	}
	for _, c := range s.Cache {
		root.CreateElement(TagCache).SetText(c)
	}
	if s.Last != "" {
		root.CreateElement(TagLast).SetText(s.Last)
	}
	return doc
}

// RecordFromXML parses a SnapshotRecord from an XML document
func RecordFromXML(doc *etree.Document) (*SnapshotRecord, error) {
	if doc == nil || doc.Root() == nil {
		return nil, errors.New("empty document")
	}
	root := doc.Root()
	if root.Tag != TagRecord {
		return nil, fmt.Errorf("invalid root tag: %s", root.Tag)
	}

	rec := &SnapshotRecord{Name: root.SelectAttrValue("name", "")}
	var err error
	if rec.ID, err = uuid.Parse(root.SelectAttrValue("id", "")); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	if rec.Created, err = timeAttr(root, "created"); err != nil {
		return nil, err
	}
	if rec.Modified, err = timeAttr(root, "modified"); err != nil {
		return nil, err
	}

	s := &rec.Snapshot
	if s.Rule, err = readRule(root.SelectElement(TagRule)); err != nil {
		return nil, err
	}

	anchor := root.SelectElement(TagAnchor)
	if anchor == nil {
		return nil, errors.New("missing anchor")
	}
	s.Start = strings.TrimSpace(anchor.Text())
	s.TZID = anchor.SelectAttrValue("tzid", "")
	if s.UTCOffset, err = intAttr(anchor, "utc-offset"); err != nil {
		return nil, err
	}
	if s.DateOnly, err = boolAttr(anchor, "date-only"); err != nil {
		return nil, err
	}

	norm := root.SelectElement(TagNormalized)
	if norm == nil {
		return nil, errors.New("missing normalized by-parts")
	}
	s.Governor = norm.SelectAttrValue("governor", "")
	if s.ByParts, err = readByParts(norm); err != nil {
		return nil, err
	}

	for _, el := range root.SelectElements(TagCursor) {
		c, err := readCursor(el)
		if err != nil {
			return nil, err
		}
		s.Cursors = append(s.Cursors, c)
	}

	state := root.SelectElement(TagState)
	if state == nil {
		return nil, errors.New("missing state")
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"cache-year", &s.CacheYear},
		{"idle-years", &s.IdleYears},
		{"occurrence", &s.OccurrenceNumber},
	} {
		if *f.dst, err = intAttr(state, f.name); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"hold", &s.Hold},
		{"started", &s.Started},
		{"exhausted", &s.Exhausted},
		{"completed", &s.Completed},
	} {
		if *f.dst, err = boolAttr(state, f.name); err != nil {
			return nil, err
		}
	}

	if el := root.SelectElement(TagRangeStart); el != nil {
		s.RangeStart = strings.TrimSpace(el.Text())
	}
	for _, el := range root.SelectElements(TagCache) {
		s.Cache = append(s.Cache, strings.TrimSpace(el.Text()))
	}
	if el := root.SelectElement(TagLast); el != nil {
		s.Last = strings.TrimSpace(el.Text())
	}
	return rec, nil
}

func readRule(el *etree.Element) (recur.Rule, error) {
	var r recur.Rule
	if el == nil {
		return r, errors.New("missing rule")
	}
	var err error
	if r.Freq, err = recur.ParseFrequency(el.SelectAttrValue("freq", "")); err != nil {
		return r, err
	}
	if r.WeekStart, err = recur.ParseWeekday(el.SelectAttrValue("wkst", "MO")); err != nil {
		return r, err
	}
	if r.Interval, err = intAttr(el, "interval"); err != nil {
		return r, err
	}
	if r.Count, err = intAttr(el, "count"); err != nil {
		return r, err
	}
	if r.Until, err = timeAttr(el, "until"); err != nil {
		return r, err
	}
	r.ByParts, err = readByParts(el)
	return r, err
}

func readCursor(el *etree.Element) (recur.CursorState, error) {
	var c recur.CursorState
	if err := c.Part.UnmarshalText([]byte(el.SelectAttrValue("part", ""))); err != nil {
		return c, fmt.Errorf("cursor: %w", err)
	}
	var err error
	if c.Index, err = intAttr(el, "index"); err != nil {
		return c, err
	}
	if c.Wrapped, err = boolAttr(el, "wrapped"); err != nil {
		return c, err
	}
	if c.Max, err = intAttr(el, "max"); err != nil {
		return c, err
	}
	if c.Values, err = splitInts(el.Text()); err != nil {
		return c, fmt.Errorf("cursor %s: %w", c.Part, err)
	}
	return c, nil
}

func writeByParts(parent *etree.Element, set recur.ByPartSet) {
	for p := recur.PartSecond; p <= recur.PartMonth; p++ {
		if !set.Has(p) {
			continue
		}
		el := parent.CreateElement(TagBy)
		el.CreateAttr("part", p.String())
		if p == recur.PartDay {
			days := make([]string, len(set.Day))
			for i, d := range set.Day {
				days[i] = d.String()
			}
			el.SetText(strings.Join(days, ","))
		} else {
			el.SetText(joinInts(set.Ints(p)))
		}
	}
	if len(set.SetPos) > 0 {
		el := parent.CreateElement(TagBy)
		el.CreateAttr("part", partSetPos)
		el.SetText(joinInts(set.SetPos))
	}
}

func readByParts(parent *etree.Element) (recur.ByPartSet, error) {
	var set recur.ByPartSet
	for _, el := range parent.SelectElements(TagBy) {
		name := el.SelectAttrValue("part", "")
		text := strings.TrimSpace(el.Text())
		if name == partSetPos {
			v, err := splitInts(text)
			if err != nil {
				return set, fmt.Errorf("%s: %w", name, err)
			}
			set.SetPos = v
			continue
		}

		var p recur.ByPart
		if err := p.UnmarshalText([]byte(name)); err != nil {
			return set, err
		}
		if p == recur.PartDay {
			for _, f := range strings.Split(text, ",") {
				d, err := recur.ParseWeekdayNum(f)
				if err != nil {
					return set, err
				}
				set.Day = append(set.Day, d)
			}
			continue
		}

		v, err := splitInts(text)
		if err != nil {
			return set, fmt.Errorf("%s: %w", p, err)
		}
		switch p {
		case recur.PartSecond:
			set.Second = v
		case recur.PartMinute:
			set.Minute = v
		case recur.PartHour:
			set.Hour = v
		case recur.PartMonthDay:
			set.MonthDay = v
		case recur.PartYearDay:
			set.YearDay = v
		case recur.PartWeekNo:
			set.WeekNo = v
		case recur.PartMonth:
			set.Month = v
		}
	}
	return set, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) ([]int, error) {
	fields := strings.Split(strings.TrimSpace(s), ",")
	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Zero values are left out; absent attributes read back as zero.

func setIntAttr(el *etree.Element, name string, v int) {
	if v != 0 {
		el.CreateAttr(name, strconv.Itoa(v))
	}
}

func setBoolAttr(el *etree.Element, name string, v bool) {
	if v {
		el.CreateAttr(name, "true")
	}
}

func setTimeAttr(el *etree.Element, name string, t time.Time) {
	if !t.IsZero() {
		el.CreateAttr(name, t.Format(time.RFC3339Nano))
	}
}

func intAttr(el *etree.Element, name string) (int, error) {
	a := el.SelectAttr(name)
	if a == nil {
		return 0, nil
	}
	v, err := strconv.Atoi(a.Value)
	if err != nil {
		return 0, fmt.Errorf("%s/@%s: %w", el.Tag, name, err)
	}
	return v, nil
}

func boolAttr(el *etree.Element, name string) (bool, error) {
	a := el.SelectAttr(name)
	if a == nil {
		return false, nil
	}
	v, err := strconv.ParseBool(a.Value)
	if err != nil {
		return false, fmt.Errorf("%s/@%s: %w", el.Tag, name, err)
	}
	return v, nil
}

func timeAttr(el *etree.Element, name string) (time.Time, error) {
	a := el.SelectAttr(name)
	if a == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, a.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s/@%s: %w", el.Tag, name, err)
	}
	return t, nil
}
