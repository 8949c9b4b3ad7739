package recur

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, s Snapshot) Snapshot {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	var out Snapshot
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSnapshot_ResumesWhereItStopped(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		start    string
		consumed int
	}{
		{"fresh iterator", "FREQ=DAILY;COUNT=10", "2012-09-01T09:00:00", 0},
		{"daily with count", "FREQ=DAILY;COUNT=10", "2012-09-01T09:00:00", 4},
		{"inside a set position period", "FREQ=MONTHLY;BYDAY=TU,WE,TH;BYSETPOS=1,3", "1997-09-02T09:00:00", 3},
		{"negative month days", "FREQ=MONTHLY;BYMONTHDAY=-31,-29,1,3", "2015-06-01T08:00:00", 5},
		{"week numbers", "FREQ=YEARLY;BYWEEKNO=3;BYDAY=MO,TU", "2016-01-18T08:00:00", 3},
		{"year days", "FREQ=HOURLY;INTERVAL=12;BYYEARDAY=-366", "2016-01-01T10:00:00", 1},
		{"biweekly", "FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,SU;WKST=SU", "1997-08-05T09:00:00", 5},
		{"until reached", "FREQ=WEEKLY;UNTIL=20120424T065959Z;BYDAY=TU", "2012-04-10T09:00:00", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := collect(t, mustIterator(t, tt.rule, tt.start), 12)

			it := mustIterator(t, tt.rule, tt.start)
			head := collect(t, it, tt.consumed)

			restored, err := Restore(roundTrip(t, it.Snapshot()))
			require.NoError(t, err)
			assert.Equal(t, it.OccurrenceNumber(), restored.OccurrenceNumber())
			assert.Equal(t, it.Completed(), restored.Completed())
			assert.Equal(t, it.Last(), restored.Last())

			tail := collect(t, restored, 12-len(head))
			assert.Equal(t, want, append(head, tail...))
		})
	}
}

func TestSnapshot_AfterFastForward(t *testing.T) {
	it := mustIterator(t, "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1", "2015-06-30T08:00:00")
	_, err := it.FastForward(at(t, "2016-01-15T00:00:00"))
	require.NoError(t, err)

	restored, err := Restore(roundTrip(t, it.Snapshot()))
	require.NoError(t, err)
	assert.Equal(t, collect(t, it, 3), collect(t, restored, 3))
}

func TestSnapshot_TimeZone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	it, err := New(mustRule(t, "FREQ=WEEKLY;BYDAY=SU"), Anchor{Start: time.Date(2015, 3, 1, 2, 30, 0, 0, loc)})
	require.NoError(t, err)
	collect(t, it, 2)

	s := roundTrip(t, it.Snapshot())
	assert.Equal(t, "Europe/Berlin", s.TZID)
	restored, err := Restore(s)
	require.NoError(t, err)

	next, err := restored.Next()
	require.NoError(t, err)
	v, ok := next.Get()
	require.True(t, ok)
	assert.Equal(t, "Europe/Berlin", v.Location().String())
	assert.Equal(t, "2015-03-15", v.Format("2006-01-02"))
}

func TestSnapshot_FixedZoneFallback(t *testing.T) {
	it, err := New(mustRule(t, "FREQ=DAILY"), Anchor{Start: time.Date(2015, 3, 1, 9, 0, 0, 0, time.FixedZone("", 5*3600))})
	require.NoError(t, err)

	restored, err := Restore(roundTrip(t, it.Snapshot()))
	require.NoError(t, err)
	_, offset := restored.Start().Zone()
	assert.Equal(t, 5*3600, offset)
}

func TestRestore_Invalid(t *testing.T) {
	it := mustIterator(t, "FREQ=MONTHLY;BYMONTHDAY=1", "2015-06-01T08:00:00")
	collect(t, it, 2)
	valid := it.Snapshot()

	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"unknown governor", func(s *Snapshot) { s.Governor = "bogus" }},
		{"missing cursor", func(s *Snapshot) { s.Cursors = s.Cursors[:len(s.Cursors)-1] }},
		{"cursor out of order", func(s *Snapshot) { s.Cursors[0], s.Cursors[1] = s.Cursors[1], s.Cursors[0] }},
		{"cursor index out of range", func(s *Snapshot) { s.Cursors[0].Index = 99 }},
		{"empty cursor", func(s *Snapshot) { s.Cursors[2].Values = nil }},
		{"bad start", func(s *Snapshot) { s.Start = "yesterday" }},
		{"bad cache entry", func(s *Snapshot) { s.Cache = []string{"2015-13-45T00:00:00"} }},
		{"invalid rule", func(s *Snapshot) { s.Rule.ByParts.Hour = []int{25} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := roundTrip(t, valid)
			tt.mutate(&s)
			_, err := Restore(s)
			require.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}
