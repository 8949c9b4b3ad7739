package recur

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastForward(t *testing.T, it *Iterator, target string) (string, bool) {
	t.Helper()
	next, err := it.FastForward(at(t, target))
	require.NoError(t, err)
	v, ok := next.Get()
	if !ok {
		return "", false
	}
	return v.Format(civilLayout), true
}

func TestFastForward(t *testing.T) {
	tests := []struct {
		name   string
		rule   string
		start  string
		target string
		want   []string
	}{
		{
			name:   "daily until, target on the bound",
			rule:   "FREQ=DAILY;UNTIL=20150816T120000Z",
			start:  "2015-08-15T12:00:00",
			target: "2015-08-16T12:00:00",
			want:   []string{"2015-08-16T12:00:00"},
		},
		{
			name:   "daily with count, target on the last occurrence",
			rule:   "FREQ=DAILY;COUNT=6",
			start:  "2015-08-15T12:00:00",
			target: "2015-08-20T12:00:00",
			want:   []string{"2015-08-20T12:00:00"},
		},
		{
			name:   "secondly with interval",
			rule:   "FREQ=SECONDLY;INTERVAL=5",
			start:  "2015-08-15T13:00:00",
			target: "2015-08-15T13:00:01",
			want:   []string{"2015-08-15T13:00:05", "2015-08-15T13:00:10"},
		},
		{
			name:   "minutely carries into the hour",
			rule:   "FREQ=MINUTELY",
			start:  "2015-08-15T12:00:00",
			target: "2015-08-15T12:59:59",
			want:   []string{"2015-08-15T13:00:00", "2015-08-15T13:01:00"},
		},
		{
			name:   "daily between occurrences",
			rule:   "FREQ=DAILY;INTERVAL=3",
			start:  "2015-08-15T12:00:00",
			target: "2015-08-16T00:00:00",
			want:   []string{"2015-08-18T12:00:00", "2015-08-21T12:00:00"},
		},
		{
			name:   "last weekday of the month",
			rule:   "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=-1",
			start:  "2015-06-30T08:00:00",
			target: "2015-08-01T00:00:00",
			want:   []string{"2015-08-31T08:00:00", "2015-09-30T08:00:00"},
		},
		{
			name:   "first weekday of the month after the period start",
			rule:   "FREQ=MONTHLY;BYDAY=MO,TU,WE,TH,FR;BYSETPOS=1",
			start:  "2015-06-01T08:00:00",
			target: "2015-08-04T00:00:00",
			want:   []string{"2015-09-01T08:00:00", "2015-10-01T08:00:00"},
		},
		{
			name:   "week number across a week-year boundary",
			rule:   "FREQ=YEARLY;BYWEEKNO=2",
			start:  "2015-01-06T08:00:00",
			target: "2017-01-01T00:00:00",
			want:   []string{"2017-01-10T08:00:00", "2018-01-09T08:00:00"},
		},
		{
			name:   "biweekly skips the odd week",
			rule:   "FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,SU",
			start:  "1997-08-05T09:00:00",
			target: "1997-08-11T00:00:00",
			want:   []string{"1997-08-19T09:00:00", "1997-08-24T09:00:00"},
		},
		{
			name:   "yearly month day into the next year",
			rule:   "FREQ=YEARLY;BYMONTHDAY=-1",
			start:  "2014-04-30T08:00:00",
			target: "2016-05-01T00:00:00",
			want:   []string{"2017-04-30T08:00:00", "2018-04-30T08:00:00"},
		},
		{
			name:   "year days",
			rule:   "FREQ=YEARLY;BYYEARDAY=1,100,-1",
			start:  "2015-01-01T08:00:00",
			target: "2016-04-10T00:00:00",
			want:   []string{"2016-12-31T08:00:00", "2017-01-01T08:00:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := mustIterator(t, tt.rule, tt.start)
			got, ok := fastForward(t, it, tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.want[0], got)
			assert.Equal(t, tt.want[1:], collect(t, it, len(tt.want)-1))
		})
	}
}

func TestFastForward_PastUntil(t *testing.T) {
	it := mustIterator(t, "FREQ=DAILY;UNTIL=20150816T120000Z", "2015-08-15T12:00:00")
	_, ok := fastForward(t, it, "2015-08-17T12:00:00")
	assert.False(t, ok)
	assert.True(t, it.Completed())
}

func TestFastForward_PastCount(t *testing.T) {
	it := mustIterator(t, "FREQ=DAILY;COUNT=5", "2015-08-15T12:00:00")
	_, ok := fastForward(t, it, "2015-08-20T12:00:00")
	assert.False(t, ok)
	assert.True(t, it.Completed())
	assert.Equal(t, 5, it.OccurrenceNumber())
}

func TestFastForward_CountKeepsOrdinal(t *testing.T) {
	it := mustIterator(t, "FREQ=DAILY;COUNT=10", "2015-08-15T12:00:00")
	got, ok := fastForward(t, it, "2015-08-17T06:00:00")
	require.True(t, ok)
	assert.Equal(t, "2015-08-17T12:00:00", got)
	assert.Equal(t, 3, it.OccurrenceNumber())

	// Going back is allowed while the target is not before the anchor.
	got, ok = fastForward(t, it, "2015-08-15T12:00:00")
	require.True(t, ok)
	assert.Equal(t, "2015-08-15T12:00:00", got)
	assert.Equal(t, 1, it.OccurrenceNumber())
}

func TestFastForward_BeforeStart(t *testing.T) {
	it := mustIterator(t, "FREQ=DAILY", "2015-08-15T12:00:00")
	_, err := it.FastForward(at(t, "2015-08-15T11:59:59"))
	require.ErrorIs(t, err, ErrSeekBeforeStart)
}

func TestFastForward_ToAnchorMatchesFreshIterator(t *testing.T) {
	rules := []struct{ rule, start string }{
		{"FREQ=MONTHLY;BYMONTHDAY=-31,-29,1,3", "2015-06-01T08:00:00"},
		{"FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,SU;WKST=SU", "1997-08-05T09:00:00"},
		{"FREQ=YEARLY;BYWEEKNO=3;BYDAY=MO,TU", "2016-01-18T08:00:00"},
		{"FREQ=MONTHLY;BYDAY=TU,WE,TH;BYSETPOS=3", "1997-09-02T09:00:00"},
	}
	for _, r := range rules {
		t.Run(r.rule, func(t *testing.T) {
			want := collect(t, mustIterator(t, r.rule, r.start), 20)

			it := mustIterator(t, r.rule, r.start)
			first, ok := fastForward(t, it, r.start)
			require.True(t, ok)
			got := append([]string{first}, collect(t, it, 19)...)
			assert.Equal(t, want, got)
			assert.Equal(t, 20, it.OccurrenceNumber())
		})
	}
}

func TestFastForward_AgreesWithNext(t *testing.T) {
	rule, start := "FREQ=WEEKLY;BYDAY=MO,WE,FR;BYHOUR=9,17", "2015-01-01T09:00:00"
	all := collect(t, mustIterator(t, rule, start), 60)
	require.Len(t, all, 60)

	for i := 1; i < len(all); i += 7 {
		it := mustIterator(t, rule, start)
		got, ok := fastForward(t, it, all[i])
		require.True(t, ok)
		assert.Equal(t, all[i], got)
		next := collect(t, it, 1)
		if i+1 < len(all) {
			assert.Equal(t, all[i+1:i+2], next)
		}
	}
}
