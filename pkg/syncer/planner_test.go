package syncer

import (
	"testing"
	"time"

	"amosync/pkg/amos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func record(first, last *time.Time) *amos.CameraRecord {
	return &amos.CameraRecord{ID: 65, DateAdded: first, LastCapture: last}
}

func TestPlan_ActivityWindowOnly(t *testing.T) {
	w, ok := Plan(nil, nil, record(date(2015, 3, 10), date(2015, 5, 2)))
	require.True(t, ok)
	assert.Equal(t, []Month{{2015, 3}, {2015, 4}, {2015, 5}}, w.Months())
}

func TestPlan_IncludesDecember(t *testing.T) {
	w, ok := Plan(nil, nil, record(date(2015, 11, 15), date(2016, 1, 3)))
	require.True(t, ok)
	assert.Equal(t, []Month{{2015, 11}, {2015, 12}, {2016, 1}}, w.Months())
}

func TestPlan_FullYears(t *testing.T) {
	w, ok := Plan(nil, nil, record(date(2014, 1, 1), date(2015, 12, 31)))
	require.True(t, ok)
	assert.Len(t, w.Months(), 24)
}

func TestPlan_IntersectsRequestedRange(t *testing.T) {
	cases := []struct {
		name       string
		reqStart   *time.Time
		reqEnd     *time.Time
		first      *time.Time
		last       *time.Time
		start, end Month
	}{
		{"request inside", date(2016, 2, 1), date(2016, 4, 1), date(2015, 1, 1), date(2017, 1, 1), Month{2016, 2}, Month{2016, 4}},
		{"activity inside", date(2010, 1, 1), date(2020, 1, 1), date(2015, 6, 1), date(2015, 8, 1), Month{2015, 6}, Month{2015, 8}},
		{"overlap start", date(2015, 7, 1), nil, date(2015, 6, 1), date(2015, 8, 1), Month{2015, 7}, Month{2015, 8}},
		{"overlap end", nil, date(2015, 7, 1), date(2015, 6, 1), date(2015, 8, 1), Month{2015, 6}, Month{2015, 7}},
		{"no first seen", date(2015, 7, 1), nil, nil, date(2015, 8, 1), Month{2015, 7}, Month{2015, 8}},
		{"no last seen", nil, date(2015, 9, 1), date(2015, 6, 1), nil, Month{2015, 6}, Month{2015, 9}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, ok := Plan(tc.reqStart, tc.reqEnd, record(tc.first, tc.last))
			require.True(t, ok)
			assert.Equal(t, tc.start, w.Start)
			assert.Equal(t, tc.end, w.End)

			for _, m := range w.Months() {
				if tc.reqStart != nil {
					assert.False(t, m.Before(MonthOf(*tc.reqStart)))
				}
				if tc.first != nil {
					assert.False(t, m.Before(MonthOf(*tc.first)))
				}
				if tc.reqEnd != nil {
					assert.False(t, MonthOf(*tc.reqEnd).Before(m))
				}
				if tc.last != nil {
					assert.False(t, MonthOf(*tc.last).Before(m))
				}
			}
		})
	}
}

func TestPlan_Empty(t *testing.T) {
	cases := []struct {
		name     string
		reqStart *time.Time
		reqEnd   *time.Time
		rec      *amos.CameraRecord
	}{
		{"no start anywhere", nil, date(2016, 1, 1), record(nil, date(2016, 1, 1))},
		{"no end anywhere", date(2015, 1, 1), nil, record(date(2015, 1, 1), nil)},
		{"disjoint", date(2018, 1, 1), date(2019, 1, 1), record(date(2015, 1, 1), date(2016, 1, 1))},
		{"nil record", nil, nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Plan(tc.reqStart, tc.reqEnd, tc.rec)
			assert.False(t, ok)
		})
	}
}

func TestPlan_SameMonthDifferentDays(t *testing.T) {
	// both ends fall in May even though the requested day is after last capture
	w, ok := Plan(date(2015, 5, 20), nil, record(date(2015, 1, 1), date(2015, 5, 2)))
	require.True(t, ok)
	assert.Equal(t, []Month{{2015, 5}}, w.Months())
}

func TestMonth_NextAndString(t *testing.T) {
	assert.Equal(t, Month{2016, 1}, Month{2015, 12}.Next())
	assert.Equal(t, Month{2015, 7}, Month{2015, 6}.Next())
	assert.Equal(t, "2015-06", Month{2015, 6}.String())
	assert.True(t, Month{2015, 12}.Before(Month{2016, 1}))
	assert.False(t, Month{2016, 1}.Before(Month{2016, 1}))
}
