package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstant(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantNil bool
		check   func(t *testing.T, got time.Time)
	}{
		{
			name: "rfc3339 with zone",
			raw:  "2025-03-10T14:30:00-04:00",
			check: func(t *testing.T, got time.Time) {
				assert.Equal(t, int64(1741631400), got.Unix())
			},
		},
		{
			name: "rfc3339 nano",
			raw:  "2025-03-10T14:30:00.123456789Z",
			check: func(t *testing.T, got time.Time) {
				assert.Equal(t, 123456789, got.Nanosecond())
			},
		},
		{
			name: "naked datetime interpreted in business zone",
			raw:  "2025-06-01 09:00:00",
			check: func(t *testing.T, got time.Time) {
				assert.Equal(t, 9, got.In(businessLoc).Hour())
			},
		},
		{
			name: "date only is midnight business zone",
			raw:  "2025-06-01",
			check: func(t *testing.T, got time.Time) {
				y, m, d := got.In(businessLoc).Date()
				assert.Equal(t, 2025, y)
				assert.Equal(t, time.June, m)
				assert.Equal(t, 1, d)
				assert.Equal(t, 0, got.In(businessLoc).Hour())
			},
		},
		{
			name: "epoch seconds",
			raw:  "1741631400",
			check: func(t *testing.T, got time.Time) {
				assert.Equal(t, int64(1741631400), got.Unix())
			},
		},
		{
			name: "epoch milliseconds",
			raw:  "1741631400000",
			check: func(t *testing.T, got time.Time) {
				assert.Equal(t, int64(1741631400), got.Unix())
			},
		},
		{
			name: "surrounding whitespace",
			raw:  "  2025-06-01  ",
			check: func(t *testing.T, got time.Time) {
				_, _, d := got.In(businessLoc).Date()
				assert.Equal(t, 1, d)
			},
		},
		{
			name:    "empty string",
			raw:     "",
			wantNil: true,
		},
		{
			name:    "garbage",
			raw:     "not-a-date",
			wantNil: true,
		},
		{
			name:    "partial date",
			raw:     "2025-13-45",
			wantNil: true,
		},
		{
			name:    "negative number",
			raw:     "-42",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInstant(tt.raw)

			if tt.wantNil {
				assert.Nil(t, got)
				return
			}

			require.NotNil(t, got)
			if tt.check != nil {
				tt.check(t, *got)
			}
		})
	}
}

func TestBusinessDay_ViewerZoneIndependent(t *testing.T) {
	// 23:30 in New York on June 1st. The same instant rendered in Tokyo is
	// already June 2nd, but the business day index must not move.
	ny := time.Date(2025, 6, 1, 23, 30, 0, 0, businessLoc)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	assert.Equal(t, BusinessDay(ny), BusinessDay(ny.In(tokyo)))
	assert.Equal(t, BusinessDay(ny), BusinessDay(ny.In(time.UTC)))
}

func TestBusinessDay_AcrossDST(t *testing.T) {
	// The US spring-forward on 2025-03-09 removes an hour; index math must
	// still advance by exactly one per calendar day.
	before := time.Date(2025, 3, 8, 12, 0, 0, 0, businessLoc)
	during := time.Date(2025, 3, 9, 12, 0, 0, 0, businessLoc)
	after := time.Date(2025, 3, 10, 12, 0, 0, 0, businessLoc)

	assert.Equal(t, 1, BusinessDay(during)-BusinessDay(before))
	assert.Equal(t, 1, BusinessDay(after)-BusinessDay(during))
}

func TestBusinessDay_BoundaryNotUTC(t *testing.T) {
	// 01:00 UTC is still the previous evening in New York.
	lateEvening := time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)
	sameEveningNY := time.Date(2025, 6, 1, 21, 0, 0, 0, businessLoc)

	assert.Equal(t, BusinessDay(sameEveningNY), BusinessDay(lateEvening))
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			name: "same day",
			a:    time.Date(2025, 6, 1, 8, 0, 0, 0, businessLoc),
			b:    time.Date(2025, 6, 1, 22, 0, 0, 0, businessLoc),
			want: 0,
		},
		{
			name: "next day",
			a:    time.Date(2025, 6, 1, 23, 59, 0, 0, businessLoc),
			b:    time.Date(2025, 6, 2, 0, 1, 0, 0, businessLoc),
			want: 1,
		},
		{
			name: "a after b",
			a:    time.Date(2025, 6, 5, 12, 0, 0, 0, businessLoc),
			b:    time.Date(2025, 6, 1, 12, 0, 0, 0, businessLoc),
			want: -4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestSameBusinessDay(t *testing.T) {
	a := time.Date(2025, 6, 1, 0, 5, 0, 0, businessLoc)
	b := time.Date(2025, 6, 1, 23, 55, 0, 0, businessLoc)
	c := time.Date(2025, 6, 2, 0, 5, 0, 0, businessLoc)

	assert.True(t, SameBusinessDay(a, b))
	assert.False(t, SameBusinessDay(b, c))
}
