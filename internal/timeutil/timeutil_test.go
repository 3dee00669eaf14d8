package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		raw     string
		minutes int
		wantErr bool
	}{
		{raw: "9:00 AM", minutes: 540},
		{raw: "09:00 AM", minutes: 540},
		{raw: "12:00 AM", minutes: 0},
		{raw: "12:00 PM", minutes: 720},
		{raw: "11:59 PM", minutes: 1439},
		{raw: "1:30 PM", minutes: 810},
		{raw: "13:00 PM", wantErr: true},
		{raw: "9:60 AM", wantErr: true},
		{raw: "9:00", wantErr: true},
		{raw: "9:00 am", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseClock(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.minutes, got, tc.raw)
	}
}

func TestMinutesToClockRoundTrip(t *testing.T) {
	for _, raw := range []string{"12:00 AM", "9:05 AM", "12:30 PM", "4:45 PM", "11:59 PM"} {
		minutes, err := ParseClock(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, MinutesToClock(minutes))
	}
}

func TestWeekdayMappings(t *testing.T) {
	d, ok := Weekday("Monday")
	require.True(t, ok)
	assert.Equal(t, time.Monday, d)

	r, ok := RecurrenceWeekday("Wednesday")
	require.True(t, ok)
	assert.Equal(t, rrule.WE, r)

	_, ok = Weekday("Funday")
	assert.False(t, ok)
	assert.False(t, ValidWeekday("monday"))
	assert.True(t, ValidWeekday("Saturday"))
}
