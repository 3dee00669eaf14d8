package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsnap/schedsnap-api/internal/models"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

func seededRand(seed int64) func() *rand.Rand {
	return func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
}

func testSchedule(events ...models.ScheduleEvent) *models.ScheduleData {
	return &models.ScheduleData{
		TermStartDate: testStrPtr("2024-09-02"),
		TermEndDate:   testStrPtr("2024-12-10"),
		Events:        events,
	}
}

func scheduleEvent(code string, days []string, start, end string) models.ScheduleEvent {
	return models.ScheduleEvent{
		CourseCode: code,
		Days:       days,
		StartTime:  start,
		EndTime:    end,
	}
}

func TestCalendarServiceFormatWeeklyRecurrence(t *testing.T) {
	svc := NewCalendarService(10, seededRand(1), nil)

	schedule := testSchedule(
		scheduleEvent("CS101", []string{"Monday", "Wednesday"}, "9:00 AM", "10:30 AM"),
	)
	descriptors, err := svc.Format(schedule, "America/New_York")
	require.NoError(t, err)
	require.Len(t, descriptors, 1)

	d := descriptors[0]
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Term starts on a Monday, so the first occurrence is the term start itself.
	assert.Equal(t, time.Date(2024, 9, 2, 9, 0, 0, 0, loc), d.Start)
	assert.Equal(t, time.Date(2024, 9, 2, 10, 30, 0, 0, loc), d.End)
	assert.Equal(t, "America/New_York", d.Timezone)

	assert.True(t, len(d.Recurrence) > len("RRULE:"))
	assert.Equal(t, "RRULE:", d.Recurrence[:6])
	assert.Contains(t, d.Recurrence, "FREQ=WEEKLY")
	assert.Contains(t, d.Recurrence, "BYDAY=MO,WE")
	// Exclusive UNTIL one day past the term end keeps 2024-12-10 occurrences.
	assert.Contains(t, d.Recurrence, "UNTIL=20241211T000000Z")
	assert.NotContains(t, d.Recurrence, "DTSTART")
}

func TestCalendarServiceFirstOccurrenceSkipsToSelectedDay(t *testing.T) {
	svc := NewCalendarService(10, seededRand(1), nil)

	// Term starts Monday 2024-09-02; a Thursday-only course first meets 09-05.
	schedule := testSchedule(
		scheduleEvent("BIO110", []string{"Thursday"}, "2:00 PM", "3:15 PM"),
	)
	descriptors, err := svc.Format(schedule, "UTC")
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, time.Date(2024, 9, 5, 14, 0, 0, 0, time.UTC), descriptors[0].Start)
	assert.Equal(t, time.Date(2024, 9, 5, 15, 15, 0, 0, time.UTC), descriptors[0].End)
}

func TestCalendarServiceRejectsInvalidTimezone(t *testing.T) {
	svc := NewCalendarService(10, seededRand(1), nil)
	schedule := testSchedule(scheduleEvent("CS101", []string{"Monday"}, "9:00 AM", "10:00 AM"))

	for _, tz := range []string{"", "Invalid/Zone"} {
		descriptors, err := svc.Format(schedule, tz)
		require.Error(t, err)
		assert.Nil(t, descriptors)
		assert.Equal(t, appErrors.ErrInvalidTimezone.Code, appErrors.FromError(err).Code)
	}
}

func TestCalendarServiceRejectsBadTermDates(t *testing.T) {
	svc := NewCalendarService(10, seededRand(1), nil)
	event := scheduleEvent("CS101", []string{"Monday"}, "9:00 AM", "10:00 AM")

	cases := []struct {
		name     string
		schedule *models.ScheduleData
	}{
		{name: "missing start", schedule: &models.ScheduleData{TermEndDate: testStrPtr("2024-12-10"), Events: []models.ScheduleEvent{event}}},
		{name: "missing end", schedule: &models.ScheduleData{TermStartDate: testStrPtr("2024-09-02"), Events: []models.ScheduleEvent{event}}},
		{name: "malformed start", schedule: &models.ScheduleData{TermStartDate: testStrPtr("09/02/2024"), TermEndDate: testStrPtr("2024-12-10"), Events: []models.ScheduleEvent{event}}},
		{name: "end before start", schedule: &models.ScheduleData{TermStartDate: testStrPtr("2024-12-10"), TermEndDate: testStrPtr("2024-09-02"), Events: []models.ScheduleEvent{event}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			descriptors, err := svc.Format(tc.schedule, "UTC")
			require.Error(t, err)
			assert.Nil(t, descriptors)
			assert.Equal(t, appErrors.ErrInvalidTermDates.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestCalendarServiceSkipsBrokenEventsAndKeepsRest(t *testing.T) {
	svc := NewCalendarService(10, seededRand(1), nil)

	schedule := testSchedule(
		scheduleEvent("BAD1", []string{"Funday"}, "9:00 AM", "10:00 AM"),
		scheduleEvent("BAD2", []string{"Monday"}, "bogus", "10:00 AM"),
		scheduleEvent("BAD3", []string{"Monday"}, "11:00 AM", "9:00 AM"),
		scheduleEvent("OK1", []string{"Friday"}, "9:00 AM", "10:00 AM"),
	)
	descriptors, err := svc.Format(schedule, "UTC")
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "OK1", descriptors[0].Summary)
}

func TestCalendarServiceColorStablePerCourse(t *testing.T) {
	svc := NewCalendarService(10, seededRand(42), nil)

	schedule := testSchedule(
		scheduleEvent("CS101", []string{"Monday"}, "9:00 AM", "10:00 AM"),
		scheduleEvent("MATH200", []string{"Tuesday"}, "9:00 AM", "10:00 AM"),
		scheduleEvent("CS101", []string{"Wednesday"}, "1:00 PM", "2:00 PM"),
	)
	descriptors, err := svc.Format(schedule, "UTC")
	require.NoError(t, err)
	require.Len(t, descriptors, 3)

	assert.Equal(t, descriptors[0].ColorID, descriptors[2].ColorID)
	assert.NotEqual(t, descriptors[0].ColorID, descriptors[1].ColorID)

	valid := map[string]bool{}
	for _, c := range googleEventColors {
		valid[c] = true
	}
	for _, d := range descriptors {
		assert.True(t, valid[d.ColorID], "color %q outside the provider palette", d.ColorID)
	}
}

func TestCalendarServiceSummaryAndMetadata(t *testing.T) {
	svc := NewCalendarService(25, seededRand(1), nil)

	event := scheduleEvent("CS101", []string{"Monday"}, "9:00 AM", "10:00 AM")
	event.CourseName = testStrPtr("Intro to Computing")
	event.Location = testStrPtr("Bldg 4, Rm 120")
	event.SectionDetails = testStrPtr("Section 002, Lecture")

	descriptors, err := svc.Format(testSchedule(event), "UTC")
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "CS101 (Intro to Computing)", descriptors[0].Summary)
	assert.Equal(t, "Bldg 4, Rm 120", descriptors[0].Location)
	assert.Equal(t, "Section 002, Lecture", descriptors[0].Description)
	assert.Equal(t, 25, descriptors[0].ReminderMinutes)
}

func TestCalendarServiceEmptyScheduleYieldsNoDescriptors(t *testing.T) {
	svc := NewCalendarService(10, seededRand(1), nil)
	descriptors, err := svc.Format(testSchedule(), "UTC")
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}
