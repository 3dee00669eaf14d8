package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedsnap/schedsnap-api/internal/models"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

func rawEvent(code, start, end string, days ...string) models.RawEvent {
	return models.RawEvent{
		CourseCode: testStrPtr(code),
		Days:       days,
		StartTime:  testStrPtr(start),
		EndTime:    testStrPtr(end),
	}
}

func testStrPtr(val string) *string {
	return &val
}

func TestScheduleMergerPartialSuccess(t *testing.T) {
	merger := NewScheduleMerger(nil)

	merger.Add("page1.jpg", &models.RawExtraction{
		Events: []models.RawEvent{rawEvent("CS101", "9:00 AM", "10:30 AM", "Monday", "Wednesday")},
	})
	merger.AddFailure("page2.jpg", errors.New("model timed out"))
	merger.Add("page3.jpg", &models.RawExtraction{
		Events: []models.RawEvent{rawEvent("MATH200", "1:00 PM", "2:15 PM", "Tuesday")},
	})

	preview, err := merger.Finalize()
	require.NoError(t, err)
	require.Len(t, preview.ScheduleData.Events, 2)
	assert.Equal(t, "CS101", preview.ScheduleData.Events[0].CourseCode)
	assert.Equal(t, "MATH200", preview.ScheduleData.Events[1].CourseCode)
	require.Len(t, preview.ProcessingErrors, 1)
	assert.Equal(t, "page2.jpg", preview.ProcessingErrors[0].Filename)
}

func TestScheduleMergerTotalFailure(t *testing.T) {
	merger := NewScheduleMerger(nil)
	merger.AddFailure("a.jpg", errors.New("boom"))
	merger.AddFailure("b.jpg", errors.New("boom"))

	preview, err := merger.Finalize()
	require.Error(t, err)
	assert.Nil(t, preview)
	assert.Equal(t, appErrors.ErrAllFilesFailed.Code, appErrors.FromError(err).Code)
}

func TestScheduleMergerMissingEventsArrayIsFileFailure(t *testing.T) {
	merger := NewScheduleMerger(nil)
	merger.Add("only.jpg", &models.RawExtraction{})

	preview, err := merger.Finalize()
	require.Error(t, err)
	assert.Nil(t, preview)
	assert.Equal(t, appErrors.ErrAllFilesFailed.Code, appErrors.FromError(err).Code)
}

func TestScheduleMergerTermDatesFirstWriterWins(t *testing.T) {
	merger := NewScheduleMerger(nil)

	merger.Add("a.jpg", &models.RawExtraction{
		TermStartDate: testStrPtr("not-a-date"),
		TermEndDate:   testStrPtr("2024-12-10"),
		Events:        []models.RawEvent{},
	})
	merger.Add("b.jpg", &models.RawExtraction{
		TermStartDate: testStrPtr("2024-09-02"),
		TermEndDate:   testStrPtr("2025-01-01"),
		Events:        []models.RawEvent{},
	})

	preview, err := merger.Finalize()
	require.NoError(t, err)
	require.NotNil(t, preview.ScheduleData.TermStartDate)
	require.NotNil(t, preview.ScheduleData.TermEndDate)
	assert.Equal(t, "2024-09-02", *preview.ScheduleData.TermStartDate)
	assert.Equal(t, "2024-12-10", *preview.ScheduleData.TermEndDate)

	require.Len(t, preview.ProcessingWarnings, 1)
	warning := preview.ProcessingWarnings[0]
	require.NotNil(t, warning.Field)
	assert.Equal(t, "termStartDate", *warning.Field)
	require.NotNil(t, warning.Value)
	assert.Equal(t, "not-a-date", *warning.Value)
}

func TestScheduleMergerDropsInvalidEvents(t *testing.T) {
	cases := []struct {
		name  string
		event models.RawEvent
		field string
	}{
		{name: "missing course code", event: models.RawEvent{Days: []string{"Monday"}, StartTime: testStrPtr("9:00 AM"), EndTime: testStrPtr("10:00 AM")}, field: "courseCode"},
		{name: "no days", event: rawEvent("CS101", "9:00 AM", "10:00 AM"), field: "days"},
		{name: "unknown weekday", event: rawEvent("CS101", "9:00 AM", "10:00 AM", "Moonday"), field: "days"},
		{name: "bad start time", event: rawEvent("CS101", "25:00", "10:00 AM", "Monday"), field: "startTime"},
		{name: "bad end time", event: rawEvent("CS101", "9:00 AM", "10:00", "Monday"), field: "endTime"},
		{name: "start after end", event: rawEvent("CS101", "3:00 PM", "9:00 AM", "Monday"), field: "startTime"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merger := NewScheduleMerger(nil)
			merger.Add("page.jpg", &models.RawExtraction{
				Events: []models.RawEvent{tc.event, rawEvent("OK101", "9:00 AM", "10:00 AM", "Friday")},
			})

			preview, err := merger.Finalize()
			require.NoError(t, err)
			require.Len(t, preview.ScheduleData.Events, 1)
			assert.Equal(t, "OK101", preview.ScheduleData.Events[0].CourseCode)
			require.Len(t, preview.ProcessingWarnings, 1)
			require.NotNil(t, preview.ProcessingWarnings[0].Field)
			assert.Equal(t, tc.field, *preview.ProcessingWarnings[0].Field)
			assert.Empty(t, preview.ProcessingErrors)
		})
	}
}

func TestScheduleMergerEventSetIsOrderIndependent(t *testing.T) {
	fileA := &models.RawExtraction{Events: []models.RawEvent{rawEvent("CS101", "9:00 AM", "10:00 AM", "Monday")}}
	fileB := &models.RawExtraction{Events: []models.RawEvent{rawEvent("MATH200", "1:00 PM", "2:00 PM", "Tuesday")}}

	forward := NewScheduleMerger(nil)
	forward.Add("a.jpg", fileA)
	forward.Add("b.jpg", fileB)
	forwardPreview, err := forward.Finalize()
	require.NoError(t, err)

	reverse := NewScheduleMerger(nil)
	reverse.Add("b.jpg", fileB)
	reverse.Add("a.jpg", fileA)
	reversePreview, err := reverse.Finalize()
	require.NoError(t, err)

	assert.ElementsMatch(t, forwardPreview.ScheduleData.Events, reversePreview.ScheduleData.Events)
}
