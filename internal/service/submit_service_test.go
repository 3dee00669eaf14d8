package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/schedsnap/schedsnap-api/internal/models"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

type stubInserter struct {
	mu       sync.Mutex
	inserted []*calendar.Event
	inFlight int
	peak     int
	failFor  map[string]error
}

func (s *stubInserter) Insert(ctx context.Context, event *calendar.Event) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if err, ok := s.failFor[event.Summary]; ok {
		return err
	}
	s.inserted = append(s.inserted, event)
	return nil
}

func stubFactory(inserter eventInserter, err error) inserterFactory {
	return func(ctx context.Context, accessToken string) (eventInserter, error) {
		return inserter, err
	}
}

func testDescriptors(n int) []models.EventDescriptor {
	start := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	descriptors := make([]models.EventDescriptor, 0, n)
	for i := 0; i < n; i++ {
		descriptors = append(descriptors, models.EventDescriptor{
			Summary:         fmt.Sprintf("COURSE%d", i),
			Start:           start,
			End:             start.Add(time.Hour),
			Timezone:        "UTC",
			Recurrence:      "RRULE:FREQ=WEEKLY;UNTIL=20241211T000000Z;BYDAY=MO",
			ColorID:         "3",
			ReminderMinutes: 10,
		})
	}
	return descriptors
}

func TestSubmitServiceAllSucceed(t *testing.T) {
	inserter := &stubInserter{}
	svc := newSubmitService(stubFactory(inserter, nil), 5, nil, nil)

	result, err := svc.Submit(context.Background(), "token", testDescriptors(7))
	require.NoError(t, err)
	assert.Equal(t, 7, result.SuccessCount)
	assert.Empty(t, result.Errors)
	assert.Len(t, inserter.inserted, 7)
}

func TestSubmitServiceAccountsForEveryEvent(t *testing.T) {
	inserter := &stubInserter{failFor: map[string]error{
		"COURSE1": &googleapi.Error{Code: 409, Message: "duplicate"},
		"COURSE4": errors.New("connection reset"),
	}}
	svc := newSubmitService(stubFactory(inserter, nil), 5, nil, nil)

	descriptors := testDescriptors(6)
	result, err := svc.Submit(context.Background(), "token", descriptors)
	require.NoError(t, err)

	assert.Equal(t, len(descriptors), result.SuccessCount+len(result.Errors))
	assert.Equal(t, 4, result.SuccessCount)
	require.Len(t, result.Errors, 2)

	bysummary := map[string]models.SubmissionError{}
	for _, subErr := range result.Errors {
		bysummary[subErr.EventSummary] = subErr
	}
	assert.Equal(t, 409, bysummary["COURSE1"].StatusCode)
	assert.Equal(t, "duplicate", bysummary["COURSE1"].Message)
	assert.Equal(t, 0, bysummary["COURSE4"].StatusCode)
	assert.Equal(t, "connection reset", bysummary["COURSE4"].Message)
}

func TestSubmitServiceBoundsConcurrency(t *testing.T) {
	inserter := &stubInserter{}
	svc := newSubmitService(stubFactory(inserter, nil), 3, nil, nil)

	result, err := svc.Submit(context.Background(), "token", testDescriptors(12))
	require.NoError(t, err)
	assert.Equal(t, 12, result.SuccessCount)
	assert.LessOrEqual(t, inserter.peak, 3)
}

func TestSubmitServiceRequiresToken(t *testing.T) {
	svc := newSubmitService(stubFactory(&stubInserter{}, nil), 5, nil, nil)

	result, err := svc.Submit(context.Background(), "", testDescriptors(1))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestSubmitServiceEmptyBatch(t *testing.T) {
	called := false
	factory := func(ctx context.Context, accessToken string) (eventInserter, error) {
		called = true
		return &stubInserter{}, nil
	}
	svc := newSubmitService(factory, 5, nil, nil)

	result, err := svc.Submit(context.Background(), "token", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Empty(t, result.Errors)
	assert.False(t, called, "no client should be built for an empty batch")
}

func TestSubmitServiceFactoryFailure(t *testing.T) {
	svc := newSubmitService(stubFactory(nil, errors.New("bad credentials")), 5, nil, nil)

	result, err := svc.Submit(context.Background(), "token", testDescriptors(2))
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestToProviderEvent(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	descriptor := models.EventDescriptor{
		Summary:         "CS101 (Intro)",
		Location:        "Rm 120",
		Description:     "Section 002",
		Start:           time.Date(2024, 9, 2, 9, 0, 0, 0, loc),
		End:             time.Date(2024, 9, 2, 10, 30, 0, 0, loc),
		Timezone:        "America/New_York",
		Recurrence:      "RRULE:FREQ=WEEKLY;UNTIL=20241211T000000Z;BYDAY=MO,WE",
		ColorID:         "7",
		ReminderMinutes: 10,
	}

	event := toProviderEvent(descriptor)
	assert.Equal(t, "CS101 (Intro)", event.Summary)
	assert.Equal(t, "2024-09-02T09:00:00-04:00", event.Start.DateTime)
	assert.Equal(t, "America/New_York", event.Start.TimeZone)
	assert.Equal(t, "2024-09-02T10:30:00-04:00", event.End.DateTime)
	assert.Equal(t, []string{descriptor.Recurrence}, event.Recurrence)
	assert.Equal(t, "7", event.ColorId)
	require.NotNil(t, event.Reminders)
	assert.False(t, event.Reminders.UseDefault)
	assert.Contains(t, event.Reminders.ForceSendFields, "UseDefault")
	require.Len(t, event.Reminders.Overrides, 1)
	assert.Equal(t, int64(10), event.Reminders.Overrides[0].Minutes)
}
