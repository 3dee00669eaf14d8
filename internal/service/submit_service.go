package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/schedsnap/schedsnap-api/internal/models"
	"github.com/schedsnap/schedsnap-api/pkg/config"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

type eventInserter interface {
	Insert(ctx context.Context, event *calendar.Event) error
}

// inserterFactory builds an authenticated calendar client for one request's
// access token. Swapped out in tests.
type inserterFactory func(ctx context.Context, accessToken string) (eventInserter, error)

// SubmitService submits formatted descriptors to the external calendar API
// with bounded parallelism, isolating per-event failures.
type SubmitService struct {
	factory     inserterFactory
	maxInFlight int
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewSubmitService constructs the submitter backed by the Google Calendar API.
func NewSubmitService(cfg config.CalendarConfig, metrics *MetricsService, logger *zap.Logger) *SubmitService {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	factory := func(ctx context.Context, accessToken string) (eventInserter, error) {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		svc, err := calendar.NewService(ctx, option.WithTokenSource(source))
		if err != nil {
			return nil, err
		}
		return &googleInserter{svc: svc, calendarID: calendarID}, nil
	}
	return newSubmitService(factory, cfg.MaxInFlight, metrics, logger)
}

func newSubmitService(factory inserterFactory, maxInFlight int, metrics *MetricsService, logger *zap.Logger) *SubmitService {
	if maxInFlight <= 0 {
		maxInFlight = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmitService{factory: factory, maxInFlight: maxInFlight, metrics: metrics, logger: logger}
}

// Submit attempts every descriptor regardless of earlier failures and
// accounts for each exactly once in the aggregated result.
func (s *SubmitService) Submit(ctx context.Context, accessToken string, descriptors []models.EventDescriptor) (*models.SubmissionResult, error) {
	if accessToken == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "calendar access token is required")
	}

	result := &models.SubmissionResult{Errors: []models.SubmissionError{}}
	if len(descriptors) == 0 {
		return result, nil
	}

	inserter, err := s.factory(ctx, accessToken)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build calendar client")
	}

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(s.maxInFlight)

	for _, descriptor := range descriptors {
		descriptor := descriptor
		group.Go(func() error {
			insertErr := inserter.Insert(ctx, toProviderEvent(descriptor))

			mu.Lock()
			defer mu.Unlock()
			if insertErr != nil {
				result.Errors = append(result.Errors, submissionError(descriptor.Summary, insertErr))
				s.observeSubmission("error")
				return nil
			}
			result.SuccessCount++
			s.observeSubmission("success")
			return nil
		})
	}

	// Goroutines never return errors; Wait is only a join point.
	_ = group.Wait()

	s.logger.Sugar().Infow("calendar submission finished",
		"total", len(descriptors), "succeeded", result.SuccessCount, "failed", len(result.Errors))
	return result, nil
}

func (s *SubmitService) observeSubmission(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSubmission(outcome)
}

func submissionError(summary string, err error) models.SubmissionError {
	subErr := models.SubmissionError{
		EventSummary: summary,
		Message:      "calendar provider rejected the event",
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		subErr.StatusCode = gErr.Code
		if gErr.Message != "" {
			subErr.Message = gErr.Message
		}
	} else if err.Error() != "" {
		subErr.Message = err.Error()
	}
	return subErr
}

func toProviderEvent(d models.EventDescriptor) *calendar.Event {
	return &calendar.Event{
		Summary:     d.Summary,
		Location:    d.Location,
		Description: d.Description,
		Start: &calendar.EventDateTime{
			DateTime: d.Start.Format(time.RFC3339),
			TimeZone: d.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: d.End.Format(time.RFC3339),
			TimeZone: d.Timezone,
		},
		Recurrence: []string{d.Recurrence},
		ColorId:    d.ColorID,
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: int64(d.ReminderMinutes)},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

type googleInserter struct {
	svc        *calendar.Service
	calendarID string
}

func (g *googleInserter) Insert(ctx context.Context, event *calendar.Event) error {
	_, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	return err
}
