package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/models"
	"github.com/schedsnap/schedsnap-api/internal/timeutil"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

// ScheduleMerger folds per-file extraction results into one ScheduleData
// plus diagnostics. It is scoped to a single job: create one, feed it every
// file in input order, then Finalize.
type ScheduleMerger struct {
	validate *validator.Validate
	logger   *zap.Logger

	data     models.ScheduleData
	warnings []models.ProcessingWarning
	errors   []models.ProcessingError

	totalFiles  int
	failedFiles int
}

// NewScheduleMerger constructs a merger for one import job.
func NewScheduleMerger(logger *zap.Logger) *ScheduleMerger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleMerger{
		validate: validator.New(),
		logger:   logger,
		data:     models.ScheduleData{Events: []models.ScheduleEvent{}},
		warnings: []models.ProcessingWarning{},
		errors:   []models.ProcessingError{},
	}
}

// Add folds one file's extraction output into the merge state. Invalid
// events become warnings, never hard failures; a missing events array marks
// the whole file as failed.
func (m *ScheduleMerger) Add(filename string, raw *models.RawExtraction) {
	m.totalFiles++

	if raw == nil || raw.Events == nil {
		m.recordFailure(filename, "extraction produced no usable events array")
		return
	}

	m.captureTermDates(filename, raw)

	for i, candidate := range raw.Events {
		event, reason, field, value := m.validateEvent(candidate)
		if event == nil {
			m.addWarning(filename, fmt.Sprintf("event %d dropped: %s", i+1, reason), field, value)
			continue
		}
		m.data.Events = append(m.data.Events, *event)
	}
}

// AddFailure records a file whose extraction failed entirely. Other files
// still proceed.
func (m *ScheduleMerger) AddFailure(filename string, err error) {
	m.totalFiles++
	m.recordFailure(filename, err.Error())
}

// Finalize validates the combined schedule and returns the preview. When
// every file failed it returns ErrAllFilesFailed and no preview may be
// written.
func (m *ScheduleMerger) Finalize() (*models.PreviewResult, error) {
	if m.totalFiles > 0 && m.failedFiles == m.totalFiles {
		details := make([]string, 0, len(m.errors))
		for _, pe := range m.errors {
			details = append(details, fmt.Sprintf("%s: %s", pe.Filename, pe.Error))
		}
		return nil, appErrors.Clone(appErrors.ErrAllFilesFailed, strings.Join(details, "; "))
	}

	preview := &models.PreviewResult{
		ScheduleData:       m.data,
		ProcessingWarnings: m.warnings,
		ProcessingErrors:   m.errors,
	}
	if err := m.validate.Struct(preview); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "merged schedule failed validation")
	}
	return preview, nil
}

// captureTermDates applies first-writer-wins semantics per field, in file
// input order. A malformed date warns and leaves the field unset.
func (m *ScheduleMerger) captureTermDates(filename string, raw *models.RawExtraction) {
	if m.data.TermStartDate == nil && raw.TermStartDate != nil {
		m.setTermDate(filename, "termStartDate", *raw.TermStartDate, &m.data.TermStartDate)
	}
	if m.data.TermEndDate == nil && raw.TermEndDate != nil {
		m.setTermDate(filename, "termEndDate", *raw.TermEndDate, &m.data.TermEndDate)
	}
}

func (m *ScheduleMerger) setTermDate(filename, field, value string, target **string) {
	if _, err := time.Parse(timeutil.DateLayout, value); err != nil {
		f, v := field, value
		m.warnings = append(m.warnings, models.ProcessingWarning{
			Filename: &filename,
			Message:  fmt.Sprintf("malformed %s ignored", field),
			Field:    &f,
			Value:    &v,
		})
		return
	}
	v := value
	*target = &v
}

// validateEvent enforces the ScheduleEvent invariants on one candidate.
// Returns a nil event plus a reason (and the offending field/value when
// known) when the candidate must be dropped.
func (m *ScheduleMerger) validateEvent(raw models.RawEvent) (*models.ScheduleEvent, string, *string, *string) {
	if raw.CourseCode == nil || strings.TrimSpace(*raw.CourseCode) == "" {
		return nil, "missing course code", strPtr("courseCode"), nil
	}
	if len(raw.Days) == 0 {
		return nil, "no days selected", strPtr("days"), nil
	}
	for _, day := range raw.Days {
		if !timeutil.ValidWeekday(day) {
			return nil, "unrecognised weekday", strPtr("days"), strPtr(day)
		}
	}
	if raw.StartTime == nil || !timeutil.ClockPattern.MatchString(*raw.StartTime) {
		return nil, "invalid start time", strPtr("startTime"), raw.StartTime
	}
	if raw.EndTime == nil || !timeutil.ClockPattern.MatchString(*raw.EndTime) {
		return nil, "invalid end time", strPtr("endTime"), raw.EndTime
	}

	start, err := timeutil.ParseClock(*raw.StartTime)
	if err != nil {
		return nil, "invalid start time", strPtr("startTime"), raw.StartTime
	}
	end, err := timeutil.ParseClock(*raw.EndTime)
	if err != nil {
		return nil, "invalid end time", strPtr("endTime"), raw.EndTime
	}
	if start >= end {
		return nil, "start time is not before end time", strPtr("startTime"), raw.StartTime
	}

	return &models.ScheduleEvent{
		CourseCode:     strings.TrimSpace(*raw.CourseCode),
		CourseName:     raw.CourseName,
		SectionDetails: raw.SectionDetails,
		Location:       raw.Location,
		Days:           raw.Days,
		StartTime:      *raw.StartTime,
		EndTime:        *raw.EndTime,
	}, "", nil, nil
}

func (m *ScheduleMerger) recordFailure(filename, message string) {
	m.failedFiles++
	m.errors = append(m.errors, models.ProcessingError{Filename: filename, Error: message})
	m.logger.Sugar().Warnw("file excluded from merge", "filename", filename, "error", message)
}

func (m *ScheduleMerger) addWarning(filename, message string, field, value *string) {
	m.warnings = append(m.warnings, models.ProcessingWarning{
		Filename: &filename,
		Message:  message,
		Field:    field,
		Value:    value,
	})
}

func strPtr(s string) *string {
	return &s
}
