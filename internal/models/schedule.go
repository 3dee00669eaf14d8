package models

// ScheduleEvent is one recurring class meeting extracted from an uploaded
// schedule image. It only exists as an element of a ScheduleData.
type ScheduleEvent struct {
	CourseCode     string   `json:"courseCode" validate:"required"`
	CourseName     *string  `json:"courseName,omitempty"`
	SectionDetails *string  `json:"sectionDetails,omitempty"`
	Location       *string  `json:"location,omitempty"`
	Days           []string `json:"days" validate:"required,min=1,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	StartTime      string   `json:"startTime" validate:"required"`
	EndTime        string   `json:"endTime" validate:"required"`
}

// ScheduleData is the merged schedule for one import. Term dates are ISO
// YYYY-MM-DD strings or absent; when both are present end must not precede
// start, which the formatter enforces before any calendar work happens.
type ScheduleData struct {
	TermStartDate *string         `json:"termStartDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TermEndDate   *string         `json:"termEndDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Events        []ScheduleEvent `json:"events" validate:"dive"`
}

// ProcessingWarning is a field-level diagnostic produced during merge.
// Warnings never fail the pipeline; they ride along to the client.
type ProcessingWarning struct {
	Filename *string `json:"filename,omitempty"`
	Message  string  `json:"message"`
	Field    *string `json:"field,omitempty"`
	Value    *string `json:"value,omitempty"`
}

// ProcessingError records a file whose extraction failed entirely.
type ProcessingError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// PreviewResult is the unit stored for client consumption between job
// completion and confirm/cancel.
type PreviewResult struct {
	ScheduleData       ScheduleData        `json:"scheduleData"`
	ProcessingWarnings []ProcessingWarning `json:"processingWarnings"`
	ProcessingErrors   []ProcessingError   `json:"processingErrors"`
}

// RawExtraction is the unvalidated output of one model call. Every field is
// untrusted until it has passed through the merger.
type RawExtraction struct {
	TermStartDate *string    `json:"termStartDate"`
	TermEndDate   *string    `json:"termEndDate"`
	Events        []RawEvent `json:"events"`
}

// RawEvent mirrors ScheduleEvent with no guarantees about any field.
type RawEvent struct {
	CourseCode     *string  `json:"courseCode"`
	CourseName     *string  `json:"courseName"`
	SectionDetails *string  `json:"sectionDetails"`
	Location       *string  `json:"location"`
	Days           []string `json:"days"`
	StartTime      *string  `json:"startTime"`
	EndTime        *string  `json:"endTime"`
}
