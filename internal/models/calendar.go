package models

import "time"

// EventDescriptor is the provider-ready representation of one recurring
// calendar event. Start and End carry local wall-clock instants in the
// target zone; Timezone is the IANA identifier the provider needs to keep
// wall-clock times stable across daylight-saving transitions.
type EventDescriptor struct {
	Summary         string    `json:"summary"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Timezone        string    `json:"timezone"`
	Recurrence      string    `json:"recurrence"`
	ColorID         string    `json:"colorId"`
	ReminderMinutes int       `json:"reminderMinutes"`
}

// SubmissionError records one failed event insertion.
type SubmissionError struct {
	EventSummary string `json:"eventSummary"`
	Message      string `json:"message"`
	StatusCode   int    `json:"statusCode,omitempty"`
}

// SubmissionResult aggregates a batch submission. Every input descriptor is
// accounted for exactly once, either in SuccessCount or in Errors.
type SubmissionResult struct {
	SuccessCount int               `json:"successCount"`
	Errors       []SubmissionError `json:"errors"`
}
