package dto

import "github.com/schedsnap/schedsnap-api/internal/models"

// UploadResponse acknowledges an accepted upload.
type UploadResponse struct {
	JobID string `json:"jobId"`
}

// JobStatusResponse exposes import job state for polling clients.
type JobStatusResponse struct {
	ID     string              `json:"id"`
	Status models.ImportStatus `json:"status"`
	Error  *string             `json:"error,omitempty"`
}

// EditEventRequest replaces one preview event in place.
type EditEventRequest struct {
	Event models.ScheduleEvent `json:"event" binding:"required"`
}

// ConfirmRequest carries the user-reviewed schedule into calendar submission.
type ConfirmRequest struct {
	ScheduleData models.ScheduleData `json:"scheduleData" binding:"required"`
	Timezone     string              `json:"timezone" binding:"required"`
}

// ConfirmResponse reports per-event submission outcomes.
type ConfirmResponse struct {
	SuccessCount int                      `json:"successCount"`
	Errors       []models.SubmissionError `json:"errors"`
}
