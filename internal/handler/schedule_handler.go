package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/dto"
	"github.com/schedsnap/schedsnap-api/internal/middleware"
	"github.com/schedsnap/schedsnap-api/internal/models"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
	"github.com/schedsnap/schedsnap-api/pkg/response"
)

const calendarTokenHeader = "X-Calendar-Token"

type previewStore interface {
	Put(ctx context.Context, sessionID string, preview *models.PreviewResult) error
	Get(ctx context.Context, sessionID string) (*models.PreviewResult, error)
	Delete(ctx context.Context, sessionID string) error
}

type scheduleFormatter interface {
	Format(schedule *models.ScheduleData, timezone string) ([]models.EventDescriptor, error)
}

type eventSubmitter interface {
	Submit(ctx context.Context, accessToken string, descriptors []models.EventDescriptor) (*models.SubmissionResult, error)
}

// ScheduleHandler serves the preview lifecycle: poll, edit, confirm, cancel.
type ScheduleHandler struct {
	previews  previewStore
	formatter scheduleFormatter
	submitter eventSubmitter
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(previews previewStore, formatter scheduleFormatter, submitter eventSubmitter, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{
		previews:  previews,
		formatter: formatter,
		submitter: submitter,
		validate:  validator.New(),
		logger:    logger,
	}
}

// GetPreview returns the pending preview. Clients polling for job completion
// distinguish 404 (keep polling) from 410 (re-upload) by error code.
func (h *ScheduleHandler) GetPreview(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	preview, err := h.previews.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview)
}

// EditEvent replaces one preview event in place by index and re-stores the
// preview, which also resets its TTL.
func (h *ScheduleHandler) EditEvent(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "event index must be a non-negative integer"))
		return
	}

	var req dto.EditEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload"))
		return
	}
	// The stored preview is re-validated on every read, so a malformed event
	// must be rejected here instead of poisoning the entry.
	if err := h.validate.Struct(&req.Event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload"))
		return
	}

	preview, err := h.previews.Get(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if index >= len(preview.ScheduleData.Events) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "event index out of range"))
		return
	}

	preview.ScheduleData.Events[index] = req.Event
	if err := h.previews.Put(c.Request.Context(), sessionID, preview); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store edited preview"))
		return
	}
	response.JSON(c, http.StatusOK, preview)
}

// Confirm formats the reviewed schedule and submits it to the user's
// calendar. The preview entry is evicted after submission regardless of the
// submission outcome.
func (h *ScheduleHandler) Confirm(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	accessToken := c.GetHeader(calendarTokenHeader)
	if accessToken == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "calendar access token is required"))
		return
	}

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirm payload"))
		return
	}

	descriptors, err := h.formatter.Format(&req.ScheduleData, req.Timezone)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Submission has been attempted from here on, so the preview goes away
	// no matter how it ends.
	defer func() {
		if err := h.previews.Delete(c.Request.Context(), sessionID); err != nil {
			h.logger.Sugar().Warnw("failed to evict preview after confirm", "session_id", sessionID, "error", err)
		}
	}()

	result, err := h.submitter.Submit(c.Request.Context(), accessToken, descriptors)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.ConfirmResponse{
		SuccessCount: result.SuccessCount,
		Errors:       result.Errors,
	})
}

// Cancel discards the pending preview without touching the calendar. An
// in-flight job cannot be cancelled; a late write simply repopulates the
// store until it expires or is overwritten.
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if err := h.previews.Delete(c.Request.Context(), sessionID); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel preview"))
		return
	}
	response.NoContent(c)
}
