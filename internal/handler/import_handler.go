package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/dto"
	"github.com/schedsnap/schedsnap-api/internal/middleware"
	"github.com/schedsnap/schedsnap-api/internal/models"
	"github.com/schedsnap/schedsnap-api/pkg/config"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
	"github.com/schedsnap/schedsnap-api/pkg/response"
)

type importCreator interface {
	CreateJob(ctx context.Context, sessionID string, files []models.ImportFile) (*dto.UploadResponse, error)
	GetStatus(ctx context.Context, id, sessionID string) (*dto.JobStatusResponse, error)
}

// ImportHandler accepts schedule image uploads and exposes job status.
type ImportHandler struct {
	imports importCreator
	storage uploadSaver
	cfg     config.UploadsConfig
	logger  *zap.Logger
}

type uploadSaver interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// NewImportHandler constructs an import handler.
func NewImportHandler(imports importCreator, storage uploadSaver, cfg config.UploadsConfig, logger *zap.Logger) *ImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{imports: imports, storage: storage, cfg: cfg, logger: logger}
}

// Upload accepts multipart schedule images, stages them in temp storage and
// enqueues one extraction job for the session.
func (h *ImportHandler) Upload(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form is required"))
		return
	}
	uploads := form.File["images"]
	if len(uploads) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one image is required"))
		return
	}
	if h.cfg.MaxFiles > 0 && len(uploads) > h.cfg.MaxFiles {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("too many files: limit is %d", h.cfg.MaxFiles)))
		return
	}

	files := make([]models.ImportFile, 0, len(uploads))
	for _, upload := range uploads {
		file, err := h.stageUpload(upload)
		if err != nil {
			h.discardStaged(files)
			response.Error(c, err)
			return
		}
		files = append(files, *file)
	}

	resp, err := h.imports.CreateJob(c.Request.Context(), sessionID, files)
	if err != nil {
		h.discardStaged(files)
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// Status reports the lifecycle state of one import job.
func (h *ImportHandler) Status(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	resp, err := h.imports.GetStatus(c.Request.Context(), c.Param("id"), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *ImportHandler) stageUpload(upload *multipart.FileHeader) (*models.ImportFile, error) {
	if h.cfg.MaxFileSizeBytes > 0 && upload.Size > h.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file %s exceeds the %d byte limit", upload.Filename, h.cfg.MaxFileSizeBytes))
	}

	mimeType := upload.Header.Get("Content-Type")
	if !h.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported media type %q for file %s", mimeType, upload.Filename))
	}

	src, err := upload.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer src.Close() //nolint:errcheck

	name := uuid.NewString() + strings.ToLower(filepath.Ext(upload.Filename))
	path, err := h.storage.SaveStream(name, src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	return &models.ImportFile{
		Path:             path,
		MimeType:         mimeType,
		OriginalFilename: upload.Filename,
	}, nil
}

func (h *ImportHandler) discardStaged(files []models.ImportFile) {
	for _, file := range files {
		if err := h.storage.Delete(file.Path); err != nil {
			h.logger.Sugar().Warnw("failed to discard staged upload", "path", file.Path, "error", err)
		}
	}
}

func (h *ImportHandler) mimeAllowed(mimeType string) bool {
	if len(h.cfg.AllowedMIMEs) == 0 {
		return strings.HasPrefix(mimeType, "image/")
	}
	for _, allowed := range h.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
