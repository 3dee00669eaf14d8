package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schedsnap/schedsnap-api/internal/models"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

const previewKeyPrefix = "preview:"

// PreviewRepository stores the per-session schedule preview in Redis with a
// fixed TTL. At most one live preview exists per session; Put overwrites
// unconditionally and resets the TTL.
type PreviewRepository struct {
	client   *redis.Client
	validate *validator.Validate
	ttl      time.Duration
	logger   *zap.Logger
}

// NewPreviewRepository constructs a preview repository.
func NewPreviewRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PreviewRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreviewRepository{
		client:   client,
		validate: validator.New(),
		ttl:      ttl,
		logger:   logger,
	}
}

// Put stores the preview for a session, replacing any prior value.
func (r *PreviewRepository) Put(ctx context.Context, sessionID string, preview *models.PreviewResult) error {
	payload, err := json.Marshal(preview)
	if err != nil {
		return fmt.Errorf("marshal preview for session %s: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, previewKey(sessionID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set preview for session %s: %w", sessionID, err)
	}
	return nil
}

// Get returns the stored preview or ErrPreviewNotReady when absent. A stored
// value that fails re-validation is deleted and reported as corrupted rather
// than returned as partial data.
func (r *PreviewRepository) Get(ctx context.Context, sessionID string) (*models.PreviewResult, error) {
	raw, err := r.client.Get(ctx, previewKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrPreviewNotReady
		}
		return nil, fmt.Errorf("redis get preview for session %s: %w", sessionID, err)
	}

	var preview models.PreviewResult
	if err := json.Unmarshal(raw, &preview); err != nil {
		r.discardCorrupted(ctx, sessionID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrPreviewCorrupted.Code, appErrors.ErrPreviewCorrupted.Status, appErrors.ErrPreviewCorrupted.Message)
	}
	if err := r.validate.Struct(&preview); err != nil {
		r.discardCorrupted(ctx, sessionID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrPreviewCorrupted.Code, appErrors.ErrPreviewCorrupted.Status, appErrors.ErrPreviewCorrupted.Message)
	}

	return &preview, nil
}

// Delete removes the preview for a session. Deleting an absent key is not an
// error.
func (r *PreviewRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, previewKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete preview for session %s: %w", sessionID, err)
	}
	return nil
}

func (r *PreviewRepository) discardCorrupted(ctx context.Context, sessionID string, cause error) {
	r.logger.Sugar().Warnw("discarding corrupted preview", "session_id", sessionID, "error", cause)
	if err := r.client.Del(ctx, previewKey(sessionID)).Err(); err != nil {
		r.logger.Sugar().Warnw("failed to delete corrupted preview", "session_id", sessionID, "error", err)
	}
}

func previewKey(sessionID string) string {
	return previewKeyPrefix + sessionID
}
