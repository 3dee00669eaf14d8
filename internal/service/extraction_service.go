package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/schedsnap/schedsnap-api/internal/models"
	"github.com/schedsnap/schedsnap-api/pkg/config"
	appErrors "github.com/schedsnap/schedsnap-api/pkg/errors"
)

const extractionPrompt = `You are reading a photo of a university course schedule.
Return ONLY a JSON object with this exact shape, no prose:
{
  "termStartDate": "YYYY-MM-DD or null",
  "termEndDate": "YYYY-MM-DD or null",
  "events": [
    {
      "courseCode": "string",
      "courseName": "string or null",
      "sectionDetails": "string or null",
      "location": "string or null",
      "days": ["Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"],
      "startTime": "H:MM AM/PM",
      "endTime": "H:MM AM/PM"
    }
  ]
}
Include every distinct recurring class meeting visible in the image.`

// ExtractionService wraps a single vision-language model call per image.
// Retry policy lives in the job queue, not here.
type ExtractionService struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *zap.Logger
}

// NewExtractionService builds a Gemini-backed extraction client.
func NewExtractionService(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*ExtractionService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.1)

	return &ExtractionService{client: client, model: model, logger: logger}, nil
}

// Extract runs one model call over raw image bytes and returns the
// unvalidated structured payload.
func (s *ExtractionService) Extract(ctx context.Context, data []byte, mimeType string) (*models.RawExtraction, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image data is empty")
	}
	if mimeType == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image media type is required")
	}

	resp, err := s.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(extractionPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	var raw models.RawExtraction
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrExtractionFormat.Code, appErrors.ErrExtractionFormat.Status, appErrors.ErrExtractionFormat.Message)
	}

	return &raw, nil
}

// Close releases the underlying API client.
func (s *ExtractionService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// responseText flattens candidate parts, signalling blocked or empty model
// output distinctly from malformed output.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", appErrors.Clone(appErrors.ErrExtractionBlocked, "model returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", appErrors.Clone(appErrors.ErrExtractionBlocked,
			fmt.Sprintf("model blocked the request: %s", resp.PromptFeedback.BlockReason.String()))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		reason := "no candidates"
		if len(resp.Candidates) > 0 {
			reason = resp.Candidates[0].FinishReason.String()
		}
		return "", appErrors.Clone(appErrors.ErrExtractionBlocked,
			fmt.Sprintf("model returned empty output: %s", reason))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", appErrors.Clone(appErrors.ErrExtractionBlocked, "model returned no text parts")
	}
	return sb.String(), nil
}

// stripCodeFences trims a markdown code fence the model occasionally wraps
// around its JSON despite the response MIME type.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
