package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ImportStatus captures background job lifecycle states.
type ImportStatus string

const (
	ImportStatusQueued     ImportStatus = "QUEUED"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// ImportFile describes one uploaded image owned by a job from creation
// until the worker unlinks it.
type ImportFile struct {
	Path             string `json:"path"`
	MimeType         string `json:"mimeType"`
	OriginalFilename string `json:"originalFilename"`
}

// ImportJobParams stores job inputs persisted as JSONB.
type ImportJobParams struct {
	SessionID string       `json:"sessionId"`
	Files     []ImportFile `json:"files"`
}

// ImportJob is the persisted record of one extraction job.
type ImportJob struct {
	ID           string          `db:"id" json:"id"`
	SessionID    string          `db:"session_id" json:"session_id"`
	Params       ImportJobParams `db:"params" json:"params"`
	Status       ImportStatus    `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ImportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal import job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ImportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ImportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ImportJobParams", value)
	}
	if len(data) == 0 {
		*p = ImportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal import job params: %w", err)
	}
	return nil
}
