package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// JSONDocument is a raw JSON value stored in a PostgreSQL JSONB column
type JSONDocument json.RawMessage

// Value implements driver.Valuer interface
func (j JSONDocument) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface
func (j *JSONDocument) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSONDocument(nil), v...)
	case string:
		*j = JSONDocument(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONDocument", value)
	}
	return nil
}

// ResearchRun is one archived run row
type ResearchRun struct {
	ID           string         `db:"id"`
	Question     string         `db:"question"`
	FinalAnswer  string         `db:"final_answer"`
	Capabilities pq.StringArray `db:"capabilities"`
	RecordCount  int            `db:"record_count"`
	State        JSONDocument   `db:"state"`
	StartedAt    time.Time      `db:"started_at"`
	DurationMs   int64          `db:"duration_ms"`
	CreatedAt    time.Time      `db:"created_at"`
}

// RunSummary is the listing view of an archived run
type RunSummary struct {
	RunID        string    `json:"runId" db:"id"`
	Question     string    `json:"question" db:"question"`
	Capabilities []string  `json:"capabilities" db:"-"`
	RecordCount  int       `json:"recordCount" db:"record_count"`
	StartedAt    time.Time `json:"startedAt" db:"started_at"`
	DurationMs   int64     `json:"durationMs" db:"duration_ms"`
}
