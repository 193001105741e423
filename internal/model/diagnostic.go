package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/kart-io/memoria/pkg/utils/json"
)

// Risk levels reported by the model.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Risk is a model-reported risk. SectionID holds a free-text section title, not a key.
type Risk struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	SectionID string `json:"section_id,omitempty"`
}

// Suggestion is a model-reported action. SectionTitle is free text.
type Suggestion struct {
	Priority     int    `json:"priority"`
	Action       string `json:"action"`
	SectionTitle string `json:"section_title,omitempty"`
}

// SectionScore is the per-section verdict keyed by section title.
type SectionScore struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Diagnostic is one append-only scoring record of a project's document.
type Diagnostic struct {
	ID                string                        `json:"id" gorm:"primaryKey;type:varchar(32)"`
	ProjectID         string                        `json:"project_id" gorm:"type:varchar(32);index:idx_diag_project_time,priority:1;not null"`
	OverallScore      int                           `json:"overall_score"`
	Summary           string                        `json:"summary" gorm:"type:text"`
	Risks             JSON[[]Risk]                  `json:"risks" gorm:"type:text"`
	Suggestions       JSON[[]Suggestion]            `json:"suggestions" gorm:"type:text"`
	SectionScores     JSON[map[string]SectionScore] `json:"section_scores" gorm:"type:text"`
	RequirementsFound JSON[[]string]                `json:"requirements_found" gorm:"type:text"`
	GeneratedAt       time.Time                     `json:"generated_at" gorm:"index:idx_diag_project_time,priority:2"`
	ModelUsed         string                        `json:"model_used" gorm:"type:varchar(128)"`
}

// TableName specifies the table name for Diagnostic.
func (Diagnostic) TableName() string {
	return "memoria_diagnostics"
}

// JSON stores V as a JSON text column.
type JSON[V any] struct {
	V V
}

// NewJSON wraps v.
func NewJSON[V any](v V) JSON[V] {
	return JSON[V]{V: v}
}

// Value implements driver.Valuer.
func (j JSON[V]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (j *JSON[V]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		var zero V
		j.V = zero
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("model: cannot scan %T into JSON column", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &j.V)
}

// MarshalJSON renders the wrapped value directly.
func (j JSON[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

// UnmarshalJSON decodes into the wrapped value.
func (j *JSON[V]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.V)
}
