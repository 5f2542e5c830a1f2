package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// TestResult is the write-once record produced when a session completes.
// Results live in a flat table keyed by user and test, not under the
// catalog hierarchy. A row is never updated after creation.
type TestResult struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	SessionID string         `json:"session_id" gorm:"uniqueIndex;size:36;not null"`
	UserID    uint           `json:"user_id" gorm:"not null;index"`
	TestID    uint           `json:"test_id" gorm:"not null;index"`

	Correct        int `json:"correct" gorm:"not null"`
	TotalQuestions int `json:"total_questions" gorm:"not null"`
	Percentage     int `json:"percentage" gorm:"not null"`

	StartedAt   time.Time `json:"started_at" gorm:"not null"`
	FinishedAt  time.Time `json:"finished_at" gorm:"not null"`
	TimeTakenMs int64     `json:"time_taken_ms" gorm:"not null"`
	AllottedMs  int64     `json:"allotted_ms" gorm:"not null"`

	BackgroundActivity bool  `json:"background_activity" gorm:"not null;default:false"`
	BackgroundMs       int64 `json:"background_ms" gorm:"not null;default:0"`

	// Snapshot of the questions and the user's answers for later review,
	// stored as a JSON text column.
	SnapshotRaw string `json:"-" gorm:"type:text;not null"`
}

// ResultQuestion is one entry of the review snapshot embedded in a result.
type ResultQuestion struct {
	QuestionID   uint         `json:"question_id"`
	Text         string       `json:"text"`
	QuestionType QuestionType `json:"question_type"`
	Answer       string       `json:"answer"`
	Answered     bool         `json:"answered"`
	Correct      *bool        `json:"correct,omitempty"` // nil for non-objective questions
	Explanation  string       `json:"explanation,omitempty"`
}

func (r *TestResult) SetSnapshot(qs []ResultQuestion) error {
	data, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	r.SnapshotRaw = string(data)
	return nil
}

func (r *TestResult) Snapshot() ([]ResultQuestion, error) {
	var qs []ResultQuestion
	if err := json.Unmarshal([]byte(r.SnapshotRaw), &qs); err != nil {
		return nil, err
	}
	return qs, nil
}
