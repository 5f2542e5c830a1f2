package models

import (
	"time"

	"gorm.io/gorm"
)

// Catalog hierarchy: Board -> Standard -> Subject -> Chapter -> Test.
// Tests are always addressed through the full five-level path.

type Board struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	Name      string         `json:"name" gorm:"not null;unique"`
	Standards []Standard     `json:"standards,omitempty" gorm:"foreignKey:BoardID"`
}

type Standard struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	BoardID   uint           `json:"board_id" gorm:"not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	Subjects  []Subject      `json:"subjects,omitempty" gorm:"foreignKey:StandardID"`
}

type Subject struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	StandardID uint           `json:"standard_id" gorm:"not null;index"`
	Name       string         `json:"name" gorm:"not null"`
	Chapters   []Chapter      `json:"chapters,omitempty" gorm:"foreignKey:SubjectID"`
}

type Chapter struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	SubjectID uint           `json:"subject_id" gorm:"not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	Tests     []Test         `json:"tests,omitempty" gorm:"foreignKey:ChapterID"`
}

type Test struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	ChapterID       uint           `json:"chapter_id" gorm:"not null;index"`
	Name            string         `json:"name" gorm:"not null"`
	AllottedSeconds int            `json:"allotted_seconds" gorm:"not null"`
	Questions       []Question     `json:"questions,omitempty" gorm:"foreignKey:TestID"`
}

// QuestionType tags how a question is answered and whether it can be
// machine-scored. Only mcq questions carry options and a correct answer.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionDescriptive QuestionType = "descriptive"
	QuestionGeometry    QuestionType = "geometry"
)

type Question struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	TestID        uint           `json:"test_id" gorm:"not null;index"`
	Position      int            `json:"position" gorm:"not null"`
	Text          string         `json:"text" gorm:"not null"`
	QuestionType  QuestionType   `json:"question_type" gorm:"not null;default:mcq"`
	Options       []Option       `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
	CorrectAnswer string         `json:"correct_answer"`
	Explanation   string         `json:"explanation"`
	ImageURL      string         `json:"image_url"`
}

// Objective reports whether the question has a machine-checkable answer.
func (q Question) Objective() bool {
	return q.QuestionType == QuestionMCQ
}

type Option struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	QuestionID uint           `json:"question_id" gorm:"not null;index"`
	Text       string         `json:"text" gorm:"not null"`
}
