package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`
	Username  string         `json:"username" gorm:"unique;not null"`
	Email     string         `json:"email" gorm:"unique;not null"`
	Password  string         `json:"-" gorm:"not null"`
	Role      Role           `json:"role" gorm:"not null;default:student"`
	Active    bool           `json:"active" gorm:"not null;default:true"`

	// Running aggregates, updated atomically when a test result is recorded.
	CompletedTests int        `json:"completed_tests" gorm:"not null;default:0"`
	TotalScore     int        `json:"total_score" gorm:"not null;default:0"`
	AvgScore       float64    `json:"avg_score" gorm:"not null;default:0"`
	LastTestDate   *time.Time `json:"last_test_date"`
}
