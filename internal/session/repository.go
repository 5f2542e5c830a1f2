package session

import (
	"log"
	"time"

	"gorm.io/gorm"

	"edutest-system/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveResult appends a result row. Results are write-once; nothing ever
// updates them.
func (r *Repository) SaveResult(result *models.TestResult) error {
	err := r.db.Create(result).Error
	if err != nil {
		log.Printf("Error saving result for session %s: %v", result.SessionID, err)
		return err
	}
	return nil
}

// ApplyResultToUser folds one finished session into the user's running
// aggregates in a single UPDATE. The increments and the recomputed
// average are evaluated inside the database, so two sessions for the
// same user can never lose each other's contribution.
func (r *Repository) ApplyResultToUser(userID uint, score int, finishedAt time.Time) error {
	err := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"completed_tests": gorm.Expr("completed_tests + 1"),
			"total_score":     gorm.Expr("total_score + ?", score),
			"avg_score":       gorm.Expr("(total_score + ?)::float / (completed_tests + 1)", score),
			"last_test_date":  finishedAt,
		}).Error
	if err != nil {
		log.Printf("Error updating aggregates for user %d: %v", userID, err)
		return err
	}
	return nil
}

func (r *Repository) GetResultBySession(sessionID string) (*models.TestResult, error) {
	var result models.TestResult
	err := r.db.Where("session_id = ?", sessionID).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *Repository) GetResultsByUser(userID uint) ([]models.TestResult, error) {
	var results []models.TestResult
	err := r.db.Where("user_id = ?", userID).
		Order("finished_at desc").
		Find(&results).Error
	if err != nil {
		log.Printf("Error getting results for user %d: %v", userID, err)
		return nil, err
	}
	return results, nil
}
