package catalog

import (
	"log"

	"gorm.io/gorm"

	"edutest-system/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBoards() ([]models.Board, error) {
	var boards []models.Board
	err := r.db.Order("name asc").Find(&boards).Error
	return boards, err
}

func (r *Repository) GetStandards(boardID uint) ([]models.Standard, error) {
	var standards []models.Standard
	err := r.db.Where("board_id = ?", boardID).Order("name asc").Find(&standards).Error
	return standards, err
}

func (r *Repository) GetSubjects(standardID uint) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.Where("standard_id = ?", standardID).Order("name asc").Find(&subjects).Error
	return subjects, err
}

func (r *Repository) GetChapters(subjectID uint) ([]models.Chapter, error) {
	var chapters []models.Chapter
	err := r.db.Where("subject_id = ?", subjectID).Order("name asc").Find(&chapters).Error
	return chapters, err
}

func (r *Repository) GetTests(chapterID uint) ([]models.Test, error) {
	var tests []models.Test
	err := r.db.Where("chapter_id = ?", chapterID).Order("name asc").Find(&tests).Error
	return tests, err
}

// GetTestByPath resolves a test through its full board/standard/subject/
// chapter chain. A test addressed with a mismatched ancestor anywhere in
// the path does not resolve.
func (r *Repository) GetTestByPath(boardID, standardID, subjectID, chapterID, testID uint) (*models.Test, error) {
	var test models.Test
	err := r.db.
		Joins("JOIN chapters ON chapters.id = tests.chapter_id").
		Joins("JOIN subjects ON subjects.id = chapters.subject_id").
		Joins("JOIN standards ON standards.id = subjects.standard_id").
		Where("tests.id = ? AND tests.chapter_id = ? AND chapters.subject_id = ? AND subjects.standard_id = ? AND standards.board_id = ?",
			testID, chapterID, subjectID, standardID, boardID).
		First(&test).Error
	if err != nil {
		log.Printf("Error resolving test %d under board %d: %v", testID, boardID, err)
		return nil, err
	}
	return &test, nil
}

// CreateQuestion appends a question to a test. The stored position
// determines the order the question set is served in.
func (r *Repository) CreateQuestion(question *models.Question) error {
	err := r.db.Create(question).Error
	if err != nil {
		log.Printf("Error creating question for test %d: %v", question.TestID, err)
		return err
	}
	return nil
}

// GetTestQuestions returns the question set in its stored position order.
// No client-side reordering is applied anywhere downstream.
func (r *Repository) GetTestQuestions(testID uint) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.Where("test_id = ?", testID).
		Preload("Options").
		Order("position asc").
		Find(&questions).Error
	if err != nil {
		log.Printf("Error getting questions for test %d: %v", testID, err)
		return nil, err
	}
	return questions, nil
}
