package catalog

import (
	"log"

	"edutest-system/internal/models"
)

// Store is the catalog persistence the service needs.
type Store interface {
	GetBoards() ([]models.Board, error)
	GetStandards(boardID uint) ([]models.Standard, error)
	GetSubjects(standardID uint) ([]models.Subject, error)
	GetChapters(subjectID uint) ([]models.Chapter, error)
	GetTests(chapterID uint) ([]models.Test, error)
	GetTestByPath(boardID, standardID, subjectID, chapterID, testID uint) (*models.Test, error)
	GetTestQuestions(testID uint) ([]models.Question, error)
	CreateQuestion(question *models.Question) error
}

// QuestionCache holds question sets keyed by test.
type QuestionCache interface {
	GetQuestionSet(testID uint) ([]models.Question, error)
	SetQuestionSet(testID uint, questions []models.Question) error
	InvalidateQuestionSet(testID uint) error
}

type Service struct {
	repo  Store
	cache QuestionCache
}

func NewService(repo Store, cache QuestionCache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) GetBoards() ([]models.Board, error) {
	return s.repo.GetBoards()
}

func (s *Service) GetStandards(boardID uint) ([]models.Standard, error) {
	return s.repo.GetStandards(boardID)
}

func (s *Service) GetSubjects(standardID uint) ([]models.Subject, error) {
	return s.repo.GetSubjects(standardID)
}

func (s *Service) GetChapters(subjectID uint) ([]models.Chapter, error) {
	return s.repo.GetChapters(subjectID)
}

func (s *Service) GetTests(chapterID uint) ([]models.Test, error) {
	return s.repo.GetTests(chapterID)
}

// LoadTestByPath resolves the addressed test and its ordered question
// set, trying the cache before the database. Any failure here means no
// session gets created.
func (s *Service) LoadTestByPath(boardID, standardID, subjectID, chapterID, testID uint) (*models.Test, []models.Question, error) {
	test, err := s.repo.GetTestByPath(boardID, standardID, subjectID, chapterID, testID)
	if err != nil {
		return nil, nil, err
	}

	questions, err := s.cache.GetQuestionSet(test.ID)
	if err == nil {
		return test, questions, nil
	}

	questions, err = s.repo.GetTestQuestions(test.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.cache.SetQuestionSet(test.ID, questions); err != nil {
		log.Printf("Error caching questions for test %d: %v", test.ID, err)
	}
	return test, questions, nil
}

// GetTestQuestions serves the question set for browsing, through the
// same cache as the session loader.
func (s *Service) GetTestQuestions(testID uint) ([]models.Question, error) {
	questions, err := s.cache.GetQuestionSet(testID)
	if err == nil {
		return questions, nil
	}

	questions, err = s.repo.GetTestQuestions(testID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetQuestionSet(testID, questions); err != nil {
		log.Printf("Error caching questions for test %d: %v", testID, err)
	}
	return questions, nil
}

// AddQuestion stores a new question and drops the test's cached question
// set so the next load sees it. A stale cache is tolerated briefly if
// the invalidation fails; sessions already running keep the set they
// loaded.
func (s *Service) AddQuestion(question *models.Question) error {
	if err := s.repo.CreateQuestion(question); err != nil {
		return err
	}
	if err := s.cache.InvalidateQuestionSet(question.TestID); err != nil {
		log.Printf("Error invalidating questions for test %d: %v", question.TestID, err)
	}
	return nil
}
