package catalog

import (
	"errors"
	"testing"

	"edutest-system/internal/models"
)

type fakeStore struct {
	test      models.Test
	questions []models.Question
	loads     int
	created   []*models.Question
}

func (s *fakeStore) GetBoards() ([]models.Board, error)           { return nil, nil }
func (s *fakeStore) GetStandards(uint) ([]models.Standard, error) { return nil, nil }
func (s *fakeStore) GetSubjects(uint) ([]models.Subject, error)   { return nil, nil }
func (s *fakeStore) GetChapters(uint) ([]models.Chapter, error)   { return nil, nil }
func (s *fakeStore) GetTests(uint) ([]models.Test, error)         { return nil, nil }

func (s *fakeStore) GetTestByPath(boardID, standardID, subjectID, chapterID, testID uint) (*models.Test, error) {
	if testID != s.test.ID {
		return nil, errors.New("record not found")
	}
	return &s.test, nil
}

func (s *fakeStore) GetTestQuestions(testID uint) ([]models.Question, error) {
	s.loads++
	return s.questions, nil
}

func (s *fakeStore) CreateQuestion(question *models.Question) error {
	s.created = append(s.created, question)
	return nil
}

type fakeQuestionCache struct {
	sets map[uint][]models.Question
}

func newFakeQuestionCache() *fakeQuestionCache {
	return &fakeQuestionCache{sets: make(map[uint][]models.Question)}
}

func (c *fakeQuestionCache) GetQuestionSet(testID uint) ([]models.Question, error) {
	questions, ok := c.sets[testID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return questions, nil
}

func (c *fakeQuestionCache) SetQuestionSet(testID uint, questions []models.Question) error {
	c.sets[testID] = questions
	return nil
}

func (c *fakeQuestionCache) InvalidateQuestionSet(testID uint) error {
	delete(c.sets, testID)
	return nil
}

func TestLoadTestByPathCacheAside(t *testing.T) {
	store := &fakeStore{
		test:      models.Test{ID: 7, ChapterID: 3, Name: "Algebra", AllottedSeconds: 600},
		questions: []models.Question{{ID: 1, TestID: 7, Position: 0, Text: "q"}},
	}
	questionCache := newFakeQuestionCache()
	service := NewService(store, questionCache)

	// First load misses the cache and hits the store.
	_, questions, err := service.LoadTestByPath(1, 1, 1, 3, 7)
	if err != nil {
		t.Fatalf("LoadTestByPath() error = %v", err)
	}
	if len(questions) != 1 || store.loads != 1 {
		t.Fatalf("questions = %d, loads = %d; want 1, 1", len(questions), store.loads)
	}

	// Second load is served from the cache.
	_, _, err = service.LoadTestByPath(1, 1, 1, 3, 7)
	if err != nil {
		t.Fatalf("LoadTestByPath() error = %v", err)
	}
	if store.loads != 1 {
		t.Errorf("loads = %d after cached read, want 1", store.loads)
	}
}

func TestAddQuestionInvalidatesCache(t *testing.T) {
	store := &fakeStore{
		test:      models.Test{ID: 7, ChapterID: 3, Name: "Algebra", AllottedSeconds: 600},
		questions: []models.Question{{ID: 1, TestID: 7, Position: 0, Text: "q"}},
	}
	questionCache := newFakeQuestionCache()
	service := NewService(store, questionCache)

	// Warm the cache.
	if _, _, err := service.LoadTestByPath(1, 1, 1, 3, 7); err != nil {
		t.Fatal(err)
	}

	question := &models.Question{TestID: 7, Position: 1, Text: "new"}
	if err := service.AddQuestion(question); err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("questions created = %d, want 1", len(store.created))
	}

	// The cached set was dropped, so the next load sees the store again.
	store.questions = append(store.questions, *question)
	_, questions, err := service.LoadTestByPath(1, 1, 1, 3, 7)
	if err != nil {
		t.Fatal(err)
	}
	if store.loads != 2 {
		t.Errorf("loads = %d after invalidation, want 2", store.loads)
	}
	if len(questions) != 2 {
		t.Errorf("questions = %d after invalidation, want 2", len(questions))
	}
}

func TestLoadTestByPathBadPath(t *testing.T) {
	store := &fakeStore{test: models.Test{ID: 7}}
	service := NewService(store, newFakeQuestionCache())

	if _, _, err := service.LoadTestByPath(1, 1, 1, 3, 999); err == nil {
		t.Fatal("LoadTestByPath() resolved a test that is not on the path")
	}
}
