package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"edutest-system/internal/models"
)

type fakeLoader struct {
	test      models.Test
	questions []models.Question
	err       error
}

func (l *fakeLoader) LoadTestByPath(boardID, standardID, subjectID, chapterID, testID uint) (*models.Test, []models.Question, error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	return &l.test, l.questions, nil
}

type fakeStore struct {
	mu          sync.Mutex
	saveErr     error
	results     []*models.TestResult
	userUpdates int
}

func (s *fakeStore) SaveResult(result *models.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.results = append(s.results, result)
	return nil
}

func (s *fakeStore) ApplyResultToUser(userID uint, score int, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userUpdates++
	return nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type fakeCache struct {
	mu        sync.Mutex
	snapshots map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string][]byte)}
}

func (c *fakeCache) SetSessionSnapshot(sessionID string, snapshot []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[sessionID] = append([]byte(nil), snapshot...)
	return nil
}

func (c *fakeCache) GetSessionSnapshot(sessionID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot, ok := c.snapshots[sessionID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return snapshot, nil
}

func (c *fakeCache) DeleteSessionSnapshot(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, sessionID)
	return nil
}

func (c *fakeCache) PushRecentResult(uint, *models.TestResult) error { return nil }

type fakeNotifier struct {
	mu          sync.Mutex
	ticks       []int64
	warnings    int
	completions int
}

func (n *fakeNotifier) SessionTick(sessionID string, remainingMs int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ticks = append(n.ticks, remainingMs)
}

func (n *fakeNotifier) SessionWarning(sessionID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings++
}

func (n *fakeNotifier) SessionCompleted(sessionID string, data interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completions++
}

type serviceFixture struct {
	service  *Service
	store    *fakeStore
	cache    *fakeCache
	notifier *fakeNotifier
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(questions []models.Question, allottedSeconds int) *serviceFixture {
	loader := &fakeLoader{
		test:      models.Test{ID: 7, ChapterID: 3, Name: "Algebra", AllottedSeconds: allottedSeconds},
		questions: questions,
	}
	store := &fakeStore{}
	snapshots := newFakeCache()
	notifier := &fakeNotifier{}
	clock := &fakeClock{now: t0}

	service := NewService(loader, store, snapshots, notifier)
	service.now = clock.Now

	return &serviceFixture{service: service, store: store, cache: snapshots, notifier: notifier, clock: clock}
}

func (f *serviceFixture) startSession(t *testing.T) uuid.UUID {
	t.Helper()
	view, err := f.service.Start(1, 1, 1, 1, 3, 7)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	id, err := uuid.Parse(view.ID)
	if err != nil {
		t.Fatalf("invalid session id %q", view.ID)
	}
	return id
}

func TestStartLoadFailureLeavesNoSession(t *testing.T) {
	f := newFixture(nil, 60)
	f.service.loader = &fakeLoader{err: errors.New("backend unavailable")}

	if _, err := f.service.Start(1, 1, 1, 1, 3, 7); err == nil {
		t.Fatal("Start() succeeded despite load failure")
	}
	if len(f.service.sessions) != 0 {
		t.Errorf("sessions registered = %d, want 0", len(f.service.sessions))
	}
}

func TestFinishRecordsExactlyOnce(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a"), mcq(2, 1, "b")}, 60)
	id := f.startSession(t)

	if _, err := f.service.SetAnswer(id, 1, "a"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.service.Finish(id, 1); err != nil {
		t.Fatal(err)
	}
	view, err := f.service.Finish(id, 1)
	if err != nil {
		t.Fatal(err)
	}

	if f.store.saveCount() != 1 {
		t.Errorf("results saved = %d, want exactly 1", f.store.saveCount())
	}
	if f.store.userUpdates != 1 {
		t.Errorf("aggregate updates = %d, want exactly 1", f.store.userUpdates)
	}
	if view.State != StateCompleted || view.Recording != RecordingDone {
		t.Errorf("view = %s/%s, want completed/recorded", view.State, view.Recording)
	}
}

func TestAdvanceThroughLastQuestionRecords(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a"), mcq(2, 1, "b"), descriptive(3, 2)}, 600)
	id := f.startSession(t)

	f.service.SetAnswer(id, 1, "a")
	f.service.Advance(id, 1)
	f.service.SetAnswer(id, 1, "wrong")
	f.service.Advance(id, 1)

	f.clock.Advance(42 * time.Second)
	view, err := f.service.Advance(id, 1) // last question, descriptive
	if err != nil {
		t.Fatal(err)
	}

	if view.State != StateCompleted {
		t.Fatalf("state = %s, want completed", view.State)
	}
	if f.store.saveCount() != 1 {
		t.Fatalf("results saved = %d, want 1", f.store.saveCount())
	}

	result := f.store.results[0]
	if result.Correct != 1 || result.TotalQuestions != 3 {
		t.Errorf("scored %d/%d, want 1/3", result.Correct, result.TotalQuestions)
	}
	if result.Percentage != 33 {
		t.Errorf("percentage = %d, want 33", result.Percentage)
	}
	if result.TimeTakenMs != 42000 {
		t.Errorf("timeTakenMs = %d, want 42000", result.TimeTakenMs)
	}
	if result.AllottedMs != 600000 {
		t.Errorf("allottedMs = %d, want 600000", result.AllottedMs)
	}
	if result.BackgroundActivity {
		t.Error("background activity flagged without any background events")
	}
}

func TestExpiryCompletesAndRecords(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a")}, 60)
	id := f.startSession(t)

	f.service.mu.RLock()
	ls := f.service.sessions[id]
	f.service.mu.RUnlock()

	// Simulate the host process having been suspended well past the
	// deadline: the very next tick must complete the session.
	f.clock.Advance(2 * time.Minute)
	f.service.tick(ls)

	if ls.sess.State != StateCompleted {
		t.Fatalf("state = %s, want completed", ls.sess.State)
	}
	if ls.sess.Reason != ReasonExpired {
		t.Errorf("reason = %s, want %s", ls.sess.Reason, ReasonExpired)
	}
	if f.store.saveCount() != 1 {
		t.Errorf("results saved = %d, want 1", f.store.saveCount())
	}

	// Further ticks are no-ops.
	f.service.tick(ls)
	if f.store.saveCount() != 1 {
		t.Errorf("results saved after extra tick = %d, want 1", f.store.saveCount())
	}
}

func TestExpiryRacingManualFinish(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a")}, 60)
	id := f.startSession(t)

	f.service.mu.RLock()
	ls := f.service.sessions[id]
	f.service.mu.RUnlock()

	f.clock.Advance(61 * time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.service.tick(ls)
	}()
	go func() {
		defer wg.Done()
		f.service.Finish(id, 1)
	}()
	wg.Wait()

	if f.store.saveCount() != 1 {
		t.Fatalf("results saved = %d, want exactly 1", f.store.saveCount())
	}
}

func TestRecordingFailureLeavesSessionTerminal(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a")}, 60)
	f.store.saveErr = errors.New("write rejected")
	id := f.startSession(t)

	view, err := f.service.Finish(id, 1)
	if err != nil {
		t.Fatal(err)
	}

	if view.State != StateCompleted {
		t.Errorf("state = %s, want completed (terminal despite failure)", view.State)
	}
	if view.Recording != RecordingFailed {
		t.Errorf("recording = %s, want %s", view.Recording, RecordingFailed)
	}
	// The scored summary stays readable even though nothing persisted.
	if view.Summary == nil {
		t.Fatal("summary missing after failed recording")
	}

	// No automatic retry: a second finish is a no-op.
	f.store.mu.Lock()
	f.store.saveErr = nil
	f.store.mu.Unlock()
	f.service.Finish(id, 1)
	if f.store.saveCount() != 0 {
		t.Errorf("results saved = %d, want 0 (no retry path)", f.store.saveCount())
	}
}

func TestEmptyTestNotPersisted(t *testing.T) {
	f := newFixture(nil, 60)
	id := f.startSession(t)

	view, err := f.service.Get(id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if view.State != StateCompleted || !view.Empty {
		t.Errorf("view = %s empty=%v, want completed empty session", view.State, view.Empty)
	}
	if f.store.saveCount() != 0 {
		t.Errorf("results saved = %d, want 0 for empty test", f.store.saveCount())
	}
}

func TestLifecycleWarning(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a")}, 300)
	id := f.startSession(t)

	if _, _, err := f.service.Lifecycle(id, 1, true); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(15 * time.Second)
	view, warn, err := f.service.Lifecycle(id, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	if !warn {
		t.Error("no warning after 15s background")
	}
	if view.BackgroundMs != 15000 {
		t.Errorf("backgroundMs = %d, want 15000", view.BackgroundMs)
	}
	if f.notifier.warnings != 1 {
		t.Errorf("warnings pushed = %d, want 1", f.notifier.warnings)
	}

	// Background time shows up on the persisted result.
	f.service.Finish(id, 1)
	if f.store.saveCount() != 1 {
		t.Fatal("result not saved")
	}
	result := f.store.results[0]
	if !result.BackgroundActivity || result.BackgroundMs != 15000 {
		t.Errorf("result background = %v/%dms, want true/15000ms", result.BackgroundActivity, result.BackgroundMs)
	}
}

func TestSessionOwnership(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a")}, 60)
	id := f.startSession(t)

	if _, err := f.service.Get(id, 99); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get() as other user error = %v, want ErrForbidden", err)
	}
	if _, err := f.service.Get(uuid.New(), 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() unknown id error = %v, want ErrSessionNotFound", err)
	}
}

func TestGetFallsBackToSnapshot(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a"), mcq(2, 1, "b")}, 60)
	id := f.startSession(t)

	f.service.SetAnswer(id, 1, "a")
	f.service.Advance(id, 1)

	// Simulate a process restart: the in-memory registry is gone but
	// the Redis snapshot survives.
	f.service.mu.Lock()
	delete(f.service.sessions, id)
	f.service.mu.Unlock()

	f.clock.Advance(20 * time.Second)
	view, err := f.service.Get(id, 1)
	if err != nil {
		t.Fatalf("Get() after registry loss error = %v", err)
	}

	if view.State != StateActive {
		t.Errorf("state = %s, want %s", view.State, StateActive)
	}
	if view.Position != 1 {
		t.Errorf("position = %d, want 1", view.Position)
	}
	if view.TotalQuestions != 2 {
		t.Errorf("total = %d, want 2", view.TotalQuestions)
	}
	// Remaining time still comes from the fixed deadline.
	if view.RemainingMs != 40000 {
		t.Errorf("remainingMs = %d, want 40000", view.RemainingMs)
	}

	// Ownership is enforced on the snapshot path too.
	if _, err := f.service.Get(id, 99); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get() as other user error = %v, want ErrForbidden", err)
	}
}

func TestAbandonDiscardsSession(t *testing.T) {
	f := newFixture([]models.Question{mcq(1, 0, "a")}, 60)
	id := f.startSession(t)

	if err := f.service.Abandon(id, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Get(id, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after abandon error = %v, want ErrSessionNotFound", err)
	}
	if f.store.saveCount() != 0 {
		t.Errorf("results saved = %d, want 0 after abandon", f.store.saveCount())
	}
}
