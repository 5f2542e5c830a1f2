package session

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"edutest-system/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another user")
)

// QuestionLoader resolves a fully-qualified test path to its ordered
// question set.
type QuestionLoader interface {
	LoadTestByPath(boardID, standardID, subjectID, chapterID, testID uint) (*models.Test, []models.Question, error)
}

// ResultStore persists completed sessions.
type ResultStore interface {
	SaveResult(result *models.TestResult) error
	ApplyResultToUser(userID uint, score int, finishedAt time.Time) error
}

// SnapshotCache keeps live-session snapshots and per-user result history
// in Redis so a reconnecting client can recover state cheaply.
type SnapshotCache interface {
	SetSessionSnapshot(sessionID string, snapshot []byte) error
	GetSessionSnapshot(sessionID string) ([]byte, error)
	DeleteSessionSnapshot(sessionID string) error
	PushRecentResult(userID uint, result *models.TestResult) error
}

// Notifier pushes countdown and completion events to connected clients.
type Notifier interface {
	SessionTick(sessionID string, remainingMs int64)
	SessionWarning(sessionID string, message string)
	SessionCompleted(sessionID string, data interface{})
}

type Service struct {
	loader   QuestionLoader
	store    ResultStore
	cache    SnapshotCache
	notifier Notifier

	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	now func() time.Time
}

// liveSession serializes all access to one session. The done channel
// stops the countdown goroutine when the session turns terminal.
type liveSession struct {
	mu       sync.Mutex
	sess     *Session
	done     chan struct{}
	stopOnce sync.Once
}

func (ls *liveSession) stop() {
	ls.stopOnce.Do(func() { close(ls.done) })
}

func NewService(loader QuestionLoader, store ResultStore, cache SnapshotCache, notifier Notifier) *Service {
	return &Service{
		loader:   loader,
		store:    store,
		cache:    cache,
		notifier: notifier,
		sessions: make(map[uuid.UUID]*liveSession),
		now:      time.Now,
	}
}

// Start loads the question set for the addressed test and opens a new
// session. A load failure leaves no session behind. A test with zero
// questions yields an already-completed session flagged empty.
func (s *Service) Start(userID, boardID, standardID, subjectID, chapterID, testID uint) (*View, error) {
	test, questions, err := s.loader.LoadTestByPath(boardID, standardID, subjectID, chapterID, testID)
	if err != nil {
		log.Printf("Error loading test %d for user %d: %v", testID, userID, err)
		return nil, err
	}

	allotted := time.Duration(test.AllottedSeconds) * time.Second
	sess := New(userID, test.ID, questions, allotted, s.now())

	ls := &liveSession{sess: sess, done: make(chan struct{})}
	s.mu.Lock()
	s.sessions[sess.ID] = ls
	s.mu.Unlock()

	if sess.State == StateActive {
		go s.runCountdown(ls)
	} else {
		ls.stop()
	}

	s.saveSnapshot(sess)
	log.Printf("Started session %s for user %d on test %d (%d questions)", sess.ID, userID, test.ID, len(questions))
	return s.view(sess), nil
}

// Get serves the session view. Sessions no longer held in memory (after
// a process restart) are read back from their Redis snapshot, so a
// reconnecting client still sees its state and remaining time; mutations
// on such sessions are not resumed.
func (s *Service) Get(sessionID uuid.UUID, userID uint) (*View, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return s.getFromSnapshot(sessionID, userID)
	}
	if ls.sess.UserID != userID {
		return nil, ErrForbidden
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return s.view(ls.sess), nil
}

func (s *Service) getFromSnapshot(sessionID uuid.UUID, userID uint) (*View, error) {
	data, err := s.cache.GetSessionSnapshot(sessionID.String())
	if err != nil {
		return nil, ErrSessionNotFound
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("Error decoding snapshot for session %s: %v", sessionID, err)
		return nil, ErrSessionNotFound
	}
	if snap.UserID != userID {
		return nil, ErrForbidden
	}

	v := &View{
		ID:             snap.ID,
		State:          snap.State,
		Reason:         snap.Reason,
		Recording:      snap.Recording,
		Empty:          snap.Empty,
		Position:       snap.Position,
		TotalQuestions: snap.QuestionCount,
		BackgroundMs:   snap.BackgroundMs,
	}
	if snap.State == StateActive {
		remaining := snap.Deadline.Sub(s.now())
		if remaining < 0 {
			remaining = 0
		}
		v.RemainingMs = remaining.Milliseconds()
		if snap.Position < len(snap.Answers) {
			answer := snap.Answers[snap.Position]
			v.Answer = &answer
		}
	}
	return v, nil
}

// SetAnswer records the answer for the current question. Repeated calls
// overwrite the previous value.
func (s *Service) SetAnswer(sessionID uuid.UUID, userID uint, value string) (*View, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.sess.SetAnswer(value); err != nil {
		return nil, err
	}
	s.saveSnapshot(ls.sess)
	return s.view(ls.sess), nil
}

// Advance moves to the next question. On the last question it completes
// the session and runs recording before returning.
func (s *Service) Advance(sessionID uuid.UUID, userID uint) (*View, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	completed, err := ls.sess.Advance(s.now())
	if err != nil {
		return nil, err
	}
	if completed {
		s.record(ls)
	}
	s.saveSnapshot(ls.sess)
	return s.view(ls.sess), nil
}

func (s *Service) Retreat(sessionID uuid.UUID, userID uint) (*View, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := ls.sess.Retreat(); err != nil {
		return nil, err
	}
	s.saveSnapshot(ls.sess)
	return s.view(ls.sess), nil
}

// Finish completes the session on explicit user action. Finishing an
// already-completed session is a no-op; the countdown racing a manual
// finish can never record twice.
func (s *Service) Finish(sessionID uuid.UUID, userID uint) (*View, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.sess.Complete(s.now(), ReasonFinished) {
		s.record(ls)
		s.saveSnapshot(ls.sess)
	}
	return s.view(ls.sess), nil
}

// Lifecycle handles the client's background/foreground transitions. The
// returned warn flag is set when the client comes back after more than
// the warning threshold. Backgrounding never pauses the countdown.
func (s *Service) Lifecycle(sessionID uuid.UUID, userID uint, background bool) (*View, bool, error) {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	warn := false
	if background {
		ls.sess.EnterBackground(s.now())
	} else {
		warn = ls.sess.EnterForeground(s.now())
		if warn {
			s.notifier.SessionWarning(ls.sess.ID.String(), "prolonged background activity detected")
		}
	}
	s.saveSnapshot(ls.sess)
	return s.view(ls.sess), warn, nil
}

// Abandon drops the session without persisting anything. There is no
// partial-credit save.
func (s *Service) Abandon(sessionID uuid.UUID, userID uint) error {
	ls, err := s.lookup(sessionID, userID)
	if err != nil {
		return err
	}

	ls.stop()
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if err := s.cache.DeleteSessionSnapshot(sessionID.String()); err != nil {
		log.Printf("Error deleting snapshot for session %s: %v", sessionID, err)
	}
	log.Printf("Session %s abandoned by user %d", sessionID, userID)
	return nil
}

func (s *Service) lookup(sessionID uuid.UUID, userID uint) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ls.sess.UserID != userID {
		return nil, ErrForbidden
	}
	return ls, nil
}

// runCountdown ticks once per second. The cadence only affects how often
// clients hear from us; correctness comes from recomputing the remaining
// time against the fixed deadline on every tick.
func (s *Service) runCountdown(ls *liveSession) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ls.done:
			return
		case <-ticker.C:
			s.tick(ls)
		}
	}
}

func (s *Service) tick(ls *liveSession) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.sess.State != StateActive {
		return
	}

	remaining := ls.sess.Remaining(s.now())
	s.notifier.SessionTick(ls.sess.ID.String(), remaining.Milliseconds())

	if remaining == 0 {
		if ls.sess.Complete(s.now(), ReasonExpired) {
			s.record(ls)
			s.saveSnapshot(ls.sess)
		}
	}
}

// record runs the scoring and persistence step. Callers hold ls.mu and
// have already won the Complete transition, so this runs exactly once
// per session. A persistence failure marks the recording failed but the
// session stays terminal; there is no automatic retry, and the scored
// summary remains readable in memory.
func (s *Service) record(ls *liveSession) {
	ls.stop()
	sess := ls.sess

	if sess.Empty {
		s.notifier.SessionCompleted(sess.ID.String(), s.view(sess))
		return
	}

	sess.Recording = RecordingPending
	summary := sess.Score(sess.FinishedAt)

	result := &models.TestResult{
		SessionID:          sess.ID.String(),
		UserID:             sess.UserID,
		TestID:             sess.TestID,
		Correct:            summary.Correct,
		TotalQuestions:     summary.TotalQuestions,
		Percentage:         summary.Percentage,
		StartedAt:          sess.StartedAt,
		FinishedAt:         sess.FinishedAt,
		TimeTakenMs:        summary.TimeTaken.Milliseconds(),
		AllottedMs:         sess.Deadline.Sub(sess.StartedAt).Milliseconds(),
		BackgroundActivity: sess.BackgroundMs > 0,
		BackgroundMs:       sess.BackgroundMs,
	}
	if err := result.SetSnapshot(sess.ResultQuestions()); err != nil {
		log.Printf("Error building snapshot for session %s: %v", sess.ID, err)
		sess.Recording = RecordingFailed
		s.notifier.SessionCompleted(sess.ID.String(), s.view(sess))
		return
	}

	if err := s.store.SaveResult(result); err != nil {
		log.Printf("Error saving result for session %s: %v", sess.ID, err)
		sess.Recording = RecordingFailed
		s.notifier.SessionCompleted(sess.ID.String(), s.view(sess))
		return
	}

	if err := s.store.ApplyResultToUser(sess.UserID, summary.Percentage, sess.FinishedAt); err != nil {
		log.Printf("Error updating aggregates for user %d: %v", sess.UserID, err)
		sess.Recording = RecordingFailed
		s.notifier.SessionCompleted(sess.ID.String(), s.view(sess))
		return
	}

	sess.Recording = RecordingDone

	if err := s.cache.PushRecentResult(sess.UserID, result); err != nil {
		log.Printf("Error caching result for user %d: %v", sess.UserID, err)
	}

	s.notifier.SessionCompleted(sess.ID.String(), s.view(sess))
	log.Printf("Recorded session %s: %d/%d (%d%%)", sess.ID, summary.Correct, summary.TotalQuestions, summary.Percentage)
}

// View is the client-facing shape of a session. The correct answers are
// never included while the session is active.
type View struct {
	ID             string              `json:"id"`
	State          State               `json:"state"`
	Reason         CompletionReason    `json:"reason,omitempty"`
	Recording      RecordingState      `json:"recording,omitempty"`
	Empty          bool                `json:"empty,omitempty"`
	Position       int                 `json:"position"`
	TotalQuestions int                 `json:"total_questions"`
	RemainingMs    int64               `json:"remaining_ms"`
	BackgroundMs   int64               `json:"background_ms"`
	Question       *models.QuestionDTO `json:"question,omitempty"`
	Answer         *Answer             `json:"answer,omitempty"`
	Summary        *Summary            `json:"summary,omitempty"`
}

func (s *Service) view(sess *Session) *View {
	v := &View{
		ID:             sess.ID.String(),
		State:          sess.State,
		Reason:         sess.Reason,
		Recording:      sess.Recording,
		Empty:          sess.Empty,
		Position:       sess.Position,
		TotalQuestions: len(sess.Questions),
		BackgroundMs:   sess.BackgroundMs,
	}

	switch sess.State {
	case StateActive:
		v.RemainingMs = sess.Remaining(s.now()).Milliseconds()
		dto := sess.Current().ToDTO(false)
		v.Question = &dto
		answer := sess.Answers[sess.Position]
		v.Answer = &answer
	case StateCompleted:
		if !sess.Empty {
			summary := sess.Score(sess.FinishedAt)
			v.Summary = &summary
		}
	}
	return v
}

// snapshot is the Redis-persisted shape of a session. Questions are not
// embedded; the question set is cached separately per test.
type snapshot struct {
	ID            string           `json:"id"`
	UserID        uint             `json:"user_id"`
	TestID        uint             `json:"test_id"`
	State         State            `json:"state"`
	Reason        CompletionReason `json:"reason,omitempty"`
	Recording     RecordingState   `json:"recording,omitempty"`
	Empty         bool             `json:"empty,omitempty"`
	Position      int              `json:"position"`
	QuestionCount int              `json:"question_count"`
	Answers       []Answer         `json:"answers"`
	StartedAt     time.Time        `json:"started_at"`
	Deadline      time.Time        `json:"deadline"`
	FinishedAt    time.Time        `json:"finished_at,omitempty"`
	BackgroundMs  int64            `json:"background_ms"`
}

func (s *Service) saveSnapshot(sess *Session) {
	snap := snapshot{
		ID:            sess.ID.String(),
		UserID:        sess.UserID,
		TestID:        sess.TestID,
		State:         sess.State,
		Reason:        sess.Reason,
		Recording:     sess.Recording,
		Empty:         sess.Empty,
		Position:      sess.Position,
		QuestionCount: len(sess.Questions),
		Answers:       sess.Answers,
		StartedAt:     sess.StartedAt,
		Deadline:      sess.Deadline,
		FinishedAt:    sess.FinishedAt,
		BackgroundMs:  sess.BackgroundMs,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("Error marshaling snapshot for session %s: %v", sess.ID, err)
		return
	}
	if err := s.cache.SetSessionSnapshot(sess.ID.String(), data); err != nil {
		log.Printf("Error saving snapshot for session %s: %v", sess.ID, err)
	}
}
