package session

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"edutest-system/internal/models"
)

// State is the lifecycle tag of a test session. A session is created in
// StateActive (or directly in StateCompleted when the test has no
// questions) and never leaves StateCompleted once it gets there.
type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
)

// RecordingState tracks the persistence step inside the completed state.
// It never transitions the session itself; a failed recording leaves the
// session terminal.
type RecordingState string

const (
	RecordingNone    RecordingState = ""
	RecordingPending RecordingState = "recording"
	RecordingDone    RecordingState = "recorded"
	RecordingFailed  RecordingState = "record_failed"
)

// CompletionReason says what pushed the session into the terminal state.
type CompletionReason string

const (
	ReasonFinished CompletionReason = "finished"
	ReasonExpired  CompletionReason = "expired"
	ReasonEmpty    CompletionReason = "empty"
)

// BackgroundWarnThreshold is how long the client may stay backgrounded
// before the return to foreground triggers a warning. Background time is
// never refunded against the deadline regardless of this threshold.
const BackgroundWarnThreshold = 10 * time.Second

var (
	ErrNotActive      = errors.New("session is not active")
	ErrAnswerRequired = errors.New("answer required before advancing")
)

// Answer distinguishes "never answered" from an explicit empty answer.
type Answer struct {
	Value    string `json:"value"`
	Answered bool   `json:"answered"`
}

// Session holds one attempt at a test by one user. All mutating methods
// are guarded by the state tag; callers are expected to serialize access
// (the service wraps each session in its own mutex).
//
// Invariants: len(Answers) == len(Questions) at all times, and 0 <=
// Position < len(Questions) while the session is active. The deadline is
// fixed at creation and never recomputed.
type Session struct {
	ID        uuid.UUID
	UserID    uint
	TestID    uint
	Questions []models.Question
	Answers   []Answer
	Position  int

	StartedAt time.Time
	Deadline  time.Time

	State      State
	Reason     CompletionReason
	Recording  RecordingState
	Empty      bool
	FinishedAt time.Time

	// Background tracking. backgroundedAt is zero while foregrounded.
	backgroundedAt time.Time
	BackgroundMs   int64
}

// New creates a session over an already-loaded question set. The deadline
// is start + allotted and is never moved afterwards. A test with zero
// questions produces a session that is already completed and flagged
// empty; no result is ever recorded for it.
func New(userID, testID uint, questions []models.Question, allotted time.Duration, now time.Time) *Session {
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		TestID:    testID,
		Questions: questions,
		Answers:   make([]Answer, len(questions)),
		StartedAt: now,
		Deadline:  now.Add(allotted),
		State:     StateActive,
	}
	if len(questions) == 0 {
		s.State = StateCompleted
		s.Reason = ReasonEmpty
		s.Empty = true
		s.FinishedAt = now
	}
	return s
}

// SetAnswer overwrites the answer at the current position. Calling it
// repeatedly for the same position is fine; the last value wins.
func (s *Session) SetAnswer(value string) error {
	if s.State != StateActive {
		return ErrNotActive
	}
	s.Answers[s.Position] = Answer{Value: value, Answered: true}
	return nil
}

// Current returns the question at the current position. Only meaningful
// while the session is active.
func (s *Session) Current() models.Question {
	return s.Questions[s.Position]
}

// Advance moves to the next question, or completes the session when
// called on the last one. Objective questions require a non-empty answer
// first; in that case the position is left unchanged and
// ErrAnswerRequired is returned. The reported completion is what the
// caller uses to kick off recording.
func (s *Session) Advance(now time.Time) (completed bool, err error) {
	if s.State != StateActive {
		return false, ErrNotActive
	}
	q := s.Current()
	if q.Objective() {
		a := s.Answers[s.Position]
		if !a.Answered || a.Value == "" {
			return false, ErrAnswerRequired
		}
	}
	if s.Position == len(s.Questions)-1 {
		return s.Complete(now, ReasonFinished), nil
	}
	s.Position++
	return false, nil
}

// Retreat moves back one question. At position 0 it is a no-op. Answers
// already given are kept.
func (s *Session) Retreat() error {
	if s.State != StateActive {
		return ErrNotActive
	}
	if s.Position > 0 {
		s.Position--
	}
	return nil
}

// Complete moves the session into the terminal state. It is idempotent:
// the first call wins and returns true, any later call is a no-op
// returning false. This is the guard against the countdown and a manual
// finish racing into a double submission.
func (s *Session) Complete(now time.Time, reason CompletionReason) bool {
	if s.State == StateCompleted {
		return false
	}
	// A session still backgrounded at completion keeps accruing up to
	// the completion instant.
	if !s.backgroundedAt.IsZero() {
		s.BackgroundMs += now.Sub(s.backgroundedAt).Milliseconds()
		s.backgroundedAt = time.Time{}
	}
	s.State = StateCompleted
	s.Reason = reason
	s.FinishedAt = now
	return true
}

// Remaining computes time left from the fixed deadline. It is
// self-correcting: however many ticks were missed, the value at wall
// time now is always max(0, deadline - now).
func (s *Session) Remaining(now time.Time) time.Duration {
	if s.State != StateActive {
		return 0
	}
	remaining := s.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EnterBackground records the instant the client lost foreground focus.
// Repeated background events without an intervening foreground keep the
// original timestamp.
func (s *Session) EnterBackground(now time.Time) {
	if s.State != StateActive {
		return
	}
	if s.backgroundedAt.IsZero() {
		s.backgroundedAt = now
	}
}

// EnterForeground accumulates the elapsed background time and reports
// whether it crossed the warning threshold. The deadline is deliberately
// not extended; backgrounding during a timed session costs the user that
// time.
func (s *Session) EnterForeground(now time.Time) (warn bool) {
	if s.backgroundedAt.IsZero() {
		return false
	}
	elapsed := now.Sub(s.backgroundedAt)
	s.backgroundedAt = time.Time{}
	if elapsed < 0 {
		return false
	}
	s.BackgroundMs += elapsed.Milliseconds()
	return elapsed >= BackgroundWarnThreshold
}

// Summary is the scored outcome of a session.
type Summary struct {
	Correct        int           `json:"correct"`
	TotalQuestions int           `json:"total_questions"`
	Percentage     int           `json:"percentage"`
	TimeTaken      time.Duration `json:"time_taken_ms"`
}

// Score grades the session. Only objective (mcq) questions are checked,
// by exact match against the stored correct answer; descriptive and
// geometry questions count toward the total but never toward correct.
// Time taken runs from the true start to now, so finishing early records
// the real effort rather than the allotted duration.
func (s *Session) Score(now time.Time) Summary {
	correct := 0
	for i, q := range s.Questions {
		if !q.Objective() {
			continue
		}
		a := s.Answers[i]
		if a.Answered && a.Value == q.CorrectAnswer {
			correct++
		}
	}

	total := len(s.Questions)
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(correct) / float64(total) * 100))
	}

	return Summary{
		Correct:        correct,
		TotalQuestions: total,
		Percentage:     percentage,
		TimeTaken:      now.Sub(s.StartedAt),
	}
}

// ResultQuestions builds the per-question review snapshot stored on the
// persisted result.
func (s *Session) ResultQuestions() []models.ResultQuestion {
	out := make([]models.ResultQuestion, len(s.Questions))
	for i, q := range s.Questions {
		a := s.Answers[i]
		rq := models.ResultQuestion{
			QuestionID:   q.ID,
			Text:         q.Text,
			QuestionType: q.QuestionType,
			Answer:       a.Value,
			Answered:     a.Answered,
			Explanation:  q.Explanation,
		}
		if q.Objective() {
			correct := a.Answered && a.Value == q.CorrectAnswer
			rq.Correct = &correct
		}
		out[i] = rq
	}
	return out
}
