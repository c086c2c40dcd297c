package app

import (
	"sync"

	"quiz-attempt-service/internal/domain"
)

// Phase is the lifecycle stage of an attempt session.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "inProgress"
	PhaseExpiring   Phase = "expiring"
	PhaseSubmitted  Phase = "submitted"
)

const (
	// DefaultDurationSeconds applies when the quiz carries no time budget.
	DefaultDurationSeconds = 600
	// DefaultGraceTicks is the forced-submission countdown after time expiry.
	DefaultGraceTicks = 5
)

// Session is the state machine for a single quiz attempt. It is pure state
// plus transitions; all persistence and network effects live in
// AttemptService. Events are serialized by the session's own mutex, so a
// timer tick and a user action are never observed concurrently.
type Session struct {
	mu             sync.Mutex
	quiz           domain.Quiz
	boardID        string
	phase          Phase
	currentIndex   int
	remaining      int
	budget         int
	graceTicks     int
	graceLeft      int
	attempt        domain.AttemptMap
	submitInFlight bool
}

// TickOutcome reports what a single clock tick changed.
type TickOutcome struct {
	Phase       Phase
	Remaining   int
	GraceLeft   int
	Expired     bool // this tick moved the session into Expiring
	ForceSubmit bool // grace window exhausted; the caller must submit now
}

// NewSession builds a session in the Loading phase. Initialize moves it to
// InProgress, resuming saved state when one is supplied. defaultDuration is
// the fallback time budget for quizzes that carry none.
func NewSession(quiz domain.Quiz, boardID string, graceTicks, defaultDuration int) *Session {
	if graceTicks <= 0 {
		graceTicks = DefaultGraceTicks
	}
	if defaultDuration <= 0 {
		defaultDuration = DefaultDurationSeconds
	}
	budget := quiz.Duration
	if budget <= 0 {
		budget = defaultDuration
	}
	return &Session{
		quiz:       quiz,
		boardID:    boardID,
		phase:      PhaseLoading,
		remaining:  -1,
		budget:     budget,
		graceTicks: graceTicks,
		attempt:    make(domain.AttemptMap),
	}
}

// Initialize transitions Loading -> InProgress. A saved state with a
// remaining-seconds value other than -1 is resumed verbatim; anything else
// starts a fresh attempt with the full time budget.
func (s *Session) Initialize(saved *domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLoading {
		return
	}

	if saved != nil && saved.RemainingSeconds != -1 && !saved.IsSubmitted {
		s.currentIndex = clamp(saved.CurrentIndex, 0, len(s.quiz.Questions)-1)
		s.remaining = saved.RemainingSeconds
		s.attempt = saved.Attempt.Clone()
		if s.attempt == nil {
			s.attempt = make(domain.AttemptMap)
		}
	} else {
		s.currentIndex = 0
		s.remaining = s.budget
	}

	s.phase = PhaseInProgress
	if s.remaining <= 0 {
		// Resumed after the clock already ran out; restart the grace window.
		s.phase = PhaseExpiring
		s.graceLeft = s.graceTicks
	}
}

// Tick advances the clock by one second. While InProgress it decrements the
// remaining budget, floored at -1; hitting zero starts the grace countdown.
// While Expiring it decrements the grace counter and demands a forced submit
// once that reaches zero. In any other phase it is a no-op.
func (s *Session) Tick() TickOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := TickOutcome{Phase: s.phase, Remaining: s.remaining, GraceLeft: s.graceLeft}
	switch s.phase {
	case PhaseInProgress:
		if s.remaining > -1 {
			s.remaining--
		}
		if s.remaining <= 0 {
			s.phase = PhaseExpiring
			s.graceLeft = s.graceTicks
			out.Expired = true
		}
	case PhaseExpiring:
		if s.graceLeft > 0 {
			s.graceLeft--
		}
		if s.graceLeft == 0 {
			out.ForceSubmit = true
		}
	default:
		return out
	}

	out.Phase = s.phase
	out.Remaining = s.remaining
	out.GraceLeft = s.graceLeft
	return out
}

// SelectAnswer records an answer for the current question. The score is
// recomputed from the scoring rule on every call, so re-selecting a different
// option can never leave a stale score behind.
func (s *Session) SelectAnswer(optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}

	question := s.quiz.Questions[s.currentIndex]
	if !hasOption(question, optionID) {
		return domain.ErrOptionNotFound
	}
	s.attempt[s.currentIndex] = domain.AnswerRecord{
		OptionID: optionID,
		Score:    domain.ScoreFor(optionID, question.Answer),
	}
	return nil
}

// GoToQuestion moves to another question, first marking the one being left as
// visited if it has no record yet. Out-of-range targets are clamped; the
// navigation UI is expected to never produce them.
func (s *Session) GoToQuestion(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	s.markVisitedLocked(s.currentIndex)
	s.currentIndex = clamp(index, 0, len(s.quiz.Questions)-1)
	return nil
}

// Next advances one question; a no-op at the last index.
func (s *Session) Next() error {
	s.mu.Lock()
	index := s.currentIndex + 1
	s.mu.Unlock()
	return s.GoToQuestion(index)
}

// Previous steps back one question; a no-op at index zero.
func (s *Session) Previous() error {
	s.mu.Lock()
	index := s.currentIndex - 1
	s.mu.Unlock()
	return s.GoToQuestion(index)
}

// BeginSubmit validates the phase, fills every never-visited index with an
// empty record so the attempt has exactly one entry per question, and marks a
// submit in flight. It returns the completed attempt and the elapsed seconds.
// A second call before FinishSubmit is rejected, which suppresses double
// delivery to the result submitter.
func (s *Session) BeginSubmit() (domain.AttemptMap, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return nil, 0, err
	}
	if s.submitInFlight {
		return nil, 0, domain.ErrSubmitInFlight
	}

	for i := range s.quiz.Questions {
		s.markVisitedLocked(i)
	}
	s.submitInFlight = true

	elapsed := s.budget
	if s.remaining > 0 {
		elapsed = s.budget - s.remaining
	}
	return s.attempt.Clone(), elapsed, nil
}

// FinishSubmit resolves an in-flight submit. On success the session becomes
// Submitted, which is terminal; on failure it stays in its pre-submit phase
// so the caller may retry without losing progress.
func (s *Session) FinishSubmit(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitInFlight = false
	if ok {
		s.phase = PhaseSubmitted
	}
}

// Snapshot returns a persistable copy of the session state.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionState{
		QuizID:           s.quiz.ID,
		BoardID:          s.boardID,
		CurrentIndex:     s.currentIndex,
		RemainingSeconds: s.remaining,
		Attempt:          s.attempt.Clone(),
		IsSubmitted:      s.phase == PhaseSubmitted,
	}
}

// Phase reports the current lifecycle stage.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// AttemptedCount reports how many questions carry a non-empty answer.
func (s *Session) AttemptedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.AttemptedCount()
}

// CurrentQuestion returns the active question for display.
func (s *Session) CurrentQuestion() (int, domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex, s.quiz.Questions[s.currentIndex]
}

// QuestionCount returns the number of questions in the quiz.
func (s *Session) QuestionCount() int {
	return len(s.quiz.Questions)
}

func (s *Session) mutableLocked() error {
	switch s.phase {
	case PhaseInProgress, PhaseExpiring:
		return nil
	case PhaseSubmitted:
		return domain.ErrSessionClosed
	default:
		return domain.ErrSessionNotFound
	}
}

func (s *Session) markVisitedLocked(index int) {
	if _, ok := s.attempt[index]; !ok {
		s.attempt[index] = domain.AnswerRecord{OptionID: "", Score: domain.ScoreUnanswered}
	}
}

func hasOption(q domain.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
