package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/domain"
)

// SessionStore is the durable key-value adapter that mirrors attempt state so
// a reload resumes mid-attempt (in-memory, Redis, etc).
type SessionStore interface {
	Load(ctx context.Context, key string) (domain.SessionState, bool, error)
	Save(ctx context.Context, key string, state domain.SessionState) error
	Delete(ctx context.Context, key string) error
}

// QuizRepository loads quiz content (from cache/backing store/remote API).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultSubmitter accepts a finished attempt and returns the durable result.
type ResultSubmitter interface {
	SubmitAttempt(ctx context.Context, quizID, boardID string, attempt domain.AttemptMap, elapsedSeconds int, flags domain.SubmissionFlags) (domain.Result, error)
}

// Options tune the attempt service; zero values select the defaults.
type Options struct {
	GraceTicks      int
	DefaultDuration int // fallback time budget in seconds
	SubmitRetries   int // attempts for the forced submit after time expiry
	RetryBackoff    time.Duration
	Logger          zerolog.Logger
}

// AttemptService orchestrates attempt sessions against the three external
// collaborators. One live Session exists per (quiz, board) key; every
// mutation writes the snapshot through to the session store.
type AttemptService struct {
	store           SessionStore
	quizzes         QuizRepository
	results         ResultSubmitter
	graceTicks      int
	defaultDuration int
	submitRetries   int
	retryBackoff    time.Duration
	log             zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewAttemptService(store SessionStore, quizzes QuizRepository, results ResultSubmitter, opts Options) *AttemptService {
	if opts.GraceTicks <= 0 {
		opts.GraceTicks = DefaultGraceTicks
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDurationSeconds
	}
	if opts.SubmitRetries <= 0 {
		opts.SubmitRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	return &AttemptService{
		store:           store,
		quizzes:         quizzes,
		results:         results,
		graceTicks:      opts.GraceTicks,
		defaultDuration: opts.DefaultDuration,
		submitRetries:   opts.SubmitRetries,
		retryBackoff:    opts.RetryBackoff,
		log:             opts.Logger,
		sessions:        make(map[string]*Session),
	}
}

// SessionKey derives the store key for a (quiz, board) pair.
func SessionKey(quizID, boardID string) string {
	return quizID + ":" + boardID
}

// Start begins or resumes an attempt. Content is loaded first; a persisted
// state whose remaining-seconds is not -1 is resumed verbatim, the clock
// included. Calling Start for an already-live session returns its snapshot,
// which covers transport reconnects.
func (s *AttemptService) Start(ctx context.Context, quizID, boardID string) (domain.SessionState, error) {
	key := SessionKey(quizID, boardID)

	s.mu.RLock()
	existing, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return existing.Snapshot(), nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return domain.SessionState{}, err
		}
		return domain.SessionState{}, fmt.Errorf("%w: quiz %s: %v", domain.ErrContentUnavailable, quizID, err)
	}
	if len(quiz.Questions) == 0 {
		return domain.SessionState{}, fmt.Errorf("%w: quiz %s has no questions", domain.ErrContentUnavailable, quizID)
	}

	saved, found, err := s.store.Load(ctx, key)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load session %s: %w", key, err)
	}

	session := NewSession(quiz, boardID, s.graceTicks, s.defaultDuration)
	if found {
		session.Initialize(&saved)
	} else {
		session.Initialize(nil)
	}

	s.mu.Lock()
	if raced, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return raced.Snapshot(), nil
	}
	s.sessions[key] = session
	s.mu.Unlock()

	snapshot := session.Snapshot()
	if err := s.store.Save(ctx, key, snapshot); err != nil {
		return domain.SessionState{}, fmt.Errorf("persist session %s: %w", key, err)
	}
	return snapshot, nil
}

// Tick advances the session clock by one second and handles the forced
// submit when the grace window runs out. The caller drives it once per real
// second while the session is InProgress or Expiring.
func (s *AttemptService) Tick(ctx context.Context, key string) (TickOutcome, error) {
	session, err := s.session(key)
	if err != nil {
		return TickOutcome{}, err
	}

	out := session.Tick()
	if err := s.persist(ctx, key, session); err != nil {
		return out, err
	}

	if out.ForceSubmit {
		if _, err := s.forcedSubmit(ctx, key, session); err != nil {
			s.log.Error().Err(err).Str("session", key).Msg("forced submit failed, will retry on next tick")
			return out, nil
		}
		out.Phase = PhaseSubmitted
	}
	return out, nil
}

// SelectAnswer records an answer for the current question and persists the
// updated attempt immediately. Persistence failures are surfaced, never
// swallowed: a locally recorded answer must not be lost silently.
func (s *AttemptService) SelectAnswer(ctx context.Context, key, optionID string) (domain.SessionState, error) {
	session, err := s.session(key)
	if err != nil {
		return domain.SessionState{}, err
	}
	if err := session.SelectAnswer(optionID); err != nil {
		return domain.SessionState{}, err
	}
	if err := s.persist(ctx, key, session); err != nil {
		return domain.SessionState{}, err
	}
	return session.Snapshot(), nil
}

// GoToQuestion jumps to a question by index, marking the one being left as
// visited.
func (s *AttemptService) GoToQuestion(ctx context.Context, key string, index int) (domain.SessionState, error) {
	return s.navigate(ctx, key, func(session *Session) error {
		return session.GoToQuestion(index)
	})
}

// Next advances to the following question; a no-op at the last one.
func (s *AttemptService) Next(ctx context.Context, key string) (domain.SessionState, error) {
	return s.navigate(ctx, key, (*Session).Next)
}

// Previous steps back; a no-op at the first question.
func (s *AttemptService) Previous(ctx context.Context, key string) (domain.SessionState, error) {
	return s.navigate(ctx, key, (*Session).Previous)
}

// Submit completes the attempt and hands it to the result submitter. On
// success the session becomes Submitted and its persisted state is cleared;
// on failure everything stays as it was so the caller can retry.
func (s *AttemptService) Submit(ctx context.Context, key string) (domain.Result, error) {
	session, err := s.session(key)
	if err != nil {
		return domain.Result{}, err
	}
	return s.submit(ctx, key, session)
}

// Abandon drops the attempt without submitting and clears its persisted
// state.
func (s *AttemptService) Abandon(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear session %s: %w", key, err)
	}
	return nil
}

// Snapshot returns the current state of a live session.
func (s *AttemptService) Snapshot(key string) (domain.SessionState, error) {
	session, err := s.session(key)
	if err != nil {
		return domain.SessionState{}, err
	}
	return session.Snapshot(), nil
}

// AttemptedCount reports how many questions of a live session were answered.
func (s *AttemptService) AttemptedCount(key string) (int, error) {
	session, err := s.session(key)
	if err != nil {
		return 0, err
	}
	return session.AttemptedCount(), nil
}

// Session exposes the live session for transports that render questions.
func (s *AttemptService) Session(key string) (*Session, error) {
	return s.session(key)
}

func (s *AttemptService) session(key string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *AttemptService) navigate(ctx context.Context, key string, move func(*Session) error) (domain.SessionState, error) {
	session, err := s.session(key)
	if err != nil {
		return domain.SessionState{}, err
	}
	if err := move(session); err != nil {
		return domain.SessionState{}, err
	}
	if err := s.persist(ctx, key, session); err != nil {
		return domain.SessionState{}, err
	}
	return session.Snapshot(), nil
}

func (s *AttemptService) persist(ctx context.Context, key string, session *Session) error {
	if err := s.store.Save(ctx, key, session.Snapshot()); err != nil {
		return fmt.Errorf("persist session %s: %w", key, err)
	}
	return nil
}

func (s *AttemptService) submit(ctx context.Context, key string, session *Session) (domain.Result, error) {
	attempt, elapsed, err := session.BeginSubmit()
	if err != nil {
		return domain.Result{}, err
	}
	// The filled-in visited records are part of the attempt now; keep the
	// store in sync before the network round trip.
	if err := s.persist(ctx, key, session); err != nil {
		session.FinishSubmit(false)
		return domain.Result{}, err
	}

	snapshot := session.Snapshot()
	result, err := s.results.SubmitAttempt(ctx, snapshot.QuizID, snapshot.BoardID, attempt, elapsed, domain.SubmissionFlags{
		IsOver:   true,
		IsActive: false,
	})
	if err != nil {
		session.FinishSubmit(false)
		if errors.Is(err, domain.ErrUnauthorized) {
			return domain.Result{}, err
		}
		return domain.Result{}, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	session.FinishSubmit(true)
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	if err := s.store.Delete(ctx, key); err != nil {
		// The submitter owns the attempt now; a stale key only costs storage.
		s.log.Warn().Err(err).Str("session", key).Msg("failed to clear submitted session")
	}
	return result, nil
}

// forcedSubmit retries the time-expiry submission a bounded number of times;
// the user can no longer interact to retry manually.
func (s *AttemptService) forcedSubmit(ctx context.Context, key string, session *Session) (domain.Result, error) {
	var lastErr error
	for attempt := 0; attempt < s.submitRetries; attempt++ {
		result, err := s.submit(ctx, key, session)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, domain.ErrSubmitInFlight) || errors.Is(err, domain.ErrSessionClosed) {
			return domain.Result{}, err
		}
		lastErr = err
		s.log.Warn().Err(err).Str("session", key).Int("attempt", attempt+1).Msg("forced submit attempt failed")
		select {
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		case <-time.After(s.retryBackoff):
		}
	}
	return domain.Result{}, lastErr
}
