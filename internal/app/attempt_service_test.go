package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

type testEnv struct {
	service *app.AttemptService
	store   *memory.SessionStore
	results *memory.ResultSubmitter
}

func newTestEnv(quiz domain.Quiz) *testEnv {
	store := memory.NewSessionStore()
	results := memory.NewResultSubmitter()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		quiz.ID: quiz,
	}), 5*time.Minute)
	service := app.NewAttemptService(store, quizzes, results, app.Options{
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	return &testEnv{service: service, store: store, results: results}
}

// reopen builds a second service over the same store, simulating a reload.
func (e *testEnv) reopen(quiz domain.Quiz) *app.AttemptService {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		quiz.ID: quiz,
	}), 5*time.Minute)
	return app.NewAttemptService(e.store, quizzes, e.results, app.Options{
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

func TestStartCreatesFreshSession(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	env := newTestEnv(quiz)

	state, err := env.service.Start(ctx, quiz.ID, "board-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.RemainingSeconds != quiz.Duration || state.CurrentIndex != 0 {
		t.Fatalf("unexpected fresh state: %+v", state)
	}

	// Write-through: the store holds the snapshot immediately.
	key := app.SessionKey(quiz.ID, "board-1")
	persisted, found, err := env.store.Load(ctx, key)
	if err != nil || !found {
		t.Fatalf("expected persisted state, found=%v err=%v", found, err)
	}
	if persisted.RemainingSeconds != quiz.Duration {
		t.Fatalf("persisted state mismatch: %+v", persisted)
	}
}

func TestStartUnknownQuizIsContentUnavailable(t *testing.T) {
	env := newTestEnv(threeQuestionQuiz())
	_, err := env.service.Start(context.Background(), "missing", "board-1")
	if !errors.Is(err, domain.ErrContentUnavailable) {
		t.Fatalf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestResumeFidelityAcrossReload(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.service.SelectAnswer(ctx, key, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := env.service.GoToQuestion(ctx, key, 2); err != nil {
		t.Fatalf("goto: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := env.service.Tick(ctx, key); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	before, err := env.service.Snapshot(key)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// New service over the same store: identical index, attempt and clock.
	reloaded := env.reopen(quiz)
	after, err := reloaded.Start(ctx, quiz.ID, "board-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if after.CurrentIndex != before.CurrentIndex {
		t.Fatalf("index lost: got %d want %d", after.CurrentIndex, before.CurrentIndex)
	}
	if after.RemainingSeconds != before.RemainingSeconds {
		t.Fatalf("clock reset on resume: got %d want %d", after.RemainingSeconds, before.RemainingSeconds)
	}
	if len(after.Attempt) != len(before.Attempt) {
		t.Fatalf("attempt lost: got %+v want %+v", after.Attempt, before.Attempt)
	}
	for idx, rec := range before.Attempt {
		if after.Attempt[idx] != rec {
			t.Fatalf("attempt[%d] mismatch: got %+v want %+v", idx, after.Attempt[idx], rec)
		}
	}
}

func TestSubmitDeliversResultAndClearsStore(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.service.SelectAnswer(ctx, key, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := env.service.GoToQuestion(ctx, key, 2); err != nil {
		t.Fatalf("goto: %v", err)
	}
	if _, err := env.service.SelectAnswer(ctx, key, "X"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	result, err := env.service.Submit(ctx, key)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.TotalScore != 3 || result.TotalAttempted != 2 || result.CorrectAnswers != 1 || result.WrongAnswers != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if _, found, _ := env.store.Load(ctx, key); found {
		t.Fatalf("expected persisted session cleared after submit")
	}
	if _, err := env.service.Snapshot(key); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected live session gone, got %v", err)
	}
}

func TestSubmitFailurePreservesStateForRetry(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.service.SelectAnswer(ctx, key, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	env.results.FailNext(1)
	if _, err := env.service.Submit(ctx, key); !errors.Is(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}

	// Local progress survives the failure.
	if _, found, _ := env.store.Load(ctx, key); !found {
		t.Fatalf("persisted state cleared on failed submit")
	}
	state, err := env.service.Snapshot(key)
	if err != nil {
		t.Fatalf("snapshot after failure: %v", err)
	}
	if state.IsSubmitted {
		t.Fatalf("session marked submitted despite failure")
	}

	// Retry succeeds; the submitter saw exactly two delivery attempts.
	if _, err := env.service.Submit(ctx, key); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if env.results.Calls() != 2 {
		t.Fatalf("expected 2 submitter calls, got %d", env.results.Calls())
	}
}

func TestTimeExpiryForcesSubmission(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	quiz.Duration = 2
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.service.SelectAnswer(ctx, key, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// Run the clock out, then the 5-tick grace window.
	var out app.TickOutcome
	var err error
	for i := 0; i < 7; i++ {
		out, err = env.service.Tick(ctx, key)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if out.Phase != app.PhaseSubmitted {
		t.Fatalf("expected Submitted after grace window, got %s", out.Phase)
	}

	result, ok := env.results.Result("board-1")
	if !ok {
		t.Fatalf("expected a stored result after forced submit")
	}
	if result.TotalScore != domain.ScoreCorrect {
		t.Fatalf("unexpected forced-submit score: %+v", result)
	}
	if _, found, _ := env.store.Load(ctx, key); found {
		t.Fatalf("expected persisted session cleared after forced submit")
	}
}

func TestForcedSubmissionRetriesOnFailure(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	quiz.Duration = 1
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	env.results.FailNext(1)
	for i := 0; i < 6; i++ {
		if _, err := env.service.Tick(ctx, key); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	// First delivery failed, the bounded retry delivered on the second try.
	if env.results.Calls() != 2 {
		t.Fatalf("expected 2 delivery attempts, got %d", env.results.Calls())
	}
	if _, ok := env.results.Result("board-1"); !ok {
		t.Fatalf("expected result delivered after retry")
	}
}

func TestAbandonClearsPersistedState(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.service.Abandon(ctx, key); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, found, _ := env.store.Load(ctx, key); found {
		t.Fatalf("expected store cleared after abandon")
	}
	if _, err := env.service.Snapshot(key); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestAttemptedCountQuery(t *testing.T) {
	ctx := context.Background()
	quiz := threeQuestionQuiz()
	env := newTestEnv(quiz)
	key := app.SessionKey(quiz.ID, "board-1")

	if _, err := env.service.Start(ctx, quiz.ID, "board-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.service.SelectAnswer(ctx, key, "A"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := env.service.Next(ctx, key); err != nil {
		t.Fatalf("next: %v", err)
	}

	count, err := env.service.AttemptedCount(key)
	if err != nil {
		t.Fatalf("attempted count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempted, got %d", count)
	}
}
