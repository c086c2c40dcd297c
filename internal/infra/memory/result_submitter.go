package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// ResultSubmitter records finished attempts in memory and derives the same
// totals a real results backend would. FailNext injects transient failures so
// tests can exercise the at-least-once submission path.
type ResultSubmitter struct {
	mu       sync.Mutex
	results  map[string]domain.Result
	failNext int
	calls    int
}

func NewResultSubmitter() *ResultSubmitter {
	return &ResultSubmitter{results: make(map[string]domain.Result)}
}

// FailNext makes the following n submissions fail with ErrSubmissionFailed.
func (r *ResultSubmitter) FailNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
}

// Calls reports how many submissions were attempted, failures included.
func (r *ResultSubmitter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Result returns the stored result for a board, if any.
func (r *ResultSubmitter) Result(boardID string) (domain.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[boardID]
	return res, ok
}

func (r *ResultSubmitter) SubmitAttempt(_ context.Context, quizID, boardID string, attempt domain.AttemptMap, elapsedSeconds int, _ domain.SubmissionFlags) (domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failNext > 0 {
		r.failNext--
		return domain.Result{}, domain.ErrSubmissionFailed
	}

	result := ScoreAttempt(attempt)
	result.ID = uuid.NewString()
	result.QuizID = quizID
	result.BoardID = boardID
	result.ElapsedSeconds = elapsedSeconds
	r.results[boardID] = result
	return result, nil
}

// ScoreAttempt derives totals from a completed attempt map.
func ScoreAttempt(attempt domain.AttemptMap) domain.Result {
	result := domain.Result{}
	for _, rec := range attempt {
		result.TotalScore += rec.Score
		if rec.OptionID == "" {
			continue
		}
		result.TotalAttempted++
		if rec.Score > 0 {
			result.CorrectAnswers++
		} else {
			result.WrongAnswers++
		}
	}
	if result.TotalAttempted > 0 {
		result.Accuracy = float64(result.CorrectAnswers) / float64(result.TotalAttempted) * 100
	}
	return result
}
