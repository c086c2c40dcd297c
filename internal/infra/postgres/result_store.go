package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

// ResultStore persists finished attempts in Postgres, deriving the totals a
// results page needs (score, correct/wrong/attempted counts, accuracy). It
// implements app.ResultSubmitter for deployments that own their results
// instead of delegating to an upstream board API.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) SubmitAttempt(ctx context.Context, quizID, boardID string, attempt domain.AttemptMap, elapsedSeconds int, flags domain.SubmissionFlags) (domain.Result, error) {
	result := scoreAttempt(attempt)
	result.ID = uuid.NewString()
	result.QuizID = quizID
	result.BoardID = boardID
	result.ElapsedSeconds = elapsedSeconds

	raw, err := json.Marshal(attempt)
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal attempt: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO attempt_results
			(id, quiz_id, board_id, attempt, total_score, correct_answers, wrong_answers, total_attempted, accuracy, elapsed_seconds, is_over, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (board_id) DO UPDATE SET
			attempt = EXCLUDED.attempt,
			total_score = EXCLUDED.total_score,
			correct_answers = EXCLUDED.correct_answers,
			wrong_answers = EXCLUDED.wrong_answers,
			total_attempted = EXCLUDED.total_attempted,
			accuracy = EXCLUDED.accuracy,
			elapsed_seconds = EXCLUDED.elapsed_seconds,
			is_over = EXCLUDED.is_over,
			is_active = EXCLUDED.is_active`,
		result.ID, quizID, boardID, raw, result.TotalScore, result.CorrectAnswers,
		result.WrongAnswers, result.TotalAttempted, result.Accuracy, elapsedSeconds,
		flags.IsOver, flags.IsActive,
	)
	if err != nil {
		return domain.Result{}, fmt.Errorf("store result: %w", err)
	}
	return result, nil
}

// GetResult fetches the stored result for a board.
func (s *ResultStore) GetResult(ctx context.Context, boardID string) (domain.Result, error) {
	var result domain.Result
	err := s.pool.QueryRow(ctx, `
		SELECT id, quiz_id, board_id, total_score, correct_answers, wrong_answers, total_attempted, accuracy, elapsed_seconds
		FROM attempt_results WHERE board_id=$1`, boardID,
	).Scan(&result.ID, &result.QuizID, &result.BoardID, &result.TotalScore,
		&result.CorrectAnswers, &result.WrongAnswers, &result.TotalAttempted,
		&result.Accuracy, &result.ElapsedSeconds)
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	return result, nil
}

func scoreAttempt(attempt domain.AttemptMap) domain.Result {
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
