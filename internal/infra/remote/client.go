package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Client talks to the upstream quiz platform: quiz content via
// GET /quiz/{id} and attempt submission via PATCH /board/details/{boardId}.
// It implements both app.QuizRepository and app.ResultSubmitter. The bearer
// token is treated as opaque; issuing and refreshing it belongs to the
// authentication collaborator.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// envelope is the upstream response wrapper: {"message": ..., "data": ...}.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitRequest struct {
	IsOver         bool              `json:"isOver"`
	IsActive       bool              `json:"isActive"`
	QuizAttempt    domain.AttemptMap `json:"quizAttempt"`
	ElapsedSeconds int               `json:"elapsedSeconds"`
}

// GetQuiz implements app.QuizRepository.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/quiz/"+quizID, nil, &quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// SubmitAttempt implements app.ResultSubmitter.
func (c *Client) SubmitAttempt(ctx context.Context, _, boardID string, attempt domain.AttemptMap, elapsedSeconds int, flags domain.SubmissionFlags) (domain.Result, error) {
	req := submitRequest{
		IsOver:         flags.IsOver,
		IsActive:       flags.IsActive,
		QuizAttempt:    attempt,
		ElapsedSeconds: elapsedSeconds,
	}
	var result domain.Result
	if err := c.do(ctx, http.MethodPatch, "/board/details/"+boardID, req, &result); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(method, path, resp.StatusCode); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func classifyStatus(method, path string, status int) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case status == http.StatusNotFound:
		return domain.ErrQuizNotFound
	default:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, status)
	}
}
