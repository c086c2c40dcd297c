package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-attempt-service/internal/domain"
)

func TestGetQuizDecodesEnvelope(t *testing.T) {
	quiz := domain.Quiz{
		ID:       "quiz-1",
		Title:    "Sample",
		Duration: 600,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "pick one", Options: []domain.Option{{ID: "o1"}, {ID: "o2"}}, Answer: "o2"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quiz/quiz-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "data": quiz})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	got, err := client.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.ID != "quiz-1" || len(got.Questions) != 1 || got.Questions[0].Answer != "o2" {
		t.Fatalf("quiz mismatch: %+v", got)
	}
}

func TestSubmitAttemptPatchesBoard(t *testing.T) {
	var received submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/board/details/b1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": domain.Result{ID: "r1", TotalScore: 3}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	attempt := domain.AttemptMap{0: {OptionID: "A", Score: 4}, 1: {OptionID: "", Score: 0}}
	result, err := client.SubmitAttempt(context.Background(), "quiz-1", "b1", attempt, 42, domain.SubmissionFlags{IsOver: true, IsActive: false})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.ID != "r1" || result.TotalScore != 3 {
		t.Fatalf("result mismatch: %+v", result)
	}
	if !received.IsOver || received.IsActive {
		t.Fatalf("flags not forwarded: %+v", received)
	}
	if received.ElapsedSeconds != 42 || len(received.QuizAttempt) != 2 {
		t.Fatalf("attempt payload mismatch: %+v", received)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrQuizNotFound},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client := NewClient(server.URL, "")
		_, err := client.GetQuiz(context.Background(), "quiz-1")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		server.Close()
	}

	// 5xx is a plain transient error, not one of the sentinels.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	client := NewClient(server.URL, "")
	_, err := client.GetQuiz(context.Background(), "quiz-1")
	if err == nil || errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected generic error for 500, got %v", err)
	}
}
