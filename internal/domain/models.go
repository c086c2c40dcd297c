package domain

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Answer  string   `json:"answer"` // ID of the correct option
}

// Quiz is an ordered collection of questions plus the attempt time budget.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Duration  int        `json:"duration"` // seconds; defaults to 600 if zero
	Questions []Question `json:"questions"`
}

// AnswerRecord is one question's entry in an attempt: the selected option
// (empty = visited but unanswered) and the score derived from it.
type AnswerRecord struct {
	OptionID string `json:"answer"`
	Score    int    `json:"score"`
}

// AttemptMap maps zero-based question index to its answer record. An index is
// present only once the user has visited or answered that question.
type AttemptMap map[int]AnswerRecord

// SessionState is the persistable snapshot of one quiz attempt. A
// RemainingSeconds of -1 marks a state that was never initialized for this
// quiz, so stores use it to distinguish fresh starts from resumes.
type SessionState struct {
	QuizID           string     `json:"quizId"`
	BoardID          string     `json:"boardId"`
	CurrentIndex     int        `json:"currentIndex"`
	RemainingSeconds int        `json:"remainingSeconds"`
	Attempt          AttemptMap `json:"attempt"`
	IsSubmitted      bool       `json:"isSubmitted"`
}

// SubmissionFlags accompany a finished attempt to the result submitter.
type SubmissionFlags struct {
	IsOver   bool `json:"isOver"`
	IsActive bool `json:"isActive"`
}

// Result is the submitter's durable record of a scored attempt.
type Result struct {
	ID             string  `json:"id"`
	QuizID         string  `json:"quizId"`
	BoardID        string  `json:"boardId"`
	TotalScore     int     `json:"totalScore"`
	CorrectAnswers int     `json:"correctAnswers"`
	WrongAnswers   int     `json:"wrongAnswers"`
	TotalAttempted int     `json:"totalAttempted"`
	Accuracy       float64 `json:"accuracy"`
	ElapsedSeconds int     `json:"elapsedSeconds"`
}

// Clone returns a deep copy so snapshots never alias live session state.
func (m AttemptMap) Clone() AttemptMap {
	if m == nil {
		return nil
	}
	out := make(AttemptMap, len(m))
	for idx, rec := range m {
		out[idx] = rec
	}
	return out
}

// AttemptedCount reports how many records carry a non-empty answer.
func (m AttemptMap) AttemptedCount() int {
	count := 0
	for _, rec := range m {
		if rec.OptionID != "" {
			count++
		}
	}
	return count
}
