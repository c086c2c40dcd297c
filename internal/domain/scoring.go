package domain

// Scoring policy: fixed points per question, applied against the current
// selection every time it changes. Scores are recomputed, never accumulated.
const (
	ScoreCorrect    = 4
	ScoreIncorrect  = -1
	ScoreUnanswered = 0
)

// ScoreFor applies the scoring rule to a selection.
func ScoreFor(selectedOptionID, correctOptionID string) int {
	switch {
	case selectedOptionID == "":
		return ScoreUnanswered
	case selectedOptionID == correctOptionID:
		return ScoreCorrect
	default:
		return ScoreIncorrect
	}
}
