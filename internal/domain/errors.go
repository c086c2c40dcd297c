package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrContentUnavailable indicates quiz content could not be loaded; fatal to session start.
	ErrContentUnavailable = errors.New("quiz content unavailable")
	// ErrSessionNotFound is returned when no attempt session exists for a key.
	ErrSessionNotFound = errors.New("attempt session not found")
	// ErrSessionClosed is returned for mutations after the attempt was submitted.
	ErrSessionClosed = errors.New("attempt session already submitted")
	// ErrSubmitInFlight is returned when a submit is attempted while one is pending.
	ErrSubmitInFlight = errors.New("submit already in flight")
	// ErrSubmissionFailed indicates a transient submitter failure; the attempt is preserved.
	ErrSubmissionFailed = errors.New("attempt submission failed")
	// ErrOptionNotFound indicates a selected option ID is not among the question's options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrUnauthorized is propagated from collaborators when the caller's token is rejected.
	ErrUnauthorized = errors.New("unauthorized")
)
