package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// WSHandler drives a quiz attempt over a websocket. The client connects with
// quiz/board identifiers, the server starts or resumes the attempt and pushes
// one tick per second; user actions arrive as JSON frames.
type WSHandler struct {
	service      *app.AttemptService
	upgrader     websocket.Upgrader
	tickInterval time.Duration
	log          zerolog.Logger
}

func NewWSHandler(service *app.AttemptService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tickInterval: time.Second,
		log:          log,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	OptionID string `json:"optionId"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// statePayload is the client-facing view of the session. The correct option
// ids never cross the wire.
type statePayload struct {
	Phase            app.Phase       `json:"phase"`
	CurrentIndex     int             `json:"currentIndex"`
	RemainingSeconds int             `json:"remainingSeconds"`
	QuestionCount    int             `json:"questionCount"`
	AttemptedCount   int             `json:"attemptedCount"`
	Attempt          map[int]string  `json:"attempt"` // keyed by question index
	Question         questionPayload `json:"question"`
}

type questionPayload struct {
	ID      string          `json:"id"`
	Prompt  string          `json:"prompt"`
	Options []domain.Option `json:"options"`
}

type tickPayload struct {
	Phase            app.Phase `json:"phase"`
	RemainingSeconds int       `json:"remainingSeconds"`
	GraceLeft        int       `json:"graceLeft"`
}

// ServeWS upgrades the request and runs the attempt loop until the socket
// closes or the attempt is submitted.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	boardID := r.URL.Query().Get("boardId")
	if quizID == "" || boardID == "" {
		http.Error(w, "missing quizId or boardId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	key := app.SessionKey(quizID, boardID)

	if _, err := h.service.Start(ctx, quizID, boardID); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Str("session", key).Msg("ws write error")
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
			return false
		}
	}

	h.pushState(push, key)

	// Drive the session clock while this connection owns the attempt. The
	// driver stops itself as soon as the session leaves an active phase.
	ticker := app.StartTicker(h.tickInterval, func() bool {
		out, err := h.service.Tick(ctx, key)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				h.log.Warn().Err(err).Str("session", key).Msg("tick failed")
			}
			return false
		}
		if !push(outboundMessage[any]{Type: "tick", Payload: tickPayload{
			Phase:            out.Phase,
			RemainingSeconds: out.Remaining,
			GraceLeft:        out.GraceLeft,
		}}) {
			return false
		}
		if out.Phase == app.PhaseSubmitted {
			push(outboundMessage[any]{Type: "submitted", Payload: nil})
			return false
		}
		return true
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if done := h.handleMessage(ctx, key, inbound, push); done {
			break
		}
	}

	close(closeSignals)
	ticker.Stop()
	close(send)
	<-writerDone
}

// handleMessage dispatches one inbound frame; it reports true when the
// attempt is finished and the connection should wind down.
func (h *WSHandler) handleMessage(ctx context.Context, key string, inbound inboundMessage, push func(outboundMessage[any]) bool) bool {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
			return false
		}
		if _, err := h.service.SelectAnswer(ctx, key, payload.OptionID); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}
		h.pushState(push, key)
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid goto payload"}})
			return false
		}
		if _, err := h.service.GoToQuestion(ctx, key, payload.Index); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}
		h.pushState(push, key)
	case "next":
		if _, err := h.service.Next(ctx, key); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}
		h.pushState(push, key)
	case "prev":
		if _, err := h.service.Previous(ctx, key); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}
		h.pushState(push, key)
	case "submit":
		result, err := h.service.Submit(ctx, key)
		if err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}
		push(outboundMessage[any]{Type: "submitted", Payload: result})
		return true
	case "abandon":
		if err := h.service.Abandon(ctx, key); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return false
		}
		push(outboundMessage[any]{Type: "abandoned", Payload: nil})
		return true
	default:
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
	return false
}

func (h *WSHandler) pushState(push func(outboundMessage[any]) bool, key string) {
	session, err := h.service.Session(key)
	if err != nil {
		return
	}
	snapshot := session.Snapshot()
	index, question := session.CurrentQuestion()

	selections := make(map[int]string, len(snapshot.Attempt))
	for i, rec := range snapshot.Attempt {
		selections[i] = rec.OptionID
	}

	push(outboundMessage[any]{Type: "state", Payload: statePayload{
		Phase:            session.Phase(),
		CurrentIndex:     index,
		RemainingSeconds: snapshot.RemainingSeconds,
		QuestionCount:    session.QuestionCount(),
		AttemptedCount:   snapshot.Attempt.AttemptedCount(),
		Attempt:          selections,
		Question: questionPayload{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: question.Options,
		},
	}})
}
