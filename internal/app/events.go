package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"live-quiz-service/internal/domain"
)

// EventType names an inbound event.
type EventType string

const (
	EventJoin          EventType = "join"
	EventInitQuestions EventType = "init-questions"
	EventStartQuiz     EventType = "start-quiz"
	EventNextQuestion  EventType = "next-question"
	EventPrevQuestion  EventType = "prev-question"
	EventSubmitAnswer  EventType = "submit-answer"
	EventEndQuiz       EventType = "end-quiz"
	EventDisconnect    EventType = "disconnect"
)

// Outbound event names.
const (
	OutConnected        = "connected"
	OutUserJoined       = "user-joined"
	OutUserLeft         = "user-left"
	OutRoomUsers        = "room-users"
	OutShowQuestion     = "show-question"
	OutSubmissionStatus = "submission-status"
	OutQuizEnded        = "quiz-ended"
	OutAck              = "ack"
)

// names used by existing socket clients
var eventAliases = map[string]EventType{
	"join-room":       EventJoin,
	"Quiz-disconnect": EventDisconnect,
}

var validate = validator.New()

// Event is a parsed inbound event.
type Event struct {
	Type      EventType
	RequestID string
	RoomID    string
	Name      string
	QuizID    string
	Questions []domain.QuestionPayload
}

type joinPayload struct {
	Name   string `json:"name" validate:"required"`
	RoomID string `json:"roomId" validate:"required"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type initQuestionsPayload struct {
	RoomID    string          `json:"roomId" validate:"required"`
	QuizID    string          `json:"quizId"`
	Questions json.RawMessage `json:"questions"`
}

// ParseEvent decodes and validates one inbound event. Any error wraps domain.ErrMalformedEvent
// or domain.ErrUnknownEvent and the event must be dropped.
func ParseEvent(eventType, requestID string, payload json.RawMessage) (Event, error) {
	typ := EventType(eventType)
	if alias, ok := eventAliases[eventType]; ok {
		typ = alias
	}
	evt := Event{Type: typ, RequestID: requestID}
	if isAbsent(payload) {
		payload = json.RawMessage(`{}`)
	}

	switch typ {
	case EventJoin:
		var p joinPayload
		if err := decode(payload, &p); err != nil {
			return evt, err
		}
		evt.Name, evt.RoomID = p.Name, p.RoomID
	case EventInitQuestions:
		var p initQuestionsPayload
		if err := decode(payload, &p); err != nil {
			return evt, err
		}
		evt.RoomID, evt.QuizID = p.RoomID, strings.TrimSpace(p.QuizID)
		if isAbsent(p.Questions) {
			if evt.QuizID == "" {
				return evt, fmt.Errorf("%w: questions or quizId required", domain.ErrMalformedEvent)
			}
			break
		}
		var questions []domain.QuestionPayload
		if err := json.Unmarshal(p.Questions, &questions); err != nil {
			return evt, fmt.Errorf("%w: questions: %v", domain.ErrMalformedEvent, err)
		}
		for i, q := range questions {
			if q == nil {
				return evt, fmt.Errorf("%w: question %d is null", domain.ErrMalformedEvent, i)
			}
		}
		evt.Questions = questions
	case EventStartQuiz, EventNextQuestion, EventPrevQuestion, EventSubmitAnswer, EventEndQuiz:
		var p roomPayload
		if err := decode(payload, &p); err != nil {
			return evt, err
		}
		evt.RoomID = p.RoomID
	case EventDisconnect:
	default:
		return evt, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, eventType)
	}
	return evt, nil
}

func decode(payload json.RawMessage, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	trimStrings(v)
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	return nil
}

func trimStrings(v any) {
	switch p := v.(type) {
	case *joinPayload:
		p.Name, p.RoomID = strings.TrimSpace(p.Name), strings.TrimSpace(p.RoomID)
	case *roomPayload:
		p.RoomID = strings.TrimSpace(p.RoomID)
	case *initQuestionsPayload:
		p.RoomID = strings.TrimSpace(p.RoomID)
	}
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
