package domain

import "errors"

var (
	// ErrRoomNotFound is returned for room-scoped events referencing a room nobody created.
	ErrRoomNotFound = errors.New("room not found")
	// ErrMalformedEvent marks an inbound event with missing or mistyped fields.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent marks an inbound event type the engine does not route.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrInvalidTransition is returned when the timeline refuses a host command in its current phase.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNoQuestions indicates a room has nothing to show.
	ErrNoQuestions = errors.New("room has no questions")
	// ErrNotMember is returned when a connection acts in a room it has not joined.
	ErrNotMember = errors.New("connection is not a member of the room")
	// ErrNotHost is returned when a host command comes from someone else.
	ErrNotHost = errors.New("connection is not the room host")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrConnectionClosed is returned by sinks whose connection is gone.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSlowConsumer is returned by sinks whose outbound queue is full.
	ErrSlowConsumer = errors.New("connection outbound queue full")
	// ErrUnauthorized indicates an admin token failed verification.
	ErrUnauthorized = errors.New("unauthorized")
)
