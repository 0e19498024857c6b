package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// RoomRepository abstracts where rooms live (in-memory, Redis-marked, etc).
type RoomRepository interface {
	GetOrCreate(roomID string) *Room
	Get(roomID string) (*Room, bool)
	Len() int
}

// QuizRepository loads stored quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Options tunes the coordinator.
type Options struct {
	// RequireHost restricts host commands to admin identities and pins each room to the
	// first admin that initializes it.
	RequireHost bool
}

// Coordinator routes inbound events to room mutations and broadcasts the results.
type Coordinator struct {
	rooms       RoomRepository
	quizzes     QuizRepository
	registry    *Registry
	dispatcher  *Dispatcher
	log         *slog.Logger
	metrics     *metrics.Metrics
	requireHost bool
}

// NewCoordinator wires the engine. quizzes may be nil when rooms are only fed inline questions.
func NewCoordinator(rooms RoomRepository, quizzes QuizRepository, log *slog.Logger, m *metrics.Metrics, opts Options) *Coordinator {
	registry := NewRegistry()
	return &Coordinator{
		rooms:       rooms,
		quizzes:     quizzes,
		registry:    registry,
		dispatcher:  NewDispatcher(registry, log, m),
		log:         log,
		metrics:     m,
		requireHost: opts.RequireHost,
	}
}

func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Connect registers a new connection and greets it with its id.
func (c *Coordinator) Connect(connID string, identity domain.Identity, sink Sink) {
	c.registry.Register(connID, identity, sink)
	c.metrics.ConnectionOpened()
	_ = c.dispatcher.Send(connID, OutConnected, "", domain.Connected{ConnectionID: connID})
}

// Disconnect forgets the connection and announces its departure in every room it occupied.
// It is idempotent and may run concurrently with events for the same rooms.
func (c *Coordinator) Disconnect(connID string) {
	departures, known := c.registry.Forget(connID)
	if !known {
		return
	}
	c.metrics.ConnectionClosed()
	for _, d := range departures {
		room, ok := c.rooms.Get(d.RoomID)
		if !ok {
			continue
		}
		c.leave(room, connID)
	}
}

// Handle applies one inbound event. The returned error says why the event was dropped; it is
// for logs and tests only and is never shown to other participants.
func (c *Coordinator) Handle(ctx context.Context, connID string, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic handling %s: %v", domain.ErrMalformedEvent, evt.Type, r)
			c.log.Error("event handler panicked", "event", evt.Type, "conn", connID, "room", evt.RoomID, "panic", r)
		}
		c.metrics.EventHandled(string(evt.Type), err)
		if err != nil {
			c.log.Debug("event dropped", "event", evt.Type, "conn", connID, "room", evt.RoomID, "reason", err)
		}
	}()

	if evt.Type == EventDisconnect {
		c.Disconnect(connID)
		return nil
	}

	identity, ok := c.registry.Identity(connID)
	if !ok {
		return domain.ErrConnectionClosed
	}

	switch evt.Type {
	case EventJoin:
		return c.join(connID, evt)
	case EventInitQuestions:
		return c.initQuestions(ctx, identity, evt)
	case EventStartQuiz:
		return c.move(identity, evt.RoomID, (*Room).startLocked)
	case EventNextQuestion:
		return c.move(identity, evt.RoomID, (*Room).nextLocked)
	case EventPrevQuestion:
		return c.move(identity, evt.RoomID, (*Room).prevLocked)
	case EventSubmitAnswer:
		return c.submit(connID, evt)
	case EventEndQuiz:
		return c.end(connID, identity, evt)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, evt.Type)
	}
}

// Snapshot returns a read-only view of a room.
func (c *Coordinator) Snapshot(roomID string) (domain.RoomSnapshot, bool) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return room.Snapshot(), true
}

func (c *Coordinator) join(connID string, evt Event) error {
	room := c.getOrCreate(evt.RoomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	// a Disconnect that ran while we waited for the lock has already forgotten connID
	if !c.registry.Track(connID, room.id, evt.Name) {
		return domain.ErrConnectionClosed
	}
	reconnected, previous := room.joinLocked(evt.Name, connID)
	if previous != "" && previous != connID {
		c.registry.Untrack(previous, room.id)
	}

	members := room.membersLocked()
	if reconnected {
		c.log.Info("participant reconnected", "room", room.id, "name", evt.Name, "conn", connID)
	} else {
		c.log.Info("participant joined", "room", room.id, "name", evt.Name, "conn", connID)
		c.dispatcher.Broadcast(room.id, members, OutUserJoined, domain.UserPresence{Name: evt.Name, Action: "joined"})
	}
	c.dispatcher.Broadcast(room.id, members, OutRoomUsers, members)

	// late joiners catch up with whatever is on screen
	switch room.phase {
	case PhaseActive:
		_ = c.dispatcher.Send(connID, OutShowQuestion, "", domain.ShowQuestion{
			Index:    room.current,
			Question: room.questionLocked(room.current),
		})
	case PhaseFinished:
		_ = c.dispatcher.Send(connID, OutQuizEnded, "", nil)
	}
	return nil
}

func (c *Coordinator) initQuestions(ctx context.Context, identity domain.Identity, evt Event) error {
	if c.requireHost && !identity.Admin {
		return domain.ErrNotHost
	}

	questions := evt.Questions
	if questions == nil && evt.QuizID != "" {
		loaded, err := c.loadQuestions(ctx, evt.QuizID)
		if err != nil {
			return err
		}
		questions = loaded
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}

	room := c.getOrCreate(evt.RoomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := c.authorizeLocked(room, identity); err != nil {
		return err
	}
	if err := room.initQuestionsLocked(questions); err != nil {
		return err
	}
	if c.requireHost && room.hostSubject == "" {
		room.hostSubject = identity.Subject
	}
	c.log.Info("questions initialized", "room", room.id, "questions", len(questions))
	return nil
}

func (c *Coordinator) loadQuestions(ctx context.Context, quizID string) ([]domain.QuestionPayload, error) {
	if c.quizzes == nil {
		return nil, domain.ErrQuizNotFound
	}
	quiz, err := c.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	return quiz.Payloads()
}

// move applies one timeline transition and shows the resulting question under the same lock.
func (c *Coordinator) move(identity domain.Identity, roomID string, transition func(*Room) (int, error)) error {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := c.authorizeLocked(room, identity); err != nil {
		return err
	}
	index, err := transition(room)
	if err != nil {
		return err
	}
	c.dispatcher.Broadcast(room.id, room.membersLocked(), OutShowQuestion, domain.ShowQuestion{
		Index:    index,
		Question: room.questionLocked(index),
	})
	c.log.Info("question shown", "room", room.id, "index", index)
	return nil
}

func (c *Coordinator) submit(connID string, evt Event) error {
	room, ok := c.rooms.Get(evt.RoomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, err := room.recordSubmissionLocked(connID); err != nil {
		return err
	}
	c.dispatcher.Broadcast(room.id, room.membersLocked(), OutSubmissionStatus, room.submissionCountLocked())
	return nil
}

func (c *Coordinator) end(connID string, identity domain.Identity, evt Event) error {
	room, ok := c.rooms.Get(evt.RoomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err := c.authorizeLocked(room, identity); err != nil {
		return err
	}
	room.endLocked()
	c.dispatcher.Broadcast(room.id, room.membersLocked(), OutQuizEnded, nil)
	if evt.RequestID != "" {
		_ = c.dispatcher.Send(connID, OutAck, evt.RequestID, domain.Ack{Success: true})
	}
	c.log.Info("quiz ended", "room", room.id)
	return nil
}

func (c *Coordinator) leave(room *Room, connID string) {
	room.mu.Lock()
	defer room.mu.Unlock()

	member, wasMember, hadSubmission := room.removeConnectionLocked(connID)
	members := room.membersLocked()
	if wasMember {
		c.log.Info("participant left", "room", room.id, "name", member.Name, "conn", connID)
		c.dispatcher.Broadcast(room.id, members, OutUserLeft, domain.UserPresence{Name: member.Name, Action: "left"})
		c.dispatcher.Broadcast(room.id, members, OutRoomUsers, members)
	}
	if room.phase == PhaseActive && (wasMember || hadSubmission) {
		c.dispatcher.Broadcast(room.id, members, OutSubmissionStatus, room.submissionCountLocked())
	}
}

func (c *Coordinator) authorizeLocked(room *Room, identity domain.Identity) error {
	if !c.requireHost {
		return nil
	}
	if !identity.Admin {
		return domain.ErrNotHost
	}
	if room.hostSubject != "" && room.hostSubject != identity.Subject {
		return domain.ErrNotHost
	}
	return nil
}

func (c *Coordinator) getOrCreate(roomID string) *Room {
	room := c.rooms.GetOrCreate(roomID)
	c.metrics.SetRooms(c.rooms.Len())
	return room
}

// IsDropped reports whether err is one of the expected reasons for ignoring an event, as opposed
// to an infrastructure failure worth a louder log line.
func IsDropped(err error) bool {
	return errors.Is(err, domain.ErrMalformedEvent) ||
		errors.Is(err, domain.ErrUnknownEvent) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrNoQuestions) ||
		errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrNotMember) ||
		errors.Is(err, domain.ErrNotHost) ||
		errors.Is(err, domain.ErrConnectionClosed)
}
