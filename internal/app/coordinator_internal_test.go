package app

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

type roomMap struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func (m *roomMap) GetOrCreate(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[roomID]; ok {
		return room
	}
	room := NewRoom(roomID)
	m.rooms[roomID] = room
	return room
}

func (m *roomMap) Get(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *roomMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func TestDisconnectWhileJoinWaitsForRoom(t *testing.T) {
	req := require.New(t)
	rooms := &roomMap{rooms: make(map[string]*Room)}
	coord := NewCoordinator(rooms, nil, logs.GetLoggerFromLevel(slog.LevelDebug), nil, Options{})
	coord.Connect("a", domain.Identity{}, nopSink{})

	// Given a join blocked on a busy room
	room := rooms.GetOrCreate("R1")
	room.mu.Lock()
	joined := make(chan error, 1)
	go func() {
		joined <- coord.Handle(context.Background(), "a", Event{Type: EventJoin, Name: "Alice", RoomID: "R1"})
	}()
	time.Sleep(20 * time.Millisecond)

	// When the connection goes away before the join gets the lock
	coord.Disconnect("a")
	room.mu.Unlock()

	// Then the join is refused and leaves no member behind
	select {
	case err := <-joined:
		req.ErrorIs(err, domain.ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("join never returned")
	}
	req.Zero(coord.Registry().Len())
	req.Empty(room.Snapshot().Members)
}

func TestDisconnectAfterTrackRemovesMember(t *testing.T) {
	req := require.New(t)
	rooms := &roomMap{rooms: make(map[string]*Room)}
	coord := NewCoordinator(rooms, nil, logs.GetLoggerFromLevel(slog.LevelDebug), nil, Options{})
	coord.Connect("a", domain.Identity{}, nopSink{})
	coord.Connect("b", domain.Identity{}, nopSink{})
	req.NoError(coord.Handle(context.Background(), "b", Event{Type: EventJoin, Name: "Bob", RoomID: "R1"}))
	req.NoError(coord.Handle(context.Background(), "a", Event{Type: EventJoin, Name: "Alice", RoomID: "R1"}))

	coord.Disconnect("a")

	room, ok := rooms.Get("R1")
	req.True(ok)
	req.Equal([]domain.Member{{Name: "Bob", ConnectionID: "b"}}, room.Snapshot().Members)
}
