package app

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

type nopSink struct{}

func (nopSink) Send(Envelope) error { return nil }

func TestRegistryTrackAndForget(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connID := uuid.NewString()

	// Given a registered connection in two rooms
	registry.Register(connID, domain.Identity{}, nopSink{})
	req.True(registry.Track(connID, "R2", "Alice"))
	req.True(registry.Track(connID, "R1", "Al"))
	req.Equal([]string{"R1", "R2"}, registry.roomsOf(connID))

	// When it is forgotten
	departures, known := registry.Forget(connID)

	// Then every room is reported with the name used there
	req.True(known)
	req.Equal([]Departure{{RoomID: "R1", Name: "Al"}, {RoomID: "R2", Name: "Alice"}}, departures)
	req.Zero(registry.Len())
	_, ok := registry.Sink(connID)
	req.False(ok)

	// And forgetting again is harmless
	departures, known = registry.Forget(connID)
	req.False(known)
	req.Nil(departures)
}

func TestRegistryUntrack(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("A1", domain.Identity{}, nopSink{})
	registry.Track("A1", "R1", "Alice")
	registry.Untrack("A1", "R1")

	departures, known := registry.Forget("A1")
	req.True(known)
	req.Empty(departures)
}

func TestRegistryIgnoresUnknownConnections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.False(registry.Track("ghost", "R1", "Casper"))
	registry.Untrack("ghost", "R1")
	req.Nil(registry.roomsOf("ghost"))
	_, ok := registry.Identity("ghost")
	req.False(ok)
}

func TestRegistryReregisterKeepsRooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	registry.Register("c1", domain.Identity{}, nopSink{})
	registry.Track("c1", "R1", "Host")
	registry.Register("c1", domain.Identity{Subject: "admin-1", Admin: true}, nopSink{})

	identity, ok := registry.Identity("c1")
	req.True(ok)
	req.True(identity.Admin)
	req.Equal([]string{"R1"}, registry.roomsOf("c1"))
}
