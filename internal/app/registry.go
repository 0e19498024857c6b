package app

import (
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

// Departure names a room a forgotten connection was tracked in, and under which name.
type Departure struct {
	RoomID string
	Name   string
}

type connection struct {
	identity domain.Identity
	sink     Sink
	rooms    map[string]string // roomID -> display name
}

// Registry maps connection ids to their identity, outbound sink and joined rooms.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*connection)}
}

// Register adds a connection. Registering an id twice replaces its identity and sink but keeps its rooms.
func (r *Registry) Register(connID string, identity domain.Identity, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		c.identity = identity
		c.sink = sink
		return
	}
	r.conns[connID] = &connection{
		identity: identity,
		sink:     sink,
		rooms:    make(map[string]string),
	}
}

func (r *Registry) Identity(connID string) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return domain.Identity{}, false
	}
	return c.identity, true
}

func (r *Registry) Sink(connID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok || c.sink == nil {
		return nil, false
	}
	return c.sink, true
}

// Track records that connID occupies a slot named name in roomID. Unknown connections are ignored.
func (r *Registry) Track(connID, roomID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	c.rooms[roomID] = name
	return true
}

// Untrack drops roomID from connID, used when another connection took over the name slot.
func (r *Registry) Untrack(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		delete(c.rooms, roomID)
	}
}

// roomsOf lists the rooms connID is tracked in, sorted.
func (r *Registry) roomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

// Forget removes connID and returns every room it was tracked in. The bool reports whether
// the connection was known; forgetting twice is harmless.
func (r *Registry) Forget(connID string) ([]Departure, bool) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	departures := make([]Departure, 0, len(c.rooms))
	for roomID, name := range c.rooms {
		departures = append(departures, Departure{RoomID: roomID, Name: name})
	}
	sort.Slice(departures, func(i, j int) bool {
		return departures[i].RoomID < departures[j].RoomID
	})
	return departures, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
