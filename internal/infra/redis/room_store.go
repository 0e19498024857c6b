package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/infra/memory"
)

const defaultMarkerTimeout = 2 * time.Second

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms themselves stay in the embedded in-memory store; room state never leaves the process.
//   - Redis carries a liveness marker per room (quiz:room:{id}) so operators and other
//     instances can see which rooms this node hosts. Markers are refreshed by Heartbeat.
//   - Marker writes happen outside the store lock and are bounded by markerTimeout.
type RoomStore struct {
	*memory.RoomStore

	client        *redis.Client
	ttl           time.Duration
	markerTimeout time.Duration
	log           *slog.Logger
}

func NewRoomStore(client *redis.Client, ttl time.Duration, log *slog.Logger) *RoomStore {
	return &RoomStore{
		RoomStore:     memory.NewRoomStore(),
		client:        client,
		ttl:           ttl,
		markerTimeout: defaultMarkerTimeout,
		log:           log,
	}
}

func (s *RoomStore) GetOrCreate(roomID string) *app.Room {
	room, created := s.LoadOrCreate(roomID)
	if !created {
		return room
	}
	// best-effort liveness marker
	ctx, cancel := context.WithTimeout(context.Background(), s.markerTimeout)
	defer cancel()
	if err := s.client.Set(ctx, RoomKey(roomID), room.CreatedAt().Unix(), s.ttl).Err(); err != nil {
		s.log.Warn("room marker not written", "room", roomID, "error", err)
	}
	return room
}

// Refresh extends the marker of every local room in one pipeline.
func (s *RoomStore) Refresh(ctx context.Context) error {
	ids := s.IDs()
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Expire(ctx, RoomKey(id), s.ttl)
		pipe.SetNX(ctx, RoomKey(id), time.Now().Unix(), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Heartbeat calls Refresh every interval until ctx is done.
func (s *RoomStore) Heartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("room markers not refreshed", "rooms", s.Len(), "error", err)
			}
		}
	}
}

// RoomKey is the liveness marker key of a room.
func RoomKey(roomID string) string {
	return "quiz:room:" + roomID
}
