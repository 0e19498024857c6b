package redis

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRoomStoreSetsMarker(t *testing.T) {
	req := require.New(t)
	mr := miniredis.RunT(t)
	store := NewRoomStore(newClient(mr), time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))

	room := store.GetOrCreate("R1")
	req.True(mr.Exists("quiz:room:R1"))
	req.Equal(time.Minute, mr.TTL("quiz:room:R1"))

	// the same room comes back without a second marker write
	mr.Del("quiz:room:R1")
	req.Same(room, store.GetOrCreate("R1"))
	req.False(mr.Exists("quiz:room:R1"))

	_, ok := store.Get("R2")
	req.False(ok)
	req.Equal(1, store.Len())
}

func TestRoomStoreRefreshRestoresMarkers(t *testing.T) {
	req := require.New(t)
	mr := miniredis.RunT(t)
	store := NewRoomStore(newClient(mr), time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))
	store.GetOrCreate("R1")
	store.GetOrCreate("R2")

	mr.FastForward(50 * time.Second)
	mr.Del("quiz:room:R2")
	req.NoError(store.Refresh(context.Background()))

	req.Equal(time.Minute, mr.TTL("quiz:room:R1"))
	req.True(mr.Exists("quiz:room:R2"))
}

func TestRoomStoreWithoutRedis(t *testing.T) {
	req := require.New(t)
	mr, err := miniredis.Run()
	req.NoError(err)
	store := NewRoomStore(newClient(mr), time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))
	mr.Close()

	// rooms keep working when the marker cannot be written
	room := store.GetOrCreate("R1")
	req.Equal("R1", room.ID())
	req.Error(store.Refresh(context.Background()))
}

func TestRoomStoreMarkerWriteDoesNotBlockOtherRooms(t *testing.T) {
	req := require.New(t)

	// a server that accepts connections and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRoomStore(client, time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))
	store.markerTimeout = 500 * time.Millisecond
	busy, _ := store.LoadOrCreate("busy")

	created := make(chan struct{})
	go func() {
		defer close(created)
		store.GetOrCreate("new-room")
	}()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	got, ok := store.Get("busy")
	req.Less(time.Since(start), 100*time.Millisecond)
	req.True(ok)
	req.Same(busy, got)

	// the hung marker write gives up after its timeout and the room is still usable
	select {
	case <-created:
	case <-time.After(3 * time.Second):
		t.Fatal("GetOrCreate did not give up on the marker write")
	}
	_, ok = store.Get("new-room")
	req.True(ok)
}
