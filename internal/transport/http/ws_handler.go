package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
)

// Options tunes each websocket connection.
type Options struct {
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
	WriteWait       time.Duration
	PongWait        time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	return o
}

type WSHandler struct {
	coord    *app.Coordinator
	verifier *auth.Verifier
	log      *slog.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func NewWSHandler(coord *app.Coordinator, verifier *auth.Verifier, log *slog.Logger, opts Options) *WSHandler {
	opts = opts.withDefaults()
	return &WSHandler{
		coord:    coord,
		verifier: verifier,
		log:      log,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}
}

// originChecker accepts any origin when none are configured, and requests without an Origin header
// (non-browser clients) always.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		return lo.Contains(allowed, origin)
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload"`
}

// ServeWS upgrades HTTP requests to websockets and feeds their events to the coordinator.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		h.log.Info("ws rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	connID := uuid.NewString()
	sink := newWSSink(h.opts.SendBuffer)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		h.writeLoop(conn, sink, connID)
	}()

	h.coord.Connect(connID, identity, sink)
	h.log.Debug("ws connected", "conn", connID, "remote", r.RemoteAddr, "admin", identity.Admin)

	h.readLoop(r.Context(), conn, connID)

	h.coord.Disconnect(connID)
	sink.close()
	<-writerDone
	h.log.Debug("ws disconnected", "conn", connID)
}

func (h *WSHandler) identify(r *http.Request) (domain.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return domain.Identity{}, nil
	}
	return h.verifier.Verify(token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Debug("ws read error", "conn", connID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))

		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug("ws frame dropped", "conn", connID, "error", err)
			continue
		}
		evt, err := app.ParseEvent(inbound.Type, requestID(inbound.ID), inbound.Payload)
		if err != nil {
			h.log.Debug("event dropped", "conn", connID, "event", inbound.Type, "reason", err)
			continue
		}
		if err := h.coord.Handle(ctx, connID, evt); err != nil && !app.IsDropped(err) {
			h.log.Warn("event failed", "conn", connID, "event", evt.Type, "room", evt.RoomID, "error", err)
		}
		if evt.Type == app.EventDisconnect {
			return
		}
	}
}

// writeLoop owns every write on conn. It exits when the sink is closed or a write fails, and closes
// the connection so the read loop unblocks.
func (h *WSHandler) writeLoop(conn *websocket.Conn, sink *wsSink, connID string) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		sink.close()
		_ = conn.Close()
	}()

	for {
		select {
		case msg := <-sink.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "conn", connID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteWait)); err != nil {
				return
			}
		case <-sink.done:
			if sink.slow() {
				h.log.Warn("closing slow consumer", "conn", connID)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
					time.Now().Add(h.opts.WriteWait))
			}
			return
		}
	}
}

// requestID accepts both string and numeric ids.
func requestID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// wsSink is the enqueue-and-return side of one connection.
type wsSink struct {
	send      chan outboundMessage
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	overflowed bool
}

func newWSSink(buffer int) *wsSink {
	return &wsSink{
		send: make(chan outboundMessage, buffer),
		done: make(chan struct{}),
	}
}

func (s *wsSink) Send(env app.Envelope) error {
	select {
	case <-s.done:
		return domain.ErrConnectionClosed
	default:
	}

	msg := outboundMessage{Type: env.Event, ID: env.ID, Payload: env.Payload}
	select {
	case s.send <- msg:
		return nil
	default:
		s.mu.Lock()
		s.overflowed = true
		s.mu.Unlock()
		s.close()
		return domain.ErrSlowConsumer
	}
}

func (s *wsSink) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *wsSink) slow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflowed
}
