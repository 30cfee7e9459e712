package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/eldtechnologies/landchat/internal/delivery"
	"github.com/eldtechnologies/landchat/internal/metrics"
	"github.com/eldtechnologies/landchat/internal/models"
	"github.com/eldtechnologies/landchat/internal/presence"
)

// Error codes sent back to a session in an error event.
const (
	CodeBadFrame       = "bad_frame"
	CodeInvalidMessage = "invalid_message"
	CodeDeliveryFailed = "delivery_failed"
	CodeRateLimited    = "rate_limited"
)

// Deliverer is the part of the delivery engine the hub drives.
type Deliverer interface {
	Deliver(ctx context.Context, req delivery.Request) (*models.Message, error)
}

// Options configures per-connection behaviour. Zero values use defaults.
type Options struct {
	MessagesPerSecond float64
	Burst             int
	SendBuffer        int
	CheckOrigin       func(r *http.Request) bool
}

// Hub upgrades HTTP requests to sessions, joins them to their identity's room
// and routes their inbound events to the delivery engine.
type Hub struct {
	registry *presence.Registry
	engine   Deliverer
	logger   zerolog.Logger
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates a hub.
func NewHub(registry *presence.Registry, engine Deliverer, logger zerolog.Logger, opts Options) *Hub {
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Hub{
		registry: registry,
		engine:   engine,
		logger:   logger.With().Str("component", "transport").Logger(),
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP handles GET /socket?userId=<id>. Connections without a userId stay
// open but join no room.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	identity := r.URL.Query().Get("userId")
	limiter := rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.Burst)
	s := newSession(id.String(), identity, conn, h.opts.SendBuffer, limiter, h.logger)

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	if identity != "" {
		h.registry.Join(identity, s)
	}
	s.open()
	metrics.SessionsOpen.Inc()
	s.logger.Debug().Msg("session opened")

	go s.writePump()
	go h.readPump(s)
}

// Sessions returns the number of open sessions, joined or not.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every session. Their read pumps then release them.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.conn.Close()
	}
}

// release removes s from the registry and stops its write pump.
func (h *Hub) release(s *Session) {
	h.registry.Leave(s)

	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	if s.close() {
		metrics.SessionsOpen.Dec()
		s.logger.Debug().Dur("duration", time.Since(s.connectedAt)).Msg("session closed")
	}
}

// readPump handles inbound frames one at a time until the peer goes away.
func (h *Hub) readPump(s *Session) {
	defer func() {
		h.release(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		h.handleFrame(s, frame)
	}
}

func (h *Hub) handleFrame(s *Session, frame []byte) {
	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		metrics.InboundEvents.WithLabelValues("malformed").Inc()
		h.sendError(s, CodeBadFrame, "malformed frame")
		return
	}

	switch env.Event {
	case models.EventSendMessage:
		metrics.InboundEvents.WithLabelValues(env.Event).Inc()
		h.handleSendMessage(s, env.Data)
	default:
		metrics.InboundEvents.WithLabelValues("unknown").Inc()
		s.logger.Debug().Str("event", env.Event).Msg("ignoring unknown event")
	}
}

func (h *Hub) handleSendMessage(s *Session, data json.RawMessage) {
	if !s.limiter.Allow() {
		metrics.RateLimitHits.WithLabelValues("socket").Inc()
		h.sendError(s, CodeRateLimited, "too many messages")
		return
	}

	var req delivery.Request
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(s, CodeBadFrame, "malformed sendMessage payload")
		return
	}

	// The send outlives the connection that asked for it.
	if _, err := h.engine.Deliver(context.Background(), req); err != nil {
		if errors.Is(err, delivery.ErrValidation) {
			h.sendError(s, CodeInvalidMessage, "senderId, receiverId and message are required")
			return
		}
		h.sendError(s, CodeDeliveryFailed, "failed to store message")
	}
}

func (h *Hub) sendError(s *Session, code, message string) {
	payload, err := models.EncodeEvent(models.EventError, models.ErrorEvent{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := s.Push(payload); err != nil {
		s.logger.Debug().Err(err).Str("code", code).Msg("could not report error to session")
	}
}
