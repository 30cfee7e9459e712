// Package transport carries chat events between browsers or apps and the
// delivery engine over websocket sessions.
package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest inbound frame accepted.
	maxFrameSize = 64 * 1024

	defaultSendBuffer = 256
)

var (
	// ErrSessionGone is returned when pushing to a session that has closed.
	ErrSessionGone = errors.New("session closed")
	// ErrSendBufferFull is returned when a slow peer has not drained its queue.
	ErrSendBufferFull = errors.New("session send buffer full")
)

// State is the lifecycle stage of a session.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one websocket connection and the identity declared at handshake.
type Session struct {
	id          string
	identity    string
	conn        *websocket.Conn
	send        chan []byte
	limiter     *rate.Limiter
	logger      zerolog.Logger
	connectedAt time.Time

	mu    sync.Mutex
	state State
}

func newSession(id, identity string, conn *websocket.Conn, sendBuffer int, limiter *rate.Limiter, logger zerolog.Logger) *Session {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Session{
		id:          id,
		identity:    identity,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		limiter:     limiter,
		logger:      logger.With().Str("session_id", id).Str("user_id", identity).Logger(),
		connectedAt: time.Now(),
		state:       StateConnecting,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Identity returns the user id declared at handshake, possibly empty.
func (s *Session) Identity() string { return s.identity }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Push queues payload for the write pump without blocking.
func (s *Session) Push(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionGone
	}

	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (s *Session) open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnecting {
		s.state = StateOpen
	}
}

// close marks the session closed and closes the outbound queue. It reports
// whether this call performed the transition.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	close(s.send)
	return true
}

// writePump drains the outbound queue onto the connection and keeps it alive
// with pings. It exits when the queue is closed or a write fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}
