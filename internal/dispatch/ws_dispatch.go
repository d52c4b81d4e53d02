package dispatch

import (
	"errors"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/courier-booking/internal/models"
)

// ErrNoSession is returned when no client socket is connected for the
// booking session.
var ErrNoSession = errors.New("no ws session")

// WSSession represents one connected mobile client.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev models.OrderStatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// SendJSON writes an arbitrary payload, used for interactive search
// results on the same socket.
func (s *WSSession) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds connected client sessions keyed by booking session id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(sessionID string, conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	r.sessions[sessionID] = s
	r.mu.Unlock()
	return s
}

func (r *WSRegistry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// Push delivers an order-status event to the session's socket.
func (r *WSRegistry) Push(sessionID string, ev models.OrderStatusEvent) error {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(ev); err != nil {
		log.Printf("ws send error: %v", err)
		return err
	}
	return nil
}
