// Package presence tracks which live sessions belong to which identity.
package presence

import (
	"sync"
)

// Session is one live connection that can receive pushed frames.
type Session interface {
	ID() string
	Push(payload []byte) error
}

// Registry maps an identity (the room name) to its live sessions.
// A single mutex serializes joins, leaves and fan-out snapshots.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Session // identity -> session id -> session
	member map[string]string             // session id -> identity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Session),
		member: make(map[string]string),
	}
}

// Join registers s in the room named identityID. A session joins at most one
// room; later joins for the same session are ignored and report false.
func (r *Registry) Join(identityID string, s Session) bool {
	if identityID == "" || s == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.member[s.ID()]; ok {
		return false
	}

	room := r.rooms[identityID]
	if room == nil {
		room = make(map[string]Session)
		r.rooms[identityID] = room
	}
	room[s.ID()] = s
	r.member[s.ID()] = identityID
	return true
}

// Leave removes s from its room. Calling it again is a no-op that reports false.
func (r *Registry) Leave(s Session) bool {
	if s == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	identityID, ok := r.member[s.ID()]
	if !ok {
		return false
	}
	delete(r.member, s.ID())

	room := r.rooms[identityID]
	delete(room, s.ID())
	if len(room) == 0 {
		delete(r.rooms, identityID)
	}
	return true
}

// SessionsFor returns a snapshot of identityID's live sessions.
func (r *Registry) SessionsFor(identityID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[identityID]
	sessions := make([]Session, 0, len(room))
	for _, s := range room {
		sessions = append(sessions, s)
	}
	return sessions
}

// Count returns the number of joined sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.member)
}

// Rooms returns the number of identities with at least one session.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
