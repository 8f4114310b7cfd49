package api

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/abhisek/chatterbox/internal/session"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// ErrExists is returned when a caller-chosen ID is already in use.
var ErrExists = errors.New("session already exists")

// SessionFactory creates configured sessions.
type SessionFactory interface {
	NewSession(id string) *session.Session
}

type entry struct {
	sess     *session.Session
	hub      *hub
	speaking atomic.Bool
}

// setSpeaking maps the client's speaking flag onto one gate hold, so
// repeated updates with the same value do not stack.
func (e *entry) setSpeaking(on bool) {
	if e.speaking.Swap(on) == on {
		return
	}
	if on {
		e.sess.Gate().Lock()
	} else {
		e.sess.Gate().Unlock()
	}
}

// registry holds the live sessions of this process.
type registry struct {
	mu       sync.RWMutex
	factory  SessionFactory
	sessions map[string]*entry
}

func newRegistry(f SessionFactory) *registry {
	return &registry{factory: f, sessions: make(map[string]*entry)}
}

// create builds a session and registers it. wire runs before the entry
// becomes visible so timer callbacks are in place from the start.
func (r *registry) create(id string, wire func(*entry)) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if _, ok := r.sessions[id]; ok {
			return nil, ErrExists
		}
	}
	e := &entry{sess: r.factory.NewSession(id), hub: newHub()}
	if _, ok := r.sessions[e.sess.ID()]; ok {
		e.sess.End()
		return nil, ErrExists
	}
	wire(e)
	r.sessions[e.sess.ID()] = e
	return e, nil
}

func (r *registry) get(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// remove ends the session and disconnects its stream subscribers.
func (r *registry) remove(id string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	e.sess.End()
	e.hub.close()
	return e, nil
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.sess.End()
		e.hub.close()
	}
}
