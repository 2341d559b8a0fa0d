package v1

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/gridsense/ai/grid"
	"github.com/hrygo/gridsense/ai/session"
)

// liveSession pairs a session controller with its grid. API sessions run
// against an in-process grid seeded by the client; a spreadsheet frontend
// would substitute its own Capability.
type liveSession struct {
	controller *session.Controller
	grid       *grid.MemoryGrid
}

// sessionManager is the registry of live sessions, keyed by session id.
type sessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: map[string]*liveSession{}}
}

func (m *sessionManager) add(s *liveSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.controller.ID()] = s
}

func (m *sessionManager) get(id string) (*liveSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Errorf("session %q not found", id)
	}
	return s, nil
}

func (m *sessionManager) remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

func (m *sessionManager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
