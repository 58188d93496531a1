package session

import (
	"sync"

	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// Manager owns the live sessions, keyed by UUID.
type Manager struct {
	answerer domain.Answerer
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(answerer domain.Answerer, opts Options) *Manager {
	return &Manager{answerer: answerer, opts: opts, sessions: make(map[string]*Session)}
}

func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.answerer, m.opts)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	logger.Debug("session %s created", s.ID())
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Submit acknowledges the question immediately; the answer arrives through
// the session's updates.
func (m *Manager) Submit(id, question string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Submit(question)
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Close()
	return nil
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
