package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/tg-booking-miniapp/internal/host"
	"github.com/wolfman30/tg-booking-miniapp/pkg/logging"
)

const defaultIdleTTL = 30 * time.Minute

// Manager owns the live sessions.
type Manager struct {
	deps    Dependencies
	idleTTL time.Duration
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager; sessions idle longer than idleTTL are
// closed by Run.
func NewManager(deps Dependencies, idleTTL time.Duration) *Manager {
	deps = deps.withDefaults()
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &Manager{
		deps:     deps,
		idleTTL:  idleTTL,
		logger:   deps.Logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for platform. A nil platform means no host.
func (m *Manager) Create(platform host.Platform) (*Session, error) {
	s, err := New(uuid.NewString(), platform, m.deps)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run closes idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Info("closed idle sessions", "count", n)
			}
		}
	}
}

// Sweep closes sessions idle since before now minus the idle TTL.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)
	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Close shuts every session down.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
