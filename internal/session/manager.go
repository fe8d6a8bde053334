package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/monitoring"
	"github.com/sells-group/blockgroup-index/internal/viewstate"
)

// ErrTooManySessions is returned by Create when the session limit is reached.
var ErrTooManySessions = eris.New("session: too many sessions")

// Manager owns all live sessions.
type Manager struct {
	loader  Loader
	initial viewstate.State
	max     int
	obs     *monitoring.Metrics
	clock   clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSessions caps the number of live sessions. Zero means unlimited.
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.max = n }
}

// WithMetrics records session gauges and stale results.
func WithMetrics(obs *monitoring.Metrics) Option {
	return func(m *Manager) { m.obs = obs }
}

// WithClock overrides the clock used for idle tracking.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates a manager whose sessions start from initial.
func NewManager(loader Loader, initial viewstate.State, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		loader:   loader,
		initial:  initial,
		clock:    clockwork.NewRealClock(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create starts a session from the initial state with actions applied, and
// kicks off its first fetch.
func (m *Manager) Create(actions ...viewstate.Action) (*Session, error) {
	for _, a := range actions {
		if err := viewstate.Validate(a); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.max > 0 && len(m.sessions) >= m.max {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s := newSession(m.ctx, uuid.NewString(), m.loader, m.initial, m.obs, m.clock.Now)
	m.sessions[s.id] = s
	m.obs.SetSessions(len(m.sessions))
	m.mu.Unlock()

	if _, err := s.DispatchAll(append(actions[:len(actions):len(actions)], viewstate.Refresh{})...); err != nil {
		m.Delete(s.id)
		return nil, err
	}
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete closes and forgets the session with id.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.obs.SetSessions(len(m.sessions))
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were removed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.clock.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.obs.SetSessions(len(m.sessions))
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		zap.L().Info("swept idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep(maxIdle)
		}
	}
}

// Close cancels every in-flight fetch and closes all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.obs.SetSessions(0)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
