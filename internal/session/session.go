// Package session runs map view sessions: each session owns a view state,
// starts a fetch whenever its inputs change, and cancels the fetch it
// supersedes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/blockgroup-index/internal/monitoring"
	"github.com/sells-group/blockgroup-index/internal/snapshot"
	"github.com/sells-group/blockgroup-index/internal/viewstate"
)

// ErrClosed is returned when dispatching to a closed session.
var ErrClosed = eris.New("session: closed")

// Loader produces snapshots and comparisons.
type Loader interface {
	Fetch(ctx context.Context, req snapshot.Request) (*geojson.FeatureCollection, error)
	Compare(ctx context.Context, req snapshot.CompareRequest) (*geojson.FeatureCollection, error)
}

// Session is one map view. It is safe for concurrent use.
type Session struct {
	id     string
	loader Loader
	obs    *monitoring.Metrics
	base   context.Context
	now    func() time.Time

	mu       sync.Mutex
	state    viewstate.State
	cancel   context.CancelFunc
	changed  chan struct{}
	closed   bool
	lastUsed time.Time

	wg sync.WaitGroup
}

func newSession(base context.Context, id string, loader Loader, st viewstate.State, obs *monitoring.Metrics, now func() time.Time) *Session {
	return &Session{
		id:       id,
		loader:   loader,
		obs:      obs,
		base:     base,
		now:      now,
		state:    st,
		changed:  make(chan struct{}),
		lastUsed: now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current view state.
func (s *Session) State() viewstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	return s.state
}

// Dispatch applies an input action. When the action starts a new
// generation, the in-flight fetch is cancelled and a new one begins.
func (s *Session) Dispatch(a viewstate.Action) (viewstate.State, error) {
	return s.DispatchAll(a)
}

// DispatchAll applies actions in order as one change: the inputs move
// together and at most one generation, and one fetch, is started. Nothing
// is applied if any action is invalid.
func (s *Session) DispatchAll(actions ...viewstate.Action) (viewstate.State, error) {
	for _, a := range actions {
		if err := viewstate.Validate(a); err != nil {
			return viewstate.State{}, err
		}
		switch a.(type) {
		case viewstate.Loaded, viewstate.Failed:
			return viewstate.State{}, eris.New("session: fetch results cannot be dispatched")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.state, ErrClosed
	}
	s.lastUsed = s.now()

	prev := s.state
	next := prev
	for _, a := range actions {
		next = viewstate.Update(next, a)
	}
	if !viewstate.Superseded(prev, next) {
		return prev, nil
	}
	next.Generation = prev.Generation + 1
	s.setLocked(next)
	s.startLocked(s.state)
	return s.state, nil
}

// setLocked replaces the state and wakes any waiters.
func (s *Session) setLocked(st viewstate.State) {
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) startLocked(st viewstate.State) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx, st)
}

func (s *Session) run(ctx context.Context, st viewstate.State) {
	defer s.wg.Done()

	var (
		fc  *geojson.FeatureCollection
		err error
	)
	if st.Mode == viewstate.ModeCompare {
		fc, err = s.loader.Compare(ctx, st.CompareRequest())
	} else {
		fc, err = s.loader.Fetch(ctx, st.SnapshotRequest())
	}
	s.complete(st.Generation, fc, err)
}

func (s *Session) complete(gen uint64, fc *geojson.FeatureCollection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.state.Generation {
		s.obs.IncStale()
		zap.L().Debug("discarding stale session result",
			zap.String("session", s.id),
			zap.Uint64("generation", gen),
			zap.Uint64("current", s.state.Generation),
		)
		return
	}

	if err != nil {
		s.setLocked(viewstate.Update(s.state, viewstate.Failed{Generation: gen, Err: err}))
		return
	}
	s.setLocked(viewstate.Update(s.state, viewstate.Loaded{Generation: gen, Result: fc}))
}

// Wait blocks until the current generation has finished loading or ctx is
// done, and returns the state at that point.
func (s *Session) Wait(ctx context.Context) (viewstate.State, error) {
	for {
		s.mu.Lock()
		st, ch := s.state, s.changed
		s.mu.Unlock()

		if st.Status != viewstate.StatusLoading {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// idleSince reports when the session was last read or updated.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close cancels any in-flight fetch and waits for it to return.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}
