package desktop

import "sync"

// Store is the single owner of the live desktop State.
type Store struct {
	// dispatchMu serialises reduce and notify so subscribers see states
	// in dispatch order.
	dispatchMu sync.Mutex
	mu         sync.Mutex
	reducer    Reducer
	state      State
	subs       []func(State)
}

func NewStore(r Reducer) *Store {
	return &Store{reducer: r, state: InitialState()}
}

// Dispatch applies e, bumps Version and returns the new state.
// Subscribers run in registration order before the next dispatch starts,
// so they must not call Dispatch themselves.
func (s *Store) Dispatch(e Event) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	next := s.reducer.Reduce(s.state, e)
	next.Version = s.state.Version + 1
	s.state = next
	subs := make([]func(State), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// State returns the current state. Callers must treat it as read-only.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Subscribe(fn func(State)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}
