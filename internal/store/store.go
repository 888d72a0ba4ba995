package store

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Subscriber is notified once per applied batch.
type Subscriber func(batch []Action)

// Store is the local cache. Batches passed to Dispatch are applied
// atomically: readers never observe a partially applied batch.
type Store struct {
	mu     sync.RWMutex
	state  *State
	logger *zap.Logger

	subMu       sync.RWMutex
	subscribers []Subscriber
}

// New creates a store over initial, or an empty state when nil.
func New(initial *State, logger *zap.Logger) *Store {
	if initial == nil {
		initial = NewState()
	}
	initial.ensure()
	return &Store{
		state:  initial,
		logger: logger,
	}
}

// Dispatch applies actions as one batch. Empty batches are ignored.
func (s *Store) Dispatch(actions ...Action) {
	if len(actions) == 0 {
		return
	}

	s.mu.Lock()
	for _, a := range actions {
		a.apply(s.state)
	}
	s.mu.Unlock()

	s.logger.Debug("batch applied", zap.Int("actions", len(actions)), zap.String("first", actions[0].Type()))

	s.subMu.RLock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub(actions)
	}
}

// Subscribe registers fn for every subsequent batch.
func (s *Store) Subscribe(fn Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// View runs fn with read access to the state. fn must not retain or
// modify anything it reads.
func (s *Store) View(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Snapshot returns a deep copy of the persisted part of the state.
func (s *Store) Snapshot() (*State, error) {
	s.mu.RLock()
	data, err := json.Marshal(s.state)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	st.ensure()
	return st, nil
}
