package sync

import (
	"context"
	gosync "sync"
)

// Mode says how the next first-connect signal from the stream is handled.
type Mode int

const (
	// ModeFirstConnect runs the cheap first-connect resync.
	ModeFirstConnect Mode = iota
	// ModeReconnect runs the full reconnect resync.
	ModeReconnect
)

func (m Mode) String() string {
	switch m {
	case ModeReconnect:
		return "reconnect"
	default:
		return "first_connect"
	}
}

// StreamCloser tears down the event stream.
type StreamCloser interface {
	Close(flushQueues bool)
}

// Redialer is an event stream that can be dialed again after Close.
type Redialer interface {
	StreamCloser
	Redial(ctx context.Context) error
}

// Session is the state shared between closing the stream and the
// lifecycle callbacks of the next connection. It carries the pending mode
// and a generation counter that marks older reconciliations stale.
type Session struct {
	mu         gosync.Mutex
	pending    Mode
	generation uint64
}

func NewSession() *Session {
	return &Session{}
}

// Close records how the next connect should be reconciled and closes the
// stream, flushing queued frames.
func (s *Session) Close(stream StreamCloser, shouldReconnect bool) {
	s.mu.Lock()
	if shouldReconnect {
		s.pending = ModeReconnect
	} else {
		s.pending = ModeFirstConnect
	}
	s.mu.Unlock()

	stream.Close(true)
}

// Restart closes stream with a full reconnect pending and dials it again.
// ctx bounds the lifetime of the new connection, not just the dial.
func (s *Session) Restart(ctx context.Context, stream Redialer) error {
	s.Close(stream, true)
	return stream.Redial(ctx)
}

// Pending returns the mode without clearing it.
func (s *Session) Pending() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// takePending reads and clears the pending mode.
func (s *Session) takePending() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.pending
	s.pending = ModeFirstConnect
	return m
}

// begin starts a new reconciliation and returns its generation.
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// isCurrent reports whether no reconciliation started after gen.
func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}
