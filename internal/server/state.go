// Package server hosts the webhook HTTP listener and the orchestrator that
// drives one delivery from verified webhook to completed check run.
package server

import "sync"

// Phase is a delivery's position in the processing state machine.
type Phase int

const (
	PhaseReceived Phase = iota
	PhaseAuthenticating
	PhaseFetching
	PhaseAnalyzing
	PhaseReporting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseReceived:
		return "received"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseFetching:
		return "fetching"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseReporting:
		return "reporting"
	case PhaseDone:
		return "done"
	default:
		return "failed"
	}
}

// Key identifies a delivery: one evaluation per repository and head commit.
type Key struct {
	Repository string // "owner/name"
	HeadSHA    string
}

type delivery struct {
	phase     Phase
	reason    string
	checkRuns map[string]int64 // check run name -> id, to avoid duplicate creation
}

// Store tracks delivery state in memory. It is the idempotency barrier:
// webhook redeliveries for a key that is already done or still in flight
// must not spawn a second evaluation or a second check run.
type Store struct {
	mu         sync.Mutex
	deliveries map[Key]*delivery
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{deliveries: make(map[Key]*delivery)}
}

// Begin claims a key for processing. It returns false when the key is
// already being processed, or is done and force is unset. A failed key can
// always be retried. Recorded check run ids survive re-processing so a
// forced re-run updates the existing run instead of creating a new one.
func (s *Store) Begin(key Key, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[key]
	if !ok {
		s.deliveries[key] = &delivery{phase: PhaseReceived, checkRuns: make(map[string]int64)}
		return true
	}

	switch d.phase {
	case PhaseDone:
		if !force {
			return false
		}
	case PhaseFailed:
		// retryable
	default:
		return false // in flight; the running evaluation will reconcile state
	}

	d.phase = PhaseReceived
	d.reason = ""
	return true
}

// SetPhase advances a claimed key.
func (s *Store) SetPhase(key Key, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deliveries[key]; ok {
		d.phase = phase
	}
}

// Fail marks a claimed key failed with a reason.
func (s *Store) Fail(key Key, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deliveries[key]; ok {
		d.phase = PhaseFailed
		d.reason = reason
	}
}

// Phase reports a key's current phase.
func (s *Store) Phase(key Key) (Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[key]
	if !ok {
		return 0, false
	}
	return d.phase, true
}

// RecordCheckRun remembers the check run id created (or adopted) for a name.
func (s *Store) RecordCheckRun(key Key, name string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deliveries[key]; ok {
		d.checkRuns[name] = id
	}
}

// CheckRun returns a previously recorded check run id.
func (s *Store) CheckRun(key Key, name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[key]
	if !ok {
		return 0, false
	}
	id, ok := d.checkRuns[name]
	return id, ok
}

// CheckRuns returns a copy of every recorded run for a key.
func (s *Store) CheckRuns(key Key) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[key]
	if !ok {
		return nil
	}
	runs := make(map[string]int64, len(d.checkRuns))
	for name, id := range d.checkRuns {
		runs[name] = id
	}
	return runs
}
