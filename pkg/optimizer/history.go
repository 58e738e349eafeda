package optimizer

import (
	"sync"
)

// Decision is the outcome of the pre-scoring gate for a proposed
// candidate.
type Decision int

const (
	// Evaluate admits the candidate for scoring.
	Evaluate Decision = iota
	// SkipDuplicate discards the candidate before scoring because an
	// identical assignment was already admitted.
	SkipDuplicate
	// Stop signals the trial budget is exhausted.
	Stop
)

// History is the shared, synchronized trial ledger of one fold's search.
// Workers reserve an assignment before scoring it; reservation and the
// duplicate check happen under one lock, so two workers can never score
// the same assignment.
type History struct {
	mu        sync.Mutex
	completed []*Trial
	seen      map[string]struct{}
}

// NewHistory returns an empty trial history.
func NewHistory() *History {
	return &History{seen: make(map[string]struct{})}
}

// Reserve admits a candidate assignment for scoring unless an identical
// assignment was already reserved or completed.
func (h *History) Reserve(p Params) Decision {
	key := p.Key()
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.seen[key]; dup {
		return SkipDuplicate
	}
	h.seen[key] = struct{}{}
	return Evaluate
}

// Complete appends a scored trial to the ledger. The trial must have been
// reserved first.
func (h *History) Complete(t *Trial) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, t)
}

// Snapshot returns a copy of the completed trials for the sampler. The
// trials themselves are immutable once completed.
func (h *History) Snapshot() []*Trial {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Trial, len(h.completed))
	copy(out, h.completed)
	return out
}

// Len returns the number of completed trials.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.completed)
}
