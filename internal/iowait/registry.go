package iowait

import "sync"

// Registry hands out one InterruptSignal per blocked worker and can raise
// them all at once, which is how the tick handler kicks workers out of
// blocking waits at a context-switch boundary.
type Registry struct {
	mu   sync.Mutex
	sigs map[uint64]*InterruptSignal
	next uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sigs: make(map[uint64]*InterruptSignal)}
}

// Acquire creates and registers a fresh signal. The caller owns it until
// Release.
func (r *Registry) Acquire() (*InterruptSignal, error) {
	s, err := NewInterruptSignal()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.next++
	s.id = r.next
	r.sigs[s.id] = s
	r.mu.Unlock()
	return s, nil
}

// Release unregisters and closes the signal. Safe to call with nil or an
// already-released signal.
func (r *Registry) Release(s *InterruptSignal) {
	if s == nil {
		return
	}
	r.mu.Lock()
	_, registered := r.sigs[s.id]
	delete(r.sigs, s.id)
	r.mu.Unlock()
	if registered {
		_ = s.Close()
	}
}

// RaiseAll raises every registered signal.
func (r *Registry) RaiseAll() {
	r.mu.Lock()
	sigs := make([]*InterruptSignal, 0, len(r.sigs))
	for _, s := range r.sigs {
		sigs = append(sigs, s)
	}
	r.mu.Unlock()
	for _, s := range sigs {
		s.Raise()
	}
}

// Len reports the number of registered signals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sigs)
}
