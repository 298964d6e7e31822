package fabric

import "sync"

// weightedEntry tracks one service's static weight and its running
// deficit in the smooth weighted round-robin algorithm (as used by
// nginx/LVS): every selection adds the service's weight to its
// deficit, the highest-deficit service is chosen, and the total
// weight is subtracted back off the winner.
type weightedEntry struct {
	id      string
	weight  float64
	current float64
}

// Balancer selects services by smooth weighted round-robin: each
// service is picked in proportion to its weight, and the picks of
// lighter services are spread between those of heavier ones rather than
// grouped in one run. The selection sequence is deterministic.
type Balancer struct {
	mu      sync.Mutex
	entries []*weightedEntry
	index   map[string]int // id -> index into entries
}

// NewBalancer creates an empty balancer.
func NewBalancer() *Balancer {
	return &Balancer{index: make(map[string]int)}
}

// RegisterService adds serviceID with the given weight (must be > 0;
// non-positive values are treated as 1.0). Re-registering an existing
// id updates its weight without resetting its accumulated deficit.
func (b *Balancer) RegisterService(serviceID string, weight float64) {
	if weight <= 0 {
		weight = 1.0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if i, ok := b.index[serviceID]; ok {
		b.entries[i].weight = weight
		return
	}
	b.index[serviceID] = len(b.entries)
	b.entries = append(b.entries, &weightedEntry{id: serviceID, weight: weight})
}

// UnregisterService removes serviceID. Removing an entry never leaves
// the internal cursor dangling: indices are rebuilt immediately.
func (b *Balancer) UnregisterService(serviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[serviceID]
	if !ok {
		return
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.index, serviceID)
	for j := i; j < len(b.entries); j++ {
		b.index[b.entries[j].id] = j
	}
}

// GetNextService returns the next service id by weighted round-robin,
// or ("", false) if no services are registered.
func (b *Balancer) GetNextService() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return "", false
	}

	var total float64
	var best *weightedEntry
	for _, e := range b.entries {
		e.current += e.weight
		total += e.weight
		if best == nil || e.current > best.current {
			best = e
		}
	}
	best.current -= total
	return best.id, true
}

// Len returns the number of registered services.
func (b *Balancer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
