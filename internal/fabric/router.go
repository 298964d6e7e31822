// Package fabric implements the multi-service fabric (C10): a
// keyword/property router, a weighted round-robin balancer, and a
// bounded client pool with a wait queue. The three types are
// independent and composed by callers, per the teacher's habit of
// small single-purpose types living side by side in one package.
package fabric

import (
	"strings"
	"sync"
)

// Router maps a request to a registered service id by keyword score or
// by property filter.
type Router struct {
	mu       sync.RWMutex
	order    []string // registration order, for keyword tie-breaking
	keywords map[string][]string
	props    map[string]map[string]any
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		keywords: make(map[string][]string),
		props:    make(map[string]map[string]any),
	}
}

// RegisterService records serviceID's keyword list and property map.
// Either may be nil/empty. Re-registering an existing id keeps its
// original position in registration order.
func (r *Router) RegisterService(serviceID string, keywords []string, properties map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keywords[serviceID]; !exists {
		r.order = append(r.order, serviceID)
	}
	r.keywords[serviceID] = keywords
	r.props[serviceID] = properties
}

// UnregisterService removes serviceID from the router.
func (r *Router) UnregisterService(serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keywords, serviceID)
	delete(r.props, serviceID)
	for i, id := range r.order {
		if id == serviceID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// RouteByKeyword scores every registered service by the number of
// case-insensitive substring matches of its keywords in text, and
// returns the highest scorer; ties go to whichever matching service
// was registered first. A zero top score returns ("", false).
func (r *Router) RouteByKeyword(text string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(text)
	bestID := ""
	bestScore := 0
	for _, id := range r.order {
		score := 0
		for _, kw := range r.keywords[id] {
			if kw == "" {
				continue
			}
			score += strings.Count(lower, strings.ToLower(kw))
		}
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}
	if bestScore == 0 {
		return "", false
	}
	return bestID, true
}

// RouteByProperty returns one service whose property map matches every
// key/value in filter (equality): the first match, in registration
// order, that carries priorityKey (if non-empty), else the first match.
func (r *Router) RouteByProperty(filter map[string]any, priorityKey string) (string, bool) {
	candidates := r.GetServicesWithProperties(filter)
	if len(candidates) == 0 {
		return "", false
	}
	if priorityKey != "" {
		r.mu.RLock()
		for _, id := range candidates {
			if _, ok := r.props[id][priorityKey]; ok {
				r.mu.RUnlock()
				return id, true
			}
		}
		r.mu.RUnlock()
	}
	return candidates[0], true
}

// GetServicesWithProperties returns every registered service whose
// property map matches every key/value in filter, in registration
// order.
func (r *Router) GetServicesWithProperties(filter map[string]any) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []string
	for _, id := range r.order {
		if matchesAll(r.props[id], filter) {
			matches = append(matches, id)
		}
	}
	return matches
}

// GetServicesWithProperty returns every registered service whose
// property map has key set to value.
func (r *Router) GetServicesWithProperty(key string, value any) []string {
	return r.GetServicesWithProperties(map[string]any{key: value})
}

func matchesAll(props, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := props[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
