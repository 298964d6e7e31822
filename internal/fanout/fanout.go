// Package fanout implements parallel multi-service fan-out and result
// aggregation (C11): broadcast a query to every service concurrently,
// collect whichever respond, and reduce the responses with one of a
// handful of named strategies.
package fanout

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service answers a single fan-out query.
type Service interface {
	Query(ctx context.Context, query string) (Response, error)
}

// ServiceFunc adapts a plain function to the Service interface.
type ServiceFunc func(ctx context.Context, query string) (Response, error)

func (f ServiceFunc) Query(ctx context.Context, query string) (Response, error) {
	return f(ctx, query)
}

// Response is one service's answer to a fan-out query.
type Response struct {
	ServiceID string
	RequestID string
	Text      string
	Metadata  map[string]any
}

// Strategy names the aggregation rule applied to a set of responses.
type Strategy string

const (
	// First keeps the response whose service was registered first
	// among those that answered (lowest original index).
	First Strategy = "first"
	// Shortest keeps the response with the shortest Text.
	Shortest Strategy = "shortest"
	// Longest keeps the response with the longest Text.
	Longest Strategy = "longest"
	// Confidence keeps the response with the highest
	// metadata["confidence"]; a missing value, or one that is not a
	// float64, counts as 0.
	Confidence Strategy = "confidence"
	// Merge concatenates every response's Text with a separator and
	// unions their Metadata (first writer wins on key collision).
	Merge Strategy = "merge"
)

// namedService pairs a Service with a stable identifier for
// registration-order tie-breaking.
type namedService struct {
	id  string
	svc Service
}

// Fanout broadcasts a query to a fixed set of named services.
type Fanout struct {
	mu       sync.Mutex
	services []namedService
	index    map[string]int
}

// New creates an empty Fanout.
func New() *Fanout {
	return &Fanout{index: make(map[string]int)}
}

// RegisterService adds or replaces serviceID's handler, preserving its
// original registration-order position on replacement.
func (f *Fanout) RegisterService(serviceID string, svc Service) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.index[serviceID]; ok {
		f.services[i].svc = svc
		return
	}
	f.index[serviceID] = len(f.services)
	f.services = append(f.services, namedService{id: serviceID, svc: svc})
}

// UnregisterService removes serviceID.
func (f *Fanout) UnregisterService(serviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.index[serviceID]
	if !ok {
		return
	}
	f.services = append(f.services[:i], f.services[i+1:]...)
	delete(f.index, serviceID)
	for j := i; j < len(f.services); j++ {
		f.index[f.services[j].id] = j
	}
}

// outcome pairs a response with the registration index of the service
// that produced it, for First's ordering and for deterministic Merge
// ordering.
type outcome struct {
	index int
	resp  Response
}

// FanOut invokes every registered service concurrently with query,
// tolerating individual failures (the failing service is simply
// absent from the collected responses), then reduces the survivors
// with strategy. An empty or all-failing service set returns an
// explicit empty Response rather than an error.
func (f *Fanout) FanOut(ctx context.Context, query string, strategy Strategy) (Response, error) {
	f.mu.Lock()
	services := make([]namedService, len(f.services))
	copy(services, f.services)
	f.mu.Unlock()

	return reduce(broadcast(ctx, query, services), strategy)
}

func broadcast(ctx context.Context, query string, services []namedService) []outcome {
	results := make([]*outcome, len(services))
	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range services {
		i, ns := i, ns
		g.Go(func() error {
			resp, err := ns.svc.Query(gctx, query)
			if err != nil {
				return nil // per-service failure yields an absent entry, not a fan-out failure
			}
			resp.ServiceID = ns.id
			if resp.RequestID == "" {
				resp.RequestID = uuid.NewString()
			}
			results[i] = &outcome{index: i, resp: resp}
			return nil
		})
	}
	_ = g.Wait() // every goroutine returns nil; individual errors are swallowed above

	out := make([]outcome, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func reduce(outcomes []outcome, strategy Strategy) (Response, error) {
	if len(outcomes) == 0 {
		return Response{Metadata: map[string]any{}}, nil
	}

	switch strategy {
	case First, "":
		sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
		return outcomes[0].resp, nil
	case Shortest:
		return pickBy(outcomes, func(a, b Response) bool { return len(a.Text) < len(b.Text) }), nil
	case Longest:
		return pickBy(outcomes, func(a, b Response) bool { return len(a.Text) > len(b.Text) }), nil
	case Confidence:
		return pickBy(outcomes, func(a, b Response) bool { return confidenceOf(a) > confidenceOf(b) }), nil
	case Merge:
		return mergeResponses(outcomes), nil
	default:
		sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
		return outcomes[0].resp, nil
	}
}

func pickBy(outcomes []outcome, better func(a, b Response) bool) Response {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
	best := outcomes[0].resp
	for _, o := range outcomes[1:] {
		if better(o.resp, best) {
			best = o.resp
		}
	}
	return best
}

func confidenceOf(r Response) float64 {
	v, ok := r.Metadata["confidence"]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}

func mergeResponses(outcomes []outcome) Response {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	var texts []string
	metadata := make(map[string]any)
	for _, o := range outcomes {
		texts = append(texts, o.resp.Text)
		for k, v := range o.resp.Metadata {
			if _, exists := metadata[k]; !exists {
				metadata[k] = v
			}
		}
	}
	return Response{
		RequestID: uuid.NewString(),
		Text:      strings.Join(texts, "\n---\n"),
		Metadata:  metadata,
	}
}
