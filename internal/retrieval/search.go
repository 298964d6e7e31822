package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aman-cerp/ragcore/internal/document"
	rerrors "github.com/aman-cerp/ragcore/internal/errors"
	"github.com/aman-cerp/ragcore/internal/provider"
	"github.com/aman-cerp/ragcore/internal/vectorstore"
)

// RetrieveRelevant embeds query and searches the configured backend for
// its topK nearest documents, honoring the LRU cache when useCache is
// set. minScore and filters are optional (nil/empty to skip).
func (m *Manager) RetrieveRelevant(ctx context.Context, query string, topK int, minScore *float64, filters map[string]any, useCache bool) ([]Result, error) {
	if useCache && m.cache != nil {
		if cached, ok := m.cache.get(query, topK); ok {
			return cached, nil
		}
	}

	vec, err := m.llm.GetEmbeddings(ctx, query)
	if err != nil {
		return nil, rerrors.ProviderError("llm", "failed to embed query", err)
	}

	results, err := m.searchBackend(ctx, vec, topK, minScore, filters)
	if err != nil {
		return nil, err
	}

	if useCache && m.cache != nil {
		m.cache.put(query, topK, results)
	}
	return results, nil
}

func (m *Manager) searchBackend(ctx context.Context, vec []float32, topK int, minScore *float64, filters map[string]any) ([]Result, error) {
	switch m.backend.Kind {
	case DocumentBackendKind:
		var scored []document.ScoredDocument
		var err error
		if m.collectionScope != "" {
			scored, err = m.backend.DocumentStore.FindSimilarInCollection(m.collectionScope, vec, topK, minScore)
		} else {
			scored, err = m.backend.DocumentStore.FindSimilar(vec, topK, minScore)
		}
		if err != nil {
			return nil, err
		}
		return toResults(scored), nil

	case VectorBackendKind:
		scored, err := m.backend.VectorStore.FindSimilarDocuments(ctx, vec, topK, minScore, m.backend.Namespace, vectorstore.Filters(filters))
		if err != nil {
			return nil, err
		}
		return toVectorResults(scored), nil

	default:
		return nil, rerrors.ValidationError("backend", "retrieval manager has no configured backend", nil)
	}
}

// keywordSearch runs the backend's native keyword search, if it has
// one. It returns (nil, nil) for backends without keyword support.
func (m *Manager) keywordSearch(query string, limit int) ([]Result, error) {
	if !m.backend.hasNativeKeywordSearch() {
		return nil, nil
	}
	scored, err := m.backend.DocumentStore.SearchByContent(query, 0)
	if err != nil {
		return nil, err
	}
	if m.collectionScope != "" {
		filtered := scored[:0:0]
		for _, sd := range scored {
			if sd.Document.CollectionID == m.collectionScope {
				filtered = append(filtered, sd)
			}
		}
		scored = filtered
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return toResults(scored), nil
}

func toResults(scored []document.ScoredDocument) []Result {
	out := make([]Result, len(scored))
	for i, sd := range scored {
		out[i] = fromScoredDocument(sd)
	}
	return out
}

func toVectorResults(scored []vectorstore.ScoredVectorDocument) []Result {
	out := make([]Result, len(scored))
	for i, sv := range scored {
		out[i] = fromScoredVectorDocument(sv)
	}
	return out
}

// HybridSearch runs semantic (embedding + vector search) and keyword
// (content scan) retrieval concurrently, merging by document id: a
// duplicate hit adds keywordScore*boost to the existing semantic
// score; a keyword-only hit keeps keywordScore*(1-boost). Results are
// sorted descending and truncated to nFinal. The keyword phase is
// skipped entirely for backends without native keyword search.
func (m *Manager) HybridSearch(ctx context.Context, query string, nSem, nKw, nFinal int, boost float64) ([]Result, error) {
	var semantic, keyword []Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := m.RetrieveRelevant(gctx, query, nSem, nil, nil, false)
		if err != nil {
			return err
		}
		semantic = r
		return nil
	})
	g.Go(func() error {
		r, err := m.keywordSearch(query, nKw)
		if err != nil {
			return err
		}
		keyword = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]*Result, len(semantic)+len(keyword))
	order := make([]string, 0, len(semantic)+len(keyword))
	for _, r := range semantic {
		cp := r.clone()
		merged[cp.ID] = &cp
		order = append(order, cp.ID)
	}
	for _, r := range keyword {
		if existing, ok := merged[r.ID]; ok {
			existing.Score += r.Score * boost
			continue
		}
		cp := r.clone()
		cp.Score = r.Score * (1 - boost)
		merged[cp.ID] = &cp
		order = append(order, cp.ID)
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if nFinal > 0 && len(out) > nFinal {
		out = out[:nFinal]
	}
	return out, nil
}

// fixedExpansionInstruction is the instruction template wrapped around
// the original query and its recent history before asking the model
// for a single expanded query string.
const fixedExpansionInstruction = "Given the conversation history and the latest query, rewrite the latest query as a single, standalone, expanded search query that captures the user's full intent. Respond with only the rewritten query, nothing else.\n\nPrevious queries:\n%s\n\nLatest query: %s"

// ContextAwareSearch expands query using up to the 5 most recent
// prevQueries (if any) before running HybridSearch. An empty
// prevQueries falls through to RetrieveRelevant; a provider error
// during expansion falls back to RetrieveRelevant with the original
// query.
func (m *Manager) ContextAwareSearch(ctx context.Context, query string, prevQueries []string, nSem, nKw, nFinal int, boost float64) ([]Result, error) {
	if len(prevQueries) == 0 {
		return m.RetrieveRelevant(ctx, query, nFinal, nil, nil, true)
	}

	recent := prevQueries
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	prompt := fmt.Sprintf(fixedExpansionInstruction, strings.Join(recent, "\n"), query)
	resp, err := m.llm.Complete(ctx, provider.CompletionRequest{Prompt: prompt, Temperature: 0.3})
	if err != nil {
		return m.RetrieveRelevant(ctx, query, nFinal, nil, nil, true)
	}

	expanded := strings.TrimSpace(resp.Text)
	if expanded == "" {
		expanded = query
	}
	return m.HybridSearch(ctx, expanded, nSem, nKw, nFinal, boost)
}

// TimeWeightedRetrieval retrieves 2*topK candidates and re-scores them
// as recencyScore*w + indexScore*(1-w), where recencyScore =
// max(0, 1 - age/freshnessWindow) and indexScore = 1 - index/N.
func (m *Manager) TimeWeightedRetrieval(ctx context.Context, query string, topK int, recencyWeight float64, freshnessWindow time.Duration) ([]Result, error) {
	candidates, err := m.RetrieveRelevant(ctx, query, topK*2, nil, nil, true)
	if err != nil {
		return nil, err
	}
	n := len(candidates)
	if n == 0 {
		return candidates, nil
	}

	now := time.Now()
	for i := range candidates {
		age := now.Sub(candidates[i].UpdatedAt)
		recencyScore := 1 - age.Seconds()/freshnessWindow.Seconds()
		if recencyScore < 0 {
			recencyScore = 0
		}
		indexScore := 1 - float64(i)/float64(n)
		candidates[i].Score = recencyScore*recencyWeight + indexScore*(1-recencyWeight)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// MultiCollectionSearch fans out RetrieveRelevant across scopes (one
// per document collection id, or vector-store namespace) concurrently,
// concatenates the results, and optionally reranks (lightweight) down
// to topK.
func (m *Manager) MultiCollectionSearch(ctx context.Context, query string, scopes []string, topK int, rerank bool) ([]Result, error) {
	perScope := make([][]Result, len(scopes))

	g, gctx := errgroup.WithContext(ctx)
	for i, scope := range scopes {
		i, scope := i, scope
		g.Go(func() error {
			scoped := m.withScope(scope)
			r, err := scoped.RetrieveRelevant(gctx, query, topK, nil, nil, false)
			if err != nil {
				return err
			}
			perScope[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Result
	for _, r := range perScope {
		all = append(all, r...)
	}

	if rerank {
		return m.Rerank(ctx, query, all, topK, true)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

// withScope returns a shallow copy of m scoped to a different
// collection (document backend) or namespace (vector backend),
// sharing the same cache and LLM provider.
func (m *Manager) withScope(scope string) *Manager {
	scoped := *m
	if m.backend.Kind == VectorBackendKind {
		scoped.backend = Backend{Kind: VectorBackendKind, VectorStore: m.backend.VectorStore, Namespace: scope}
	} else {
		scoped.collectionScope = scope
	}
	return &scoped
}

// RetrieveAndRerank over-fetches 2*topK candidates via RetrieveRelevant
// and reranks them down to topK.
func (m *Manager) RetrieveAndRerank(ctx context.Context, query string, topK int, lightweight bool) ([]Result, error) {
	candidates, err := m.RetrieveRelevant(ctx, query, topK*2, nil, nil, true)
	if err != nil {
		return nil, err
	}
	return m.Rerank(ctx, query, candidates, topK, lightweight)
}
