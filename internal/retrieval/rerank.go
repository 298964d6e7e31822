package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aman-cerp/ragcore/internal/provider"
)

// stopwords is the fixed English stopword list dropped during BM25-like
// tokenization.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "how": true, "in": true, "into": true,
	"is": true, "it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "their": true, "then": true, "there": true,
	"these": true, "this": true, "to": true, "was": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"will": true, "with": true, "you": true, "your": true,
}

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// tokenize lower-cases and splits on non-alphanumeric runs, dropping
// stopwords and tokens shorter than 3 characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Rerank dispatches to the lightweight BM25-like reranker or the
// LLM-based reranker, returning the top topK of candidates.
func (m *Manager) Rerank(ctx context.Context, query string, candidates []Result, topK int, lightweight bool) ([]Result, error) {
	if lightweight {
		return lightweightRerank(query, candidates, topK), nil
	}
	return m.llmRerank(ctx, query, candidates, topK)
}

// lightweightRerank implements the spec's BM25-like scoring: idf =
// ln(N/df), score = sum(idf * tf*(k1+1) / (tf + k1*(1-b+b*dl/avgdl))),
// +2.0 per query term appearing in the title, and a small recency
// bonus (30-ageDays)/5 for documents updated within the last 30 days.
func lightweightRerank(query string, candidates []Result, topK int) []Result {
	terms := tokenize(query)
	n := len(candidates)
	if n == 0 || len(terms) == 0 {
		out := cloneResults(candidates)
		if topK > 0 && len(out) > topK {
			out = out[:topK]
		}
		return out
	}

	docTokens := make([][]string, n)
	docLen := make([]int, n)
	totalLen := 0
	for i, c := range candidates {
		toks := tokenize(c.Content)
		docTokens[i] = toks
		docLen[i] = len(toks)
		totalLen += len(toks)
	}
	avgdl := float64(totalLen) / float64(n)
	if avgdl == 0 {
		avgdl = 1
	}

	df := make(map[string]int, len(terms))
	for _, term := range terms {
		for _, toks := range docTokens {
			if containsToken(toks, term) {
				df[term]++
			}
		}
	}

	now := time.Now()
	scored := cloneResults(candidates)
	for i := range scored {
		var score float64
		dl := float64(docLen[i])
		for _, term := range terms {
			tf := float64(countToken(docTokens[i], term))
			if tf == 0 {
				continue
			}
			d := df[term]
			if d == 0 {
				continue
			}
			idf := math.Log(float64(n) / float64(d))
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*dl/avgdl))
		}

		titleLower := strings.ToLower(scored[i].Title)
		for _, term := range terms {
			if strings.Contains(titleLower, term) {
				score += 2.0
			}
		}

		if !scored[i].UpdatedAt.IsZero() {
			ageDays := now.Sub(scored[i].UpdatedAt).Hours() / 24
			if ageDays < 30 {
				score += (30 - ageDays) / 5
			}
		}

		scored[i].Score = score
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

func containsToken(toks []string, term string) bool {
	for _, t := range toks {
		if t == term {
			return true
		}
	}
	return false
}

func countToken(toks []string, term string) int {
	n := 0
	for _, t := range toks {
		if t == term {
			n++
		}
	}
	return n
}

const rerankContentTruncateLen = 500

// fixedRerankInstruction asks the model to return a comma-separated
// ordering of the 1-indexed candidates, most relevant first.
const fixedRerankInstruction = "Rank the following documents by relevance to the query below, most relevant first. Respond with only a comma-separated list of the document numbers (e.g. \"3,1,2\"), nothing else.\n\nQuery: %s\n\nDocuments:\n%s"

// llmRerank formats candidates as "[i] title\n<content truncated to 500
// chars>", asks the model for a comma-separated ordering, and parses
// the response: digits are clamped to [1,N], deduped preserving order,
// backfilled with any missing indices, then truncated to topK. A
// parse failure (no valid indices recovered) returns the original
// order truncated to topK.
func (m *Manager) llmRerank(ctx context.Context, query string, candidates []Result, topK int) ([]Result, error) {
	n := len(candidates)
	if n == 0 {
		return nil, nil
	}

	var b strings.Builder
	for i, c := range candidates {
		content := c.Content
		if len(content) > rerankContentTruncateLen {
			content = content[:rerankContentTruncateLen]
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, c.Title, content)
	}

	prompt := fmt.Sprintf(fixedRerankInstruction, query, b.String())
	resp, err := m.llm.Complete(ctx, provider.CompletionRequest{Prompt: prompt})
	if err != nil {
		return truncate(cloneResults(candidates), topK), nil
	}

	order := parseRerankOrder(resp.Text, n)
	if len(order) == 0 {
		return truncate(cloneResults(candidates), topK), nil
	}

	out := make([]Result, 0, len(order))
	for _, idx := range order {
		out = append(out, candidates[idx-1].clone())
	}
	return truncate(out, topK), nil
}

// parseRerankOrder extracts 1-indexed document numbers from text,
// clamps to [1,n], dedupes preserving first occurrence, and backfills
// any index missing from the response in original order.
func parseRerankOrder(text string, n int) []int {
	seen := make(map[int]bool, n)
	var order []int

	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= '0' && r <= '9')
	}) {
		v, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		if v < 1 {
			v = 1
		}
		if v > n {
			v = n
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		order = append(order, v)
	}

	if len(order) == 0 {
		return nil
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order
}

func truncate(results []Result, topK int) []Result {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
