package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/aman-cerp/ragcore/internal/embedding"
	rerrors "github.com/aman-cerp/ragcore/internal/errors"
)

// hnswThreshold is the namespace size from which approximate search
// via coder/hnsw starts paying for itself; below it brute-force cosine
// over the flat vector map is both simpler and faster (no graph
// warm-up cost).
const hnswThreshold = 500

// overfetchFactor widens the HNSW candidate set before exact
// re-verification/threshold filtering narrows it back down.
const overfetchFactor = 4

type namespaceData struct {
	mu      sync.RWMutex
	docs    map[string]*VectorDocument
	norms   map[string]float64
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

func newNamespaceData() *namespaceData {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	return &namespaceData{
		docs:   make(map[string]*VectorDocument),
		norms:  make(map[string]float64),
		graph:  g,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// InMemoryStore is the reference C5 backend: an in-memory, optionally
// snapshotted vector store with one HNSW graph per namespace.
type InMemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*namespaceData
	dimension  int
	capacity   int
	count      int

	snapshot *snapshotConfig
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithCapacity caps the total number of vectors across all namespaces.
// Zero (the default) means unlimited.
func WithCapacity(n int) Option {
	return func(s *InMemoryStore) { s.capacity = n }
}

// New creates an empty in-memory vector store.
func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{namespaces: make(map[string]*namespaceData)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func resolveNamespace(ns string) string {
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}

func (s *InMemoryStore) namespace(ns string, create bool) *namespaceData {
	ns = resolveNamespace(ns)

	s.mu.RLock()
	n, ok := s.namespaces[ns]
	s.mu.RUnlock()
	if ok || !create {
		return n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok = s.namespaces[ns]; ok {
		return n
	}
	n = newNamespaceData()
	s.namespaces[ns] = n
	return n
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func matchesFilters(metadata map[string]any, filters Filters) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (s *InMemoryStore) checkDimension(vec embedding.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(vec)
		return nil
	}
	if len(vec) != s.dimension {
		return rerrors.ValidationError("embedding", "embedding dimension mismatch", nil)
	}
	return nil
}

// upsert stores doc under id in namespace ns, maintaining the norm
// cache and the per-namespace HNSW graph (lazy delete + re-add on
// update, to sidestep coder/hnsw's last-node deletion issue the same
// way the reference implementation this is grounded on does).
func (s *InMemoryStore) upsert(ctx context.Context, id string, doc VectorDocument, ns string) error {
	if id == "" {
		return rerrors.ValidationError("id", "id must not be empty", nil)
	}
	if len(doc.Embedding) == 0 {
		return rerrors.ValidationError("embedding", "embedding must not be empty", nil)
	}
	if err := s.checkDimension(doc.Embedding); err != nil {
		return err
	}

	n := s.namespace(ns, true)

	n.mu.Lock()
	_, existed := n.docs[id]
	n.mu.Unlock()

	if !existed {
		s.mu.Lock()
		if s.capacity > 0 && s.count >= s.capacity {
			s.mu.Unlock()
			return rerrors.ServerError("vector store capacity exceeded", nil)
		}
		s.count++
		s.mu.Unlock()
	}

	n.mu.Lock()

	stored := doc
	stored.ID = id
	stored.Metadata = cloneMetadata(doc.Metadata)
	n.docs[id] = &stored
	n.norms[id] = doc.Embedding.Norm()

	if existingKey, ok := n.idMap[id]; ok {
		delete(n.keyMap, existingKey)
		delete(n.idMap, id)
	}
	key := n.nextKey
	n.nextKey++
	vec := make([]float32, len(doc.Embedding))
	copy(vec, doc.Embedding)
	n.graph.Add(hnsw.MakeNode(key, vec))
	n.idMap[id] = key
	n.keyMap[key] = id

	n.mu.Unlock()

	s.persistIfConfigured()
	return nil
}

// StoreEmbedding implements Store.
func (s *InMemoryStore) StoreEmbedding(ctx context.Context, id string, vec embedding.Vector, metadata map[string]any, ns string) error {
	return s.upsert(ctx, id, VectorDocument{ID: id, Embedding: vec, Metadata: metadata}, ns)
}

// StoreEmbeddingBatch implements Store. Idempotent by id: re-storing
// an existing id replaces it in place.
func (s *InMemoryStore) StoreEmbeddingBatch(ctx context.Context, docs []VectorDocument, ns string) error {
	for _, d := range docs {
		if err := s.upsert(ctx, d.ID, d, ns); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDocument implements Store.
func (s *InMemoryStore) UpsertDocument(ctx context.Context, doc VectorDocument, ns string) error {
	if len(doc.Embedding) == 0 {
		return rerrors.ValidationError("embedding", "document must have an embedding to be upserted", nil)
	}
	return s.upsert(ctx, doc.ID, doc, ns)
}

// UpsertDocumentBatch implements Store.
func (s *InMemoryStore) UpsertDocumentBatch(ctx context.Context, docs []VectorDocument, ns string) error {
	for _, d := range docs {
		if err := s.UpsertDocument(ctx, d, ns); err != nil {
			return err
		}
	}
	return nil
}

// GetDocument implements Store.
func (s *InMemoryStore) GetDocument(ctx context.Context, id, ns string) (*VectorDocument, error) {
	n := s.namespace(ns, false)
	if n == nil {
		return nil, rerrors.ResourceNotFoundError("vector_document", id, "namespace not found")
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	d, ok := n.docs[id]
	if !ok {
		return nil, rerrors.ResourceNotFoundError("vector_document", id, "document not found")
	}
	out := *d
	out.Metadata = cloneMetadata(d.Metadata)
	return &out, nil
}

// GetEmbedding implements Store.
func (s *InMemoryStore) GetEmbedding(ctx context.Context, id, ns string) (embedding.Vector, error) {
	d, err := s.GetDocument(ctx, id, ns)
	if err != nil {
		return nil, err
	}
	return d.Embedding, nil
}

// Exists implements Store.
func (s *InMemoryStore) Exists(ctx context.Context, id, ns string) (bool, error) {
	n := s.namespace(ns, false)
	if n == nil {
		return false, nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.docs[id]
	return ok, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(ctx context.Context, id, ns string) error {
	n := s.namespace(ns, false)
	if n == nil {
		return nil
	}
	n.mu.Lock()
	if _, ok := n.docs[id]; ok {
		delete(n.docs, id)
		delete(n.norms, id)
		if key, ok := n.idMap[id]; ok {
			delete(n.keyMap, key)
			delete(n.idMap, id)
		}
		s.mu.Lock()
		s.count--
		s.mu.Unlock()
	}
	n.mu.Unlock()
	s.persistIfConfigured()
	return nil
}

// DeleteBatch implements Store.
func (s *InMemoryStore) DeleteBatch(ctx context.Context, ids []string, ns string) error {
	for _, id := range ids {
		if err := s.Delete(ctx, id, ns); err != nil {
			return err
		}
	}
	return nil
}

// CreateNamespace implements Store.
func (s *InMemoryStore) CreateNamespace(ctx context.Context, ns string) error {
	s.namespace(ns, true)
	return nil
}

// DeleteNamespace implements Store.
func (s *InMemoryStore) DeleteNamespace(ctx context.Context, ns string) error {
	ns = resolveNamespace(ns)
	s.mu.Lock()
	if n, ok := s.namespaces[ns]; ok {
		s.count -= len(n.docs)
		delete(s.namespaces, ns)
	}
	s.mu.Unlock()
	s.persistIfConfigured()
	return nil
}

// ListNamespaces implements Store.
func (s *InMemoryStore) ListNamespaces(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.namespaces))
	for ns := range s.namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

// FindSimilar implements Store.
func (s *InMemoryStore) FindSimilar(ctx context.Context, queryEmb embedding.Vector, limit int, threshold *float64, ns string, filters Filters) ([]ScoredVectorDocument, error) {
	n := s.namespace(ns, false)
	if n == nil {
		return nil, nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(filters) > 0 || len(n.docs) < hnswThreshold {
		return bruteForce(n, queryEmb, limit, threshold, filters), nil
	}
	return annSearch(n, queryEmb, limit, threshold), nil
}

// FindSimilarDocuments implements Store; identical ranking to
// FindSimilar, kept as a distinct method per the C5 contract surface.
func (s *InMemoryStore) FindSimilarDocuments(ctx context.Context, queryEmb embedding.Vector, limit int, threshold *float64, ns string, filters Filters) ([]ScoredVectorDocument, error) {
	return s.FindSimilar(ctx, queryEmb, limit, threshold, ns, filters)
}

func bruteForce(n *namespaceData, queryEmb embedding.Vector, limit int, threshold *float64, filters Filters) []ScoredVectorDocument {
	queryNorm := embedding.Vector(queryEmb).Norm()

	var scored []ScoredVectorDocument
	for id, doc := range n.docs {
		if !matchesFilters(doc.Metadata, filters) {
			continue
		}
		score := cosineWithNorms(queryEmb, queryNorm, doc.Embedding, n.norms[id])
		if threshold != nil && score < *threshold {
			continue
		}
		scored = append(scored, ScoredVectorDocument{Document: cloneDoc(doc), Score: score})
	}
	return topN(scored, limit)
}

func annSearch(n *namespaceData, queryEmb embedding.Vector, limit int, threshold *float64) []ScoredVectorDocument {
	if n.graph.Len() == 0 {
		return nil
	}
	query := make([]float32, len(queryEmb))
	copy(query, queryEmb)

	k := limit * overfetchFactor
	if k < limit {
		k = limit
	}
	nodes := n.graph.Search(query, k)

	queryNorm := embedding.Vector(queryEmb).Norm()
	var scored []ScoredVectorDocument
	for _, node := range nodes {
		id, ok := n.keyMap[node.Key]
		if !ok {
			continue // lazily-deleted node, no longer a valid document
		}
		doc, ok := n.docs[id]
		if !ok {
			continue
		}
		// Re-score exactly from doc.Embedding and its cached norm; the
		// graph only supplies the candidate set.
		score := cosineWithNorms(queryEmb, queryNorm, doc.Embedding, n.norms[id])
		if threshold != nil && score < *threshold {
			continue
		}
		scored = append(scored, ScoredVectorDocument{Document: cloneDoc(doc), Score: score})
	}
	return topN(scored, limit)
}

func cosineWithNorms(a embedding.Vector, aNorm float64, b embedding.Vector, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

func cloneDoc(d *VectorDocument) VectorDocument {
	out := *d
	out.Metadata = cloneMetadata(d.Metadata)
	return out
}

func topN(scored []ScoredVectorDocument, limit int) []ScoredVectorDocument {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// Close implements Store. The in-memory backend holds no external
// resources beyond an optional snapshot file handle, which is not
// kept open between writes.
func (s *InMemoryStore) Close() error {
	return nil
}

var _ Store = (*InMemoryStore)(nil)
