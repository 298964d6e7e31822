package document

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/aman-cerp/ragcore/internal/embedding"
	rerrors "github.com/aman-cerp/ragcore/internal/errors"
	"github.com/aman-cerp/ragcore/internal/storage"
)

// bleveDoc is the shape indexed into bleve; title and content are both
// indexed for candidate retrieval, and the final score comes from
// keywordScore's weight table rather than from bleve.
type bleveDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store is the in-memory document store (C2).
type Store struct {
	mu sync.RWMutex

	docs  map[string]*Document
	order []string // insertion order, for stable tie-breaking

	collections map[string]*Collection

	index bleve.Index

	persist storage.Storage
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithStorage opts the store into persisting documents and collections to s
// under document_<id> and collection_<id> keys, per the Storage contract.
// Persistence is best-effort alongside the in-memory index, which remains
// the store's source of truth for reads.
func WithStorage(s storage.Storage) Option {
	return func(st *Store) { st.persist = s }
}

// New creates an empty document store with a fresh in-memory keyword index.
func New(opts ...Option) (*Store, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, rerrors.ServerError("failed to create keyword index", err)
	}
	s := &Store{
		docs:        make(map[string]*Document),
		collections: make(map[string]*Collection),
		index:       idx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persist != nil {
		if err := s.persist.Initialize(context.Background()); err != nil {
			return nil, rerrors.ServerError("failed to initialize document storage", err)
		}
	}
	return s, nil
}

func (s *Store) saveDocument(d *Document) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveObject(context.Background(), "document_"+d.ID, d); err != nil {
		return rerrors.ServerError("failed to persist document", err)
	}
	return nil
}

func (s *Store) deleteDocumentKey(id string) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Delete(context.Background(), "document_"+id); err != nil {
		return rerrors.ServerError("failed to remove persisted document", err)
	}
	return nil
}

func (s *Store) saveCollection(c *Collection) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveObject(context.Background(), "collection_"+c.ID, c); err != nil {
		return rerrors.ServerError("failed to persist collection", err)
	}
	return nil
}

// AddDocument inserts doc, assigning an id if doc.ID is empty.
func (s *Store) AddDocument(doc *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(doc)
}

// AddDocuments inserts multiple documents in order.
func (s *Store) AddDocuments(docs []*Document) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		stored, err := s.addLocked(d)
		if err != nil {
			return out, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (s *Store) addLocked(doc *Document) (*Document, error) {
	stored := doc.Clone()
	if stored.ID == "" {
		stored.ID = generateID()
	}
	stored.UpdatedAt = nextTimestamp(stored.UpdatedAt)
	if _, exists := s.docs[stored.ID]; !exists {
		s.order = append(s.order, stored.ID)
	}
	s.docs[stored.ID] = stored

	if err := s.index.Index(stored.ID, bleveDoc{Title: stored.Title, Content: stored.Content}); err != nil {
		return nil, rerrors.ServerError("failed to index document", err)
	}
	if err := s.saveDocument(stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// GetDocument returns a copy of the document with id, or a not-found error.
func (s *Store) GetDocument(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, rerrors.ResourceNotFoundError("document", id, "document not found")
	}
	return d.Clone(), nil
}

// UpdateDocument replaces the stored document for updated.ID. Fails with a
// resourceNotFound error if the id is absent.
func (s *Store) UpdateDocument(updated *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[updated.ID]
	if !ok {
		return nil, rerrors.ResourceNotFoundError("document", updated.ID, "document not found")
	}

	stored := updated.Clone()
	stored.UpdatedAt = nextTimestamp(existing.UpdatedAt)
	s.docs[stored.ID] = stored

	if err := s.index.Index(stored.ID, bleveDoc{Title: stored.Title, Content: stored.Content}); err != nil {
		return nil, rerrors.ServerError("failed to reindex document", err)
	}
	if err := s.saveDocument(stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// DeleteDocument removes the document with id, if present.
func (s *Store) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) error {
	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if err := s.index.Delete(id); err != nil {
		return err
	}
	return s.deleteDocumentKey(id)
}

// DeleteDocuments removes every document in ids.
func (s *Store) DeleteDocuments(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if err := s.deleteLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// CreateCollection inserts a collection, assigning an id if empty.
func (s *Store) CreateCollection(c *Collection) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := c.Clone()
	if stored.ID == "" {
		stored.ID = "col_" + generateID()[len("doc_"):]
	}
	s.collections[stored.ID] = stored
	if err := s.saveCollection(stored); err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// GetCollection returns a copy of the collection with id.
func (s *Store) GetCollection(id string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[id]
	if !ok {
		return nil, rerrors.ResourceNotFoundError("collection", id, "collection not found")
	}
	return c.Clone(), nil
}

// DeleteCollection removes the collection with id. Per contract this does
// not cascade to documents referencing it.
func (s *Store) DeleteCollection(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, id)
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Delete(context.Background(), "collection_"+id); err != nil {
		return rerrors.ServerError("failed to remove persisted collection", err)
	}
	return nil
}

// GetDocumentsInCollection returns every document whose CollectionID == id,
// in insertion order.
func (s *Store) GetDocumentsInCollection(id string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Document
	for _, docID := range s.order {
		d := s.docs[docID]
		if d.CollectionID == id {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// DeleteDocumentsInCollection removes every document scoped to id, returning
// the number deleted.
func (s *Store) DeleteDocumentsInCollection(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []string
	for _, docID := range s.order {
		if s.docs[docID].CollectionID == id {
			toDelete = append(toDelete, docID)
		}
	}
	for _, docID := range toDelete {
		if err := s.deleteLocked(docID); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}

// FindSimilar ranks every document carrying a non-empty embedding against
// queryEmbedding by cosine similarity, filters by minScore if set, and
// returns the top limit, ties broken by insertion order.
func (s *Store) FindSimilar(queryEmbedding embedding.Vector, limit int, minScore *float64) ([]ScoredDocument, error) {
	return s.findSimilar(queryEmbedding, limit, minScore, "", false)
}

// FindSimilarInCollection is FindSimilar scoped to a single collection.
func (s *Store) FindSimilarInCollection(collectionID string, queryEmbedding embedding.Vector, limit int, minScore *float64) ([]ScoredDocument, error) {
	return s.findSimilar(queryEmbedding, limit, minScore, collectionID, true)
}

func (s *Store) findSimilar(queryEmbedding embedding.Vector, limit int, minScore *float64, collectionID string, scoped bool) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type indexed struct {
		doc   ScoredDocument
		order int
	}
	var candidates []indexed

	for i, docID := range s.order {
		d := s.docs[docID]
		if len(d.Embedding) == 0 {
			continue
		}
		if scoped && d.CollectionID != collectionID {
			continue
		}
		score, err := embedding.Cosine(queryEmbedding, d.Embedding)
		if err != nil {
			continue // dimension mismatch: skip rather than fail the whole query
		}
		if minScore != nil && score < *minScore {
			continue
		}
		candidates = append(candidates, indexed{doc: ScoredDocument{Document: d.Clone(), Score: score}, order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].doc.Score != candidates[j].doc.Score {
			return candidates[i].doc.Score > candidates[j].doc.Score
		}
		return candidates[i].order < candidates[j].order
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]ScoredDocument, len(candidates))
	for i, c := range candidates {
		out[i] = c.doc
	}
	return out, nil
}

// SearchByContent scores documents against query using bleve for candidate
// retrieval/tokenization and the spec's deterministic weight table for the
// final score: +100 exact title match, +50 title contains, +25 content
// contains, +5 per additional content occurrence. Documents scoring 0 are
// dropped.
func (s *Store) SearchByContent(queryStr string, limit int) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trimmed := strings.TrimSpace(queryStr)
	if trimmed == "" {
		return nil, nil
	}

	q := bleve.NewDisjunctionQuery(
		bleve.NewMatchQuery(trimmed),
		bleve.NewMatchPhraseQuery(trimmed),
	)
	req := bleve.NewSearchRequestOptions(q, max(len(s.docs), 1), 0, false)
	res, err := s.index.SearchInContext(context.Background(), req)
	if err != nil {
		return nil, rerrors.ServerError("keyword search failed", err)
	}

	lowerQuery := strings.ToLower(trimmed)

	type indexed struct {
		doc   ScoredDocument
		order int
	}
	var scored []indexed
	orderOf := make(map[string]int, len(s.order))
	for i, id := range s.order {
		orderOf[id] = i
	}

	for _, hit := range res.Hits {
		d, ok := s.docs[hit.ID]
		if !ok {
			continue
		}
		score := keywordScore(d, lowerQuery)
		if score == 0 {
			continue
		}
		scored = append(scored, indexed{doc: ScoredDocument{Document: d.Clone(), Score: score}, order: orderOf[hit.ID]})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].doc.Score != scored[j].doc.Score {
			return scored[i].doc.Score > scored[j].doc.Score
		}
		return scored[i].order < scored[j].order
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]ScoredDocument, len(scored))
	for i, c := range scored {
		out[i] = c.doc
	}
	return out, nil
}

func keywordScore(d *Document, lowerQuery string) float64 {
	title := strings.ToLower(d.Title)
	content := strings.ToLower(d.Content)

	var score float64
	if title == lowerQuery {
		score += 100
	} else if strings.Contains(title, lowerQuery) {
		score += 50
	}

	if occurrences := strings.Count(content, lowerQuery); occurrences > 0 {
		score += 25
		if occurrences > 1 {
			score += 5 * float64(occurrences-1)
		}
	}
	return score
}

func nextTimestamp(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
