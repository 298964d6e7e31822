// Package chunk implements language-aware document splitting with
// overlap (C3): documents too large for a single embedding call are
// broken into ordered, overlapping pieces, preserving enough parent
// metadata to reassemble or attribute the source.
package chunk

import (
	"github.com/aman-cerp/ragcore/internal/document"
	rerrors "github.com/aman-cerp/ragcore/internal/errors"
)

// Options configures a chunking pass. ChunkSize and Overlap are
// expressed as an approximate token budget; PreserveMetadata copies
// the parent document's metadata into every chunk before the
// chunk-specific keys are added. Language, when empty, is detected
// from the document's content.
type Options struct {
	ChunkSize        int
	Overlap          int
	PreserveMetadata bool
	Language         string
}

const defaultOverlap = 64

// withDefaults fills a non-positive Overlap with the package default.
// ChunkSize has no default: ChunkDocument rejects a non-positive one.
func (o Options) withDefaults() Options {
	if o.Overlap <= 0 {
		o.Overlap = defaultOverlap
	}
	return o
}

// ChunkDocument splits doc into one or more documents per Options. If
// the content already fits within the adjusted size, doc is returned
// unchanged (as a single-element slice, not chunked).
func ChunkDocument(doc *document.Document, opts Options) ([]*document.Document, error) {
	opts = opts.withDefaults()
	if opts.ChunkSize <= 0 {
		return nil, rerrors.ValidationError("chunkSize", "chunkSize must be > 0", nil)
	}
	if opts.Overlap >= opts.ChunkSize {
		return nil, rerrors.ValidationError("overlap", "overlap must be less than chunkSize", nil)
	}

	language := opts.Language
	if language == "" {
		language = detectLanguage(doc.Content)
	}

	cpt := charsPerTokenFor(language)
	adjustedSize := int(float64(opts.ChunkSize) * 4.0 / cpt)
	adjustedOverlap := int(float64(opts.Overlap) * 4.0 / cpt)

	if len(doc.Content) <= adjustedSize {
		return []*document.Document{doc.Clone()}, nil
	}

	segments := segmentsFor(doc.Content, language, adjustedSize)
	bodies := assemble(segments, adjustedSize, adjustedOverlap)

	out := make([]*document.Document, len(bodies))
	for i, body := range bodies {
		out[i] = newChunkDocument(doc, body, i, len(bodies), language, opts.PreserveMetadata)
	}
	return out, nil
}

// ChunkDocuments chunks every document in docs independently. A
// failure chunking one document is recorded against errs (by index)
// and that document is preserved unchanged in the output, so a single
// bad document never drops the rest of the batch.
func ChunkDocuments(docs []*document.Document, opts Options) ([]*document.Document, map[int]error) {
	var out []*document.Document
	errs := make(map[int]error)

	for i, d := range docs {
		if d == nil {
			errs[i] = rerrors.ValidationError("document", "document must not be nil", nil)
			continue
		}
		chunks, err := ChunkDocument(d, opts)
		if err != nil {
			errs[i] = err
			out = append(out, d.Clone())
			continue
		}
		out = append(out, chunks...)
	}
	return out, errs
}

// segmentsFor picks the segmentation strategy for language: a
// supplemental tree-sitter code segmenter when language names a
// recognized programming language, fixed-char windows for CJK/Thai,
// and the paragraph/sentence/word chain otherwise.
func segmentsFor(content, language string, adjustedSize int) []string {
	if isCodeLanguage(language) {
		if segments := segmentCode(content, language); len(segments) > 1 {
			return segments
		}
		// Parser found no usable boundaries: fall through to the prose chain.
	}
	if isCJKOrThai(language) {
		window := max(adjustedSize/10, 1)
		return cjkSegmenter{windowSize: window}.segment(content)
	}
	return segmentChain(content)
}

// assemble greedily packs segments into chunks, closing the current
// chunk before a segment that would take it past adjustedSize and
// seeding the next chunk with the trailing adjustedOverlap characters
// of the one just closed. A segment is never split, so a segment
// longer than adjustedSize yields a chunk longer than adjustedSize.
func assemble(segments []string, adjustedSize, adjustedOverlap int) []string {
	if len(segments) == 0 {
		return nil
	}

	var chunks []string
	var current []rune

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, string(current))
	}

	for _, seg := range segments {
		segRunes := []rune(seg)
		if len(current) > 0 && len(current)+1+len(segRunes) > adjustedSize {
			flush()
			current = overlapTail(current, adjustedOverlap)
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, segRunes...)
	}
	flush()
	return chunks
}

func overlapTail(current []rune, adjustedOverlap int) []rune {
	if adjustedOverlap <= 0 || len(current) == 0 {
		return nil
	}
	start := max(len(current)-adjustedOverlap, 0)
	tail := make([]rune, len(current)-start)
	copy(tail, current[start:])
	return tail
}

func newChunkDocument(parent *document.Document, body string, index, total int, language string, preserveMetadata bool) *document.Document {
	out := parent.Clone()
	out.ID = ""
	out.Content = body
	out.Embedding = nil

	metadata := make(map[string]any)
	if preserveMetadata {
		for k, v := range parent.Metadata {
			metadata[k] = v
		}
	}
	metadata["chunk_index"] = index
	metadata["total_chunks"] = total
	metadata["parent_document_id"] = parent.ID
	metadata["language"] = language
	out.Metadata = metadata

	return out
}
