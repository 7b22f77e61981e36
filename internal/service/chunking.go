package service

import (
	"strings"
	"unicode/utf8"

	"github.com/lumenkb/lumen/internal/domain"
)

// ChunkConfig controls how documents are split for embedding.
type ChunkConfig struct {
	// ChunkSize is the maximum chunk length in runes, overlap included.
	ChunkSize int
	// Overlap is the number of trailing runes of one chunk repeated at the
	// start of the next, preserving context across boundaries.
	Overlap int
	// Separators are tried in order; the first one that breaks a piece
	// within the size target wins. An empty string means per-rune splitting
	// as the last resort.
	Separators []string
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:  1000,
		Overlap:    200,
		Separators: []string{"\n\n", "\n", " ", ""},
	}
}

// TextChunk is one window of a document's text. Content carries Overlap
// leading runes repeated from the previous chunk; concatenating the
// non-overlapping remainders in order reproduces the source text exactly.
type TextChunk struct {
	Content string
	Overlap int
}

// splitText splits text into overlapping chunks. An empty input yields no
// chunks. A piece that no separator can reduce is passed through whole even
// when it exceeds the size target.
func splitText(text string, cfg ChunkConfig) []TextChunk {
	if text == "" {
		return nil
	}
	if cfg.ChunkSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = 0
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultChunkConfig().Separators
	}

	// Pieces are capped at the core size so that prepending the overlap
	// never pushes a chunk past ChunkSize.
	coreSize := cfg.ChunkSize - cfg.Overlap
	pieces := splitBySeparators(text, cfg.Separators, coreSize)
	cores := mergePieces(pieces, coreSize)

	chunks := make([]TextChunk, 0, len(cores))
	prev := ""
	for _, core := range cores {
		tail := tailRunes(prev, cfg.Overlap)
		chunks = append(chunks, TextChunk{
			Content: tail + core,
			Overlap: utf8.RuneCountInString(tail),
		})
		prev = core
	}

	return chunks
}

// splitBySeparators recursively breaks text at the highest-priority
// separator that yields pieces within the limit. Separators stay attached to
// the preceding piece so concatenation is lossless.
func splitBySeparators(text string, separators []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	if len(separators) == 0 {
		// Irreducible: nothing left to split on.
		return []string{text}
	}

	sep := separators[0]
	if sep == "" {
		return splitRuneWindows(text, limit)
	}

	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return splitBySeparators(text, separators[1:], limit)
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= limit {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, splitBySeparators(part, separators[1:], limit)...)
	}

	return pieces
}

// splitRuneWindows cuts text into fixed-size rune windows, never inside a
// multi-byte character.
func splitRuneWindows(text string, limit int) []string {
	runes := []rune(text)
	pieces := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// mergePieces greedily packs adjacent pieces into cores up to the limit.
func mergePieces(pieces []string, limit int) []string {
	var cores []string
	var current strings.Builder
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if currentLen > 0 && currentLen+pieceLen > limit {
			cores = append(cores, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}
	if currentLen > 0 {
		cores = append(cores, current.String())
	}

	return cores
}

func tailRunes(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

// splitDocument chunks a document and stamps each chunk with the metadata
// the index stores alongside the embedding.
func splitDocument(doc *domain.Document, cfg ChunkConfig) []domain.Chunk {
	parts := splitText(doc.Content, cfg)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			DocumentID:       doc.ID,
			Index:            i,
			Content:          part.Content,
			Filename:         doc.Name,
			Filepath:         doc.Path,
			Category:         doc.Category,
			SourceModifiedAt: doc.ModifiedAt,
		})
	}
	return chunks
}
