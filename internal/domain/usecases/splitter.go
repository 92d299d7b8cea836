// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// LengthFunc measures a piece of text in chunking units.
type LengthFunc func(string) int

// RuneLength counts characters.
func RuneLength(s string) int { return utf8.RuneCountInString(s) }

// DefaultSeparators go from coarsest to finest. The empty separator splits
// into single characters and always matches.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits text on the coarsest separator present and only
// recurses into finer separators for pieces that are still too long.
// Separators are kept at the head of the piece that follows them.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	length       LengthFunc
}

// NewRecursiveSplitter validates the sizes. A nil length counts runes.
func NewRecursiveSplitter(chunkSize, chunkOverlap int, length LengthFunc) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", entities.ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", entities.ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	if length == nil {
		length = RuneLength
	}
	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
		length:       length,
	}, nil
}

// ChunkSize returns the configured target size.
func (s *RecursiveSplitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap.
func (s *RecursiveSplitter) ChunkOverlap() int { return s.chunkOverlap }

// SplitDocument splits doc into chunks numbered from zero.
func (s *RecursiveSplitter) SplitDocument(doc entities.Document) []entities.Chunk {
	texts := s.SplitText(doc.Content)
	chunks := make([]entities.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = entities.Chunk{Text: text, Source: doc.Source, Seq: i}
	}
	return chunks
}

// SplitText returns trimmed, non-empty chunks of text.
func (s *RecursiveSplitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if s.length(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(finer) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, finer)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge packs pieces into chunks of at most chunkSize, carrying up to
// chunkOverlap units of the previous chunk's tail into the next one.
// Separators already live inside the pieces, so pieces are joined directly.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		lengths []int
		total   int
	)
	for _, piece := range pieces {
		n := s.length(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			if doc := joinChunk(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (total+n > s.chunkSize && total > 0) {
				total -= lengths[0]
				current = current[1:]
				lengths = lengths[1:]
			}
		}
		current = append(current, piece)
		lengths = append(lengths, n)
		total += n
	}
	if doc := joinChunk(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinChunk(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeepingSeparator splits text so that each separator starts the piece
// that follows it. Empty pieces are dropped.
func splitKeepingSeparator(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	var pieces []string
	start := 0
	for from := 0; ; {
		idx := strings.Index(text[from:], separator)
		if idx < 0 {
			break
		}
		cut := from + idx
		if cut > start {
			pieces = append(pieces, text[start:cut])
		}
		start = cut
		from = cut + len(separator)
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
