package ingestion

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word,
// character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// TextSplitter splits text recursively, falling back to a finer separator only
// for pieces that are still too long. Lengths are counted in runes.
type TextSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

type SplitterOption func(*TextSplitter)

func WithChunkSize(size int) SplitterOption {
	return func(s *TextSplitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

func WithOverlap(overlap int) SplitterOption {
	return func(s *TextSplitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

func NewTextSplitter(opts ...SplitterOption) *TextSplitter {
	s := &TextSplitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize - 1
	}
	return s
}

// Split returns the chunks of text in document order. Blank input yields nil.
func (s *TextSplitter) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *TextSplitter) split(text string, separators []string) []string {
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

	chunks := make([]string, 0)
	good := make([]string, 0)
	for _, piece := range splitOn(text, separator) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good, separator)...)
			good = good[:0]
		}
		if len(finer) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, finer)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good, separator)...)
	}
	return chunks
}

// merge packs small pieces into chunks of at most chunkSize, carrying up to
// overlap runes of trailing pieces into the next chunk.
func (s *TextSplitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)
	out := make([]string, 0)
	current := make([]string, 0)
	total := 0

	joinedLen := func(n int) int {
		if len(current) > 0 {
			return total + n + sepLen
		}
		return total + n
	}

	for _, piece := range pieces {
		n := runeLen(piece)
		if joinedLen(n) > s.chunkSize && len(current) > 0 {
			if doc := join(current, separator); doc != "" {
				out = append(out, doc)
			}
			for total > s.overlap || (joinedLen(n) > s.chunkSize && total > 0) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := join(current, separator); doc != "" {
		out = append(out, doc)
	}
	return out
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, separator)
	}

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return kept
}

func join(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
