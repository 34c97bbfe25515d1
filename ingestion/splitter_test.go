package ingestion_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/docqa/ingestion"
)

func TestSplitterKeepsShortTextWhole(t *testing.T) {
	s := ingestion.NewTextSplitter()
	assert.Equal(t, []string{"A short abstract."}, s.Split("A short abstract."))
}

func TestSplitterHandlesBlankInput(t *testing.T) {
	s := ingestion.NewTextSplitter()
	assert.Empty(t, s.Split(" \n\n \t"))
}

func TestSplitterPrefersParagraphBoundaries(t *testing.T) {
	s := ingestion.NewTextSplitter(ingestion.WithChunkSize(10), ingestion.WithOverlap(0))
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, s.Split("aaaa bbbb\n\ncccc dddd"))
}

func TestSplitterCarriesOverlap(t *testing.T) {
	s := ingestion.NewTextSplitter(ingestion.WithChunkSize(10), ingestion.WithOverlap(5))
	assert.Equal(t,
		[]string{"one two", "two three", "three four", "four five"},
		s.Split("one two three four five"),
	)
}

func TestSplitterFallsBackToCharacters(t *testing.T) {
	s := ingestion.NewTextSplitter(ingestion.WithChunkSize(4), ingestion.WithOverlap(0))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, s.Split("abcdefghij"))
}

func TestSplitterBoundsChunkSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("Sentence number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" describes a finding. ")
		if i%15 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	s := ingestion.NewTextSplitter()
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), ingestion.DefaultChunkSize)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}

	assert.Equal(t, chunks, s.Split(text), "splitting must be deterministic")
}

func TestSplitterCountsRunes(t *testing.T) {
	s := ingestion.NewTextSplitter(ingestion.WithChunkSize(5), ingestion.WithOverlap(0))
	chunks := s.Split("ééééé ççççç")
	assert.Equal(t, []string{"ééééé", "ççççç"}, chunks)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "one two", ingestion.TruncateWords("one two", 5))
	assert.Equal(t, "one  two", ingestion.TruncateWords("one  two three", 2))
	assert.Equal(t, "", ingestion.TruncateWords("anything", 0))

	long := strings.TrimSpace(strings.Repeat("word ", 150))
	got := ingestion.TruncateWords(long, ingestion.MaxSummaryWords)
	assert.Len(t, strings.Fields(got), ingestion.MaxSummaryWords)
}
