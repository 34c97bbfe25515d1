package ingestion

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/llm"
)

const (
	summarySystemPrompt = "You are an AI assistant that generates clear and structured summaries of academic papers."
	summaryUserPrompt   = "Summarize the following research paper extract, preserving key insights and findings. Keep it informative and concise, no more than 100 words:\n\n\"\"\"%s\"\"\""

	SummaryTemperature = 0.3
	MaxSummaryWords    = 100
)

func summarize(ctx context.Context, client llm.Client, text string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(summaryUserPrompt, text)},
	}

	out, err := client.Generate(ctx, messages, llm.WithTemperature(SummaryTemperature))
	if err != nil {
		return "", err
	}
	return TruncateWords(strings.TrimSpace(out), MaxSummaryWords), nil
}

// summarySource picks the text handed to the summarizer.
func summarySource(policy string, maxChars int, pages []Page, chunks []Chunk) string {
	if policy == config.SummaryFullDocument {
		texts := make([]string, 0, len(pages))
		for _, p := range pages {
			if strings.TrimSpace(p.Text) != "" {
				texts = append(texts, p.Text)
			}
		}
		return truncateRunes(strings.Join(texts, "\n\n"), maxChars)
	}
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0].Content
}

// TruncateWords keeps the first limit whitespace-separated words of s,
// preserving the original spacing between them.
func TruncateWords(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	words := 0
	inWord := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord && words == limit {
				return s[:i]
			}
			inWord = false
			continue
		}
		if !inWord {
			inWord = true
			words++
		}
	}
	return s
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
