package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fabfab/docqa/docstore"
	"github.com/fabfab/docqa/embeddings"
	"github.com/fabfab/docqa/llm"
	"github.com/fabfab/docqa/logging"
)

const (
	defaultSimilarityLimit = 4
	answerTemperature      = 0.3
)

var ErrInvalidRequest = errors.New("missing question or documentId")

const promptTemplate = `You are a helpful AI assistant. Using the following context from a document, please answer the user's question accurately and concisely. If the context doesn't contain relevant information to answer the question, please say so.

Context:
%s

Question: %s

Answer:
`

type Service struct {
	store    docstore.Store
	embedder embeddings.Embedder
	llm      llm.Client
	logger   *zap.Logger
	limit    int
}

func NewService(store docstore.Store, embedder embeddings.Embedder, llmClient llm.Client, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		llm:      llmClient,
		logger:   logging.OrNop(logger),
		limit:    defaultSimilarityLimit,
	}
}

// Ask answers question from the chunks of one document. Provider failures are
// folded into the returned Answer; only ErrInvalidRequest is returned as an
// error.
func (s *Service) Ask(ctx context.Context, question, documentID string) (Answer, error) {
	question = strings.TrimSpace(question)
	documentID = strings.TrimSpace(documentID)
	if question == "" || documentID == "" {
		return Answer{}, ErrInvalidRequest
	}

	log := s.logger.With(zap.String("document_id", documentID))

	answer, err := s.answer(ctx, question, documentID)
	if err != nil {
		log.Error("error processing the question", zap.Error(err))
		return Answer{Text: ErrorAnswer, Outcome: OutcomeProviderError, Err: err, Matches: answer.Matches}, nil
	}

	log.Debug("answered question", zap.String("outcome", string(answer.Outcome)), zap.Int("matches", len(answer.Matches)))
	return answer, nil
}

func (s *Service) answer(ctx context.Context, question, documentID string) (Answer, error) {
	if s.store == nil || s.embedder == nil || s.llm == nil {
		return Answer{}, fmt.Errorf("chat service is not fully configured")
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) != 1 {
		return Answer{}, fmt.Errorf("expected 1 question embedding, got %d", len(vectors))
	}

	matches, err := s.store.Query(ctx, vectors[0], documentID, s.limit)
	if err != nil {
		return Answer{}, fmt.Errorf("query document store: %w", err)
	}
	if len(matches) == 0 {
		return Answer{Text: NoContextAnswer, Outcome: OutcomeNoContext}, nil
	}

	prompt := BuildPrompt(matches, question)
	out, err := s.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.WithTemperature(answerTemperature))
	if err != nil {
		return Answer{Matches: matches}, fmt.Errorf("generate answer: %w", err)
	}
	if out == "" {
		return Answer{Text: EmptyResponseAnswer, Outcome: OutcomeEmptyResponse, Matches: matches}, nil
	}

	return Answer{Text: out, Outcome: OutcomeAnswered, Matches: matches}, nil
}

// BuildPrompt embeds the match contents, in store order, in the answer
// template.
func BuildPrompt(matches []docstore.Match, question string) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}
