package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/docqa/history"
)

var ErrEmptyMessage = errors.New("message is empty")

type Asker interface {
	Ask(ctx context.Context, question, documentID string) (string, error)
}

// Session is a conversation about one document. The transcript lives in the
// injected history store; the server itself is stateless.
type Session struct {
	asker      Asker
	store      history.Store
	documentID string
	now        func() time.Time
}

func NewSession(asker Asker, store history.Store, documentID string) *Session {
	return &Session{asker: asker, store: store, documentID: documentID, now: time.Now}
}

func (s *Session) DocumentID() string {
	return s.documentID
}

// Send asks question and appends both turns to the transcript. Nothing is
// recorded when the request fails.
func (s *Session) Send(ctx context.Context, question string) (history.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return history.Message{}, ErrEmptyMessage
	}

	transcript, err := s.store.Get(ctx, s.documentID)
	if err != nil {
		return history.Message{}, fmt.Errorf("load history: %w", err)
	}

	asked := s.message(history.RoleUser, question)
	answer, err := s.asker.Ask(ctx, question, s.documentID)
	if err != nil {
		return history.Message{}, err
	}
	reply := s.message(history.RoleAssistant, answer)

	transcript = append(transcript, asked, reply)
	if err := s.store.Put(ctx, s.documentID, transcript); err != nil {
		return reply, fmt.Errorf("save history: %w", err)
	}
	return reply, nil
}

func (s *Session) Messages(ctx context.Context) ([]history.Message, error) {
	return s.store.Get(ctx, s.documentID)
}

func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.documentID)
}

func (s *Session) message(role, content string) history.Message {
	return history.Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		Timestamp:  s.now().UTC(),
		DocumentID: s.documentID,
	}
}
