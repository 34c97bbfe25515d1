// Package history persists the client-side chat transcript per document.
package history

import (
	"context"
	"time"
)

const keyPrefix = "chat_history_"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	DocumentID string    `json:"documentId"`
}

// Store holds one ordered message list per document. Get on an unknown
// document returns an empty list.
type Store interface {
	Get(ctx context.Context, documentID string) ([]Message, error)
	Put(ctx context.Context, documentID string, messages []Message) error
	Clear(ctx context.Context, documentID string) error
}

// Key is the storage key of a document's transcript.
func Key(documentID string) string {
	return keyPrefix + documentID
}
