package chat

import "github.com/fabfab/docqa/docstore"

// Outcome names how a question was resolved. The HTTP surface only exposes
// the answer text; outcomes feed logs and metrics.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeNoContext     Outcome = "no_context"
	OutcomeEmptyResponse Outcome = "empty_response"
	OutcomeProviderError Outcome = "provider_error"
)

const (
	NoContextAnswer     = "I don't know the answer to that question."
	EmptyResponseAnswer = "An unexpected response was received."
	ErrorAnswer         = "An error occurred while processing the question."
)

type Answer struct {
	Text    string
	Outcome Outcome
	// Err is set when Outcome is OutcomeProviderError.
	Err     error
	Matches []docstore.Match
}
