// Package speech holds the request/response contracts for the external
// recognition, translation, and synthesis services, plus their clients.
package speech

import (
	"context"
	"fmt"

	"github.com/ent0n29/voicebridge/internal/reliability"
)

// Recognizer turns normalized 16-bit mono WAV audio into a transcript. An
// empty languageHint means auto detection. An empty transcript is a valid
// result meaning no speech was found.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte, languageHint string) (string, error)
}

// Translator translates text into targetLanguage.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Synthesizer renders text as encoded audio in language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status suggests a later attempt may succeed.
func (e *StatusError) Retryable() bool {
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}
