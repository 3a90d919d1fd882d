package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/voicebridge/internal/lang"
)

// MockProvider is a local stand-in used when no cloud credentials are
// configured. It never fails and never calls the network.
type MockProvider struct {
	// Transcript is returned for any non-empty clip.
	Transcript string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Transcript: "simulated voice input"}
}

func (p *MockProvider) Recognize(_ context.Context, wav []byte, _ string) (string, error) {
	if len(wav) <= wavHeaderLen {
		return "", nil
	}
	return p.Transcript, nil
}

// Translate tags the text with the target base language.
func (p *MockProvider) Translate(_ context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return fmt.Sprintf("[%s] %s", lang.Base(targetLanguage), text), nil
}

// Synthesize returns the text bytes as the audio payload.
func (p *MockProvider) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	return []byte(text), nil
}

const wavHeaderLen = 44
