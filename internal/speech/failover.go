package speech

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// failover prefers the primary backend and switches to the fallback after a
// primary failure. Once the fallback succeeds it stays active until it fails
// itself; then the primary is retried. Cancellation never triggers a switch.
type failover[T any] struct {
	name           string
	primary        T
	fallback       T
	fallbackActive atomic.Bool
}

func (f *failover[T]) do(ctx context.Context, call func(T) error) error {
	first, second := f.primary, f.fallback
	firstName, secondName := "primary", "fallback"
	active := f.fallbackActive.Load()
	if active {
		first, second = second, first
		firstName, secondName = secondName, firstName
	}

	err1 := call(first)
	if err1 == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err1, context.Canceled) {
		return err1
	}
	err2 := call(second)
	if err2 != nil {
		return fmt.Errorf("%s %s failed: %v; %s %s failed: %w", f.name, firstName, err1, f.name, secondName, err2)
	}
	f.fallbackActive.Store(!active)
	return nil
}

// FallbackActive reports whether calls currently go to the fallback first.
func (f *failover[T]) FallbackActive() bool { return f.fallbackActive.Load() }

type FailoverRecognizer struct{ failover[Recognizer] }

func NewFailoverRecognizer(primary, fallback Recognizer) *FailoverRecognizer {
	return &FailoverRecognizer{failover[Recognizer]{name: "stt", primary: primary, fallback: fallback}}
}

func (r *FailoverRecognizer) Recognize(ctx context.Context, wav []byte, languageHint string) (string, error) {
	var out string
	err := r.do(ctx, func(p Recognizer) error {
		var err error
		out, err = p.Recognize(ctx, wav, languageHint)
		return err
	})
	return out, err
}

type FailoverTranslator struct{ failover[Translator] }

func NewFailoverTranslator(primary, fallback Translator) *FailoverTranslator {
	return &FailoverTranslator{failover[Translator]{name: "translate", primary: primary, fallback: fallback}}
}

func (t *FailoverTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	var out string
	err := t.do(ctx, func(p Translator) error {
		var err error
		out, err = p.Translate(ctx, text, targetLanguage)
		return err
	})
	return out, err
}

type FailoverSynthesizer struct{ failover[Synthesizer] }

func NewFailoverSynthesizer(primary, fallback Synthesizer) *FailoverSynthesizer {
	return &FailoverSynthesizer{failover[Synthesizer]{name: "tts", primary: primary, fallback: fallback}}
}

func (s *FailoverSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	var out []byte
	err := s.do(ctx, func(p Synthesizer) error {
		var err error
		out, err = p.Synthesize(ctx, text, language)
		return err
	})
	return out, err
}
