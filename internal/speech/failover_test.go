package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubTranslator struct {
	calls int
	err   error
	out   string
}

func (s *stubTranslator) Translate(context.Context, string, string) (string, error) {
	s.calls++
	return s.out, s.err
}

type stubSynthesizer struct {
	calls int
	err   error
}

func (s *stubSynthesizer) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(text), nil
}

func TestFailoverSwitchesToFallbackAndSticks(t *testing.T) {
	ctx := context.Background()
	primary := &stubTranslator{err: errors.New("quota exceeded")}
	fallback := &stubTranslator{out: "hola"}
	tr := NewFailoverTranslator(primary, fallback)

	for range 2 {
		out, err := tr.Translate(ctx, "hello", "es-ES")
		require.NoError(t, err)
		require.Equal(t, "hola", out)
	}
	require.True(t, tr.FallbackActive())
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 2, fallback.calls)
}

func TestFailoverReturnsToPrimaryWhenFallbackFails(t *testing.T) {
	ctx := context.Background()
	primary := &stubSynthesizer{err: errors.New("503")}
	fallback := &stubSynthesizer{}
	s := NewFailoverSynthesizer(primary, fallback)

	_, err := s.Synthesize(ctx, "hola", "es-ES")
	require.NoError(t, err)
	require.True(t, s.FallbackActive())

	primary.err = nil
	fallback.err = errors.New("down")
	out, err := s.Synthesize(ctx, "hola", "es-ES")
	require.NoError(t, err)
	require.Equal(t, []byte("hola"), out)
	require.False(t, s.FallbackActive())
}

func TestFailoverBothFailKeepsCause(t *testing.T) {
	cause := &StatusError{Provider: "deepl", StatusCode: 456}
	tr := NewFailoverTranslator(&stubTranslator{err: errors.New("primary down")}, &stubTranslator{err: cause})

	_, err := tr.Translate(context.Background(), "hello", "de")
	require.Error(t, err)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "primary down")
	require.False(t, tr.FallbackActive())
}

func TestFailoverDoesNotSwitchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fallback := &stubTranslator{out: "x"}
	tr := NewFailoverTranslator(&stubTranslator{err: context.Canceled}, fallback)

	_, err := tr.Translate(ctx, "hello", "de")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, fallback.calls)
}

func TestFailoverRecognizerUsesMock(t *testing.T) {
	r := NewFailoverRecognizer(&failingRecognizer{}, NewMockProvider())
	out, err := r.Recognize(context.Background(), make([]byte, 100), "en")
	require.NoError(t, err)
	require.Equal(t, "simulated voice input", out)
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(context.Context, []byte, string) (string, error) {
	return "", &StatusError{Provider: "google-stt", StatusCode: 500}
}
