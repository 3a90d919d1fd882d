package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoogleRecognizerJoinsTranscripts(t *testing.T) {
	var got googleRecognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k1", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[
			{"alternatives":[{"transcript":"hello","confidence":0.9}]},
			{"alternatives":[]},
			{"alternatives":[{"transcript":"world"}]}
		]}`))
	}))
	defer srv.Close()

	rec, err := NewGoogleRecognizer(GoogleConfig{APIKey: "k1", SpeechURL: srv.URL})
	require.NoError(t, err)

	text, err := rec.Recognize(context.Background(), []byte("RIFFdata"), "es-ES")
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
	require.Equal(t, "LINEAR16", got.Config.Encoding)
	require.Equal(t, 16000, got.Config.SampleRateHertz)
	require.Equal(t, "es-ES", got.Config.LanguageCode)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFFdata")), got.Audio.Content)
}

func TestGoogleRecognizerDefaultsLanguageAndHandlesSilence(t *testing.T) {
	var got googleRecognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rec, err := NewGoogleRecognizer(GoogleConfig{APIKey: "k1", SpeechURL: srv.URL})
	require.NoError(t, err)

	text, err := rec.Recognize(context.Background(), []byte("x"), "")
	require.NoError(t, err)
	require.Empty(t, text)
	require.Equal(t, "en-US", got.Config.LanguageCode)
}

func TestGoogleRecognizerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec, err := NewGoogleRecognizer(GoogleConfig{APIKey: "k1", SpeechURL: srv.URL})
	require.NoError(t, err)

	_, err = rec.Recognize(context.Background(), []byte("x"), "en-US")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	require.Equal(t, "quota", se.Body)
	require.True(t, se.Retryable())
}

func TestGoogleSynthesizer(t *testing.T) {
	var got googleSynthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(googleSynthesizeResponse{
			AudioContent: base64.StdEncoding.EncodeToString([]byte("mp3bytes")),
		})
	}))
	defer srv.Close()

	syn, err := NewGoogleSynthesizer(GoogleConfig{APIKey: "k1", TTSURL: srv.URL})
	require.NoError(t, err)

	audio, err := syn.Synthesize(context.Background(), "hola", "es-ES")
	require.NoError(t, err)
	require.Equal(t, []byte("mp3bytes"), audio)
	require.Equal(t, "hola", got.Input.Text)
	require.Equal(t, "es-ES", got.Voice.LanguageCode)
	require.Equal(t, "MP3", got.AudioConfig.AudioEncoding)
}

func TestGoogleSynthesizerMissingAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	syn, err := NewGoogleSynthesizer(GoogleConfig{APIKey: "k1", TTSURL: srv.URL})
	require.NoError(t, err)
	_, err = syn.Synthesize(context.Background(), "hola", "")
	require.Error(t, err)
}

func TestGoogleClientsRequireKey(t *testing.T) {
	_, err := NewGoogleRecognizer(GoogleConfig{})
	require.Error(t, err)
	_, err = NewGoogleSynthesizer(GoogleConfig{})
	require.Error(t, err)
}
