package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGoogleSpeechURL = "https://speech.googleapis.com/v1/speech:recognize"
	DefaultGoogleTTSURL    = "https://texttospeech.googleapis.com/v1/text:synthesize"

	googleDefaultRecognizeLanguage = "en-US"
	googleDefaultVoiceLanguage     = "en-us"
)

// GoogleConfig configures the Google Cloud Speech and Text-to-Speech clients.
type GoogleConfig struct {
	APIKey     string
	SpeechURL  string
	TTSURL     string
	SampleRate int
	Timeout    time.Duration
}

// GoogleRecognizer calls the synchronous speech:recognize endpoint.
type GoogleRecognizer struct {
	apiKey     string
	endpoint   string
	sampleRate int
	client     *http.Client
}

func NewGoogleRecognizer(cfg GoogleConfig) (*GoogleRecognizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("google recognizer: api key is required")
	}
	endpoint := strings.TrimSpace(cfg.SpeechURL)
	if endpoint == "" {
		endpoint = DefaultGoogleSpeechURL
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return &GoogleRecognizer{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		sampleRate: rate,
		client:     newHTTPClient(cfg.Timeout),
	}, nil
}

type googleRecognizeRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleRecognitionAudio  `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type googleRecognitionAudio struct {
	Content string `json:"content"`
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

func (g *GoogleRecognizer) Recognize(ctx context.Context, wav []byte, languageHint string) (string, error) {
	language := strings.TrimSpace(languageHint)
	if language == "" {
		language = googleDefaultRecognizeLanguage
	}
	payload := googleRecognizeRequest{
		Config: googleRecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: g.sampleRate,
			LanguageCode:    language,
		},
		Audio: googleRecognitionAudio{Content: base64.StdEncoding.EncodeToString(wav)},
	}

	var out googleRecognizeResponse
	if err := postJSON(ctx, g.client, "google-stt", withKey(g.endpoint, g.apiKey), nil, payload, &out); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// GoogleSynthesizer calls text:synthesize and returns MP3 audio.
type GoogleSynthesizer struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewGoogleSynthesizer(cfg GoogleConfig) (*GoogleSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("google synthesizer: api key is required")
	}
	endpoint := strings.TrimSpace(cfg.TTSURL)
	if endpoint == "" {
		endpoint = DefaultGoogleTTSURL
	}
	return &GoogleSynthesizer{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   newHTTPClient(cfg.Timeout),
	}, nil
}

type googleSynthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		SSMLGender   string `json:"ssmlGender"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	var payload googleSynthesizeRequest
	payload.Input.Text = text
	payload.Voice.LanguageCode = strings.TrimSpace(language)
	if payload.Voice.LanguageCode == "" {
		payload.Voice.LanguageCode = googleDefaultVoiceLanguage
	}
	payload.Voice.SSMLGender = "NEUTRAL"
	payload.AudioConfig.AudioEncoding = "MP3"

	var out googleSynthesizeResponse
	if err := postJSON(ctx, g.client, "google-tts", withKey(g.endpoint, g.apiKey), nil, payload, &out); err != nil {
		return nil, err
	}
	if out.AudioContent == "" {
		return nil, errors.New("google-tts: response has no audio content")
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google-tts decode audio: %w", err)
	}
	return audio, nil
}

func withKey(endpoint, key string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String()
}
