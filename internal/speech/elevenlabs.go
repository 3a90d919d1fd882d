package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/voicebridge/internal/lang"
)

const (
	DefaultElevenLabsURL   = "https://api.elevenlabs.io"
	DefaultElevenLabsModel = "eleven_multilingual_v2"
	DefaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsConfig configures the ElevenLabs text-to-speech client.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
	Timeout time.Duration
}

// ElevenLabsSynthesizer uses the non-streaming text-to-speech endpoint.
type ElevenLabsSynthesizer struct {
	apiKey  string
	baseURL string
	voiceID string
	modelID string
	client  *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("elevenlabs synthesizer: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultElevenLabsURL
	}
	voice := strings.TrimSpace(cfg.VoiceID)
	if voice == "" {
		voice = DefaultElevenLabsVoice
	}
	model := strings.TrimSpace(cfg.ModelID)
	if model == "" {
		model = DefaultElevenLabsModel
	}
	return &ElevenLabsSynthesizer{
		apiKey:  cfg.APIKey,
		baseURL: base,
		voiceID: voice,
		modelID: model,
		client:  newHTTPClient(cfg.Timeout),
	}, nil
}

type elevenLabsRequest struct {
	Text         string `json:"text"`
	ModelID      string `json:"model_id"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Synthesize returns MP3 audio. The multilingual model infers pronunciation
// from the text; the language is passed as a hint only.
func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
	payload := elevenLabsRequest{Text: text, ModelID: e.modelID}
	if language != "" {
		payload.LanguageCode = lang.Base(language)
	}

	body, err := jsonReader(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs send request: %w", err)
	}
	defer res.Body.Close()
	if err := checkStatus("elevenlabs", res); err != nil {
		return nil, err
	}
	audio, err := io.ReadAll(io.LimitReader(res.Body, audioBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: empty audio response")
	}
	return audio, nil
}
