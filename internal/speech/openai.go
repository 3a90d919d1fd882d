package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ent0n29/voicebridge/internal/lang"
)

// OpenAIConfig configures clients backed by the OpenAI API.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ChatModel string
	Timeout   time.Duration
}

// OpenAI implements Recognizer, Translator and Synthesizer with Whisper,
// chat completions, and the speech endpoint.
type OpenAI struct {
	client    *openai.Client
	chatModel string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	oc.HTTPClient = newHTTPClient(cfg.Timeout)

	model := strings.TrimSpace(cfg.ChatModel)
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), chatModel: model}, nil
}

func (o *OpenAI) Recognize(ctx context.Context, wav []byte, languageHint string) (string, error) {
	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "clip.wav",
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatJSON,
	}
	if languageHint != "" {
		req.Language = lang.Base(languageHint)
	}
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (o *OpenAI) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(
					"Translate the user's message into the language with BCP 47 tag %q. Reply with the translation only.",
					targetLanguage,
				),
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: completion has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.VoiceAlloy,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(io.LimitReader(resp, audioBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("openai read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai: empty audio response")
	}
	return audio, nil
}

// wrapOpenAIError maps SDK errors onto StatusError so callers classify all
// providers the same way.
func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Body: http.StatusText(reqErr.HTTPStatusCode)}
	}
	return fmt.Errorf("openai: %w", err)
}
