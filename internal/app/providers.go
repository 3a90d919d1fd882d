package app

import (
	"fmt"
	"strings"

	"github.com/ent0n29/voicebridge/internal/audio"
	"github.com/ent0n29/voicebridge/internal/config"
	"github.com/ent0n29/voicebridge/internal/speech"
)

type providerSetup struct {
	transcoder  audio.Transcoder
	recognizer  speech.Recognizer
	translator  speech.Translator
	synthesizer speech.Synthesizer
	detail      string
}

// providerFactory builds speech backends by name and shares one client per
// vendor across stages.
type providerFactory struct {
	cfg    config.Config
	openai *speech.OpenAI
	mock   *speech.MockProvider
}

func (f *providerFactory) openAI() (*speech.OpenAI, error) {
	if f.openai != nil {
		return f.openai, nil
	}
	p, err := speech.NewOpenAI(speech.OpenAIConfig{
		APIKey:    f.cfg.OpenAIAPIKey,
		BaseURL:   f.cfg.OpenAIBaseURL,
		ChatModel: f.cfg.OpenAIChatModel,
		Timeout:   f.cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, err
	}
	f.openai = p
	return p, nil
}

func (f *providerFactory) google() speech.GoogleConfig {
	return speech.GoogleConfig{
		APIKey:     f.cfg.GoogleAPIKey,
		SpeechURL:  f.cfg.GoogleSpeechURL,
		TTSURL:     f.cfg.GoogleTTSURL,
		SampleRate: f.cfg.SampleRate,
		Timeout:    f.cfg.ProviderTimeout,
	}
}

func (f *providerFactory) recognizer(name string) (speech.Recognizer, error) {
	switch name {
	case "google":
		return speech.NewGoogleRecognizer(f.google())
	case "openai":
		return f.openAI()
	case "mock":
		return f.mock, nil
	default:
		return nil, fmt.Errorf("invalid STT provider: %q (expected google|openai|mock)", name)
	}
}

func (f *providerFactory) translator(name string) (speech.Translator, error) {
	switch name {
	case "deepl":
		return speech.NewDeepLTranslator(speech.DeepLConfig{
			APIKey:  f.cfg.DeepLAPIKey,
			URL:     f.cfg.DeepLURL,
			Timeout: f.cfg.ProviderTimeout,
		})
	case "openai":
		return f.openAI()
	case "mock":
		return f.mock, nil
	default:
		return nil, fmt.Errorf("invalid translator provider: %q (expected deepl|openai|mock)", name)
	}
}

func (f *providerFactory) synthesizer(name string) (speech.Synthesizer, error) {
	switch name {
	case "google":
		return speech.NewGoogleSynthesizer(f.google())
	case "elevenlabs":
		return speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
			APIKey:  f.cfg.ElevenLabsAPIKey,
			BaseURL: f.cfg.ElevenLabsBaseURL,
			VoiceID: f.cfg.ElevenLabsVoiceID,
			ModelID: f.cfg.ElevenLabsModelID,
			Timeout: f.cfg.ProviderTimeout,
		})
	case "openai":
		return f.openAI()
	case "mock":
		return f.mock, nil
	default:
		return nil, fmt.Errorf("invalid TTS provider: %q (expected google|elevenlabs|openai|mock)", name)
	}
}

func resolveProviders(cfg config.Config) (providerSetup, error) {
	f := &providerFactory{cfg: cfg, mock: speech.NewMockProvider()}
	var setup providerSetup

	switch strings.ToLower(cfg.Transcoder) {
	case "passthrough":
		setup.transcoder = audio.PassthroughTranscoder{SampleRate: cfg.SampleRate}
	default:
		setup.transcoder = audio.NewFFmpegTranscoder(cfg.FFmpegPath, cfg.SampleRate)
	}

	var err error
	if setup.recognizer, err = f.recognizer(cfg.STTProvider); err != nil {
		return providerSetup{}, err
	}
	if cfg.STTFallback != "" {
		fb, err := f.recognizer(cfg.STTFallback)
		if err != nil {
			return providerSetup{}, fmt.Errorf("stt fallback: %w", err)
		}
		setup.recognizer = speech.NewFailoverRecognizer(setup.recognizer, fb)
	}

	if setup.translator, err = f.translator(cfg.TranslatorProvider); err != nil {
		return providerSetup{}, err
	}
	if cfg.TranslatorFallback != "" {
		fb, err := f.translator(cfg.TranslatorFallback)
		if err != nil {
			return providerSetup{}, fmt.Errorf("translator fallback: %w", err)
		}
		setup.translator = speech.NewFailoverTranslator(setup.translator, fb)
	}

	if setup.synthesizer, err = f.synthesizer(cfg.TTSProvider); err != nil {
		return providerSetup{}, err
	}
	if cfg.TTSFallback != "" {
		fb, err := f.synthesizer(cfg.TTSFallback)
		if err != nil {
			return providerSetup{}, fmt.Errorf("tts fallback: %w", err)
		}
		setup.synthesizer = speech.NewFailoverSynthesizer(setup.synthesizer, fb)
	}

	setup.detail = fmt.Sprintf("transcode=%s stt=%s translate=%s tts=%s",
		cfg.Transcoder,
		withFallback(cfg.STTProvider, cfg.STTFallback),
		withFallback(cfg.TranslatorProvider, cfg.TranslatorFallback),
		withFallback(cfg.TTSProvider, cfg.TTSFallback))
	return setup, nil
}

func withFallback(primary, fallback string) string {
	if fallback == "" {
		return primary
	}
	return primary + "+" + fallback
}
