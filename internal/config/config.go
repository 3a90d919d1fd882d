package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/ent0n29/voicebridge/internal/lang"
)

// Config contains all runtime settings for the translation relay. Every
// field can be set by flag or environment variable.
type Config struct {
	BindAddr        string        `help:"HTTP listen address." default:":3000" env:"APP_BIND_ADDR"`
	ShutdownTimeout time.Duration `help:"Graceful shutdown budget." default:"15s" env:"APP_SHUTDOWN_TIMEOUT"`
	LogLevel        string        `help:"Log level (debug, info, warn, error)." default:"" env:"APP_LOG_LEVEL"`
	LogDev          bool          `help:"Human-readable console logs." default:"false" env:"APP_LOG_DEV"`
	LogFile         string        `help:"Also write rotated JSON logs to this file." default:"" env:"APP_LOG_FILE"`
	Tracing         bool          `help:"Export OpenTelemetry traces over OTLP/gRPC." default:"false" env:"APP_TRACING"`

	MetricsNamespace string   `help:"Prometheus metric namespace." default:"voicebridge" env:"APP_METRICS_NAMESPACE"`
	CORSOrigins      []string `help:"Allowed CORS origins." default:"*" env:"APP_CORS_ORIGINS"`
	AllowAnyOrigin   bool     `help:"Accept websocket upgrades from any Origin." default:"true" env:"APP_ALLOW_ANY_ORIGIN"`
	UpgradesPerMin   int      `help:"Websocket upgrades allowed per client IP per minute." default:"60" env:"APP_WS_UPGRADES_PER_MIN"`
	MaxClipBytes     int64    `help:"Largest accepted decoded voice clip." default:"10485760" env:"APP_MAX_CLIP_BYTES"`

	SessionTTL      time.Duration `help:"Session lifetime before the sweeper evicts it." default:"24h" env:"SESSION_TTL"`
	SweepInterval   time.Duration `help:"How often expired sessions are swept." default:"1h" env:"SESSION_SWEEP_INTERVAL"`
	DefaultLanguage string        `help:"Language used when a device sends auto." default:"en-US" env:"DEFAULT_LANGUAGE"`

	Transcoder string `help:"Clip transcoder (ffmpeg, passthrough)." default:"ffmpeg" enum:"ffmpeg,passthrough" env:"TRANSCODER"`
	FFmpegPath string `help:"ffmpeg binary." default:"ffmpeg" env:"FFMPEG_PATH"`
	SampleRate int    `help:"Normalized PCM sample rate." default:"16000" env:"TRANSCODE_SAMPLE_RATE"`

	STTProvider        string        `help:"Speech recognizer (google, openai, mock)." default:"google" enum:"google,openai,mock" env:"STT_PROVIDER"`
	TranslatorProvider string        `help:"Translator (deepl, openai, mock)." default:"deepl" enum:"deepl,openai,mock" env:"TRANSLATOR_PROVIDER"`
	TTSProvider        string        `help:"Speech synthesizer (google, elevenlabs, openai, mock)." default:"google" enum:"google,elevenlabs,openai,mock" env:"TTS_PROVIDER"`
	ProviderTimeout    time.Duration `help:"Per-request timeout for provider calls." default:"30s" env:"PROVIDER_TIMEOUT"`

	STTFallback        string `help:"Recognizer used when the primary fails (empty disables)." default:"" env:"STT_FALLBACK_PROVIDER"`
	TranslatorFallback string `help:"Translator used when the primary fails (empty disables)." default:"" env:"TRANSLATOR_FALLBACK_PROVIDER"`
	TTSFallback        string `help:"Synthesizer used when the primary fails (empty disables)." default:"" env:"TTS_FALLBACK_PROVIDER"`

	GoogleAPIKey    string `help:"Google Cloud API key." default:"" env:"GOOGLE_API_KEY"`
	GoogleSpeechURL string `help:"Google speech:recognize endpoint." default:"" env:"GOOGLE_SPEECH_URL"`
	GoogleTTSURL    string `help:"Google text:synthesize endpoint." default:"" env:"GOOGLE_TTS_URL"`

	DeepLAPIKey string `help:"DeepL API key." default:"" env:"DEEPL_API_KEY"`
	DeepLURL    string `help:"DeepL translate endpoint." default:"" env:"DEEPL_URL"`

	OpenAIAPIKey    string `help:"OpenAI API key." default:"" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `help:"OpenAI API base URL." default:"" env:"OPENAI_BASE_URL"`
	OpenAIChatModel string `help:"OpenAI model used for translation." default:"" env:"OPENAI_CHAT_MODEL"`

	ElevenLabsAPIKey  string `help:"ElevenLabs API key." default:"" env:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `help:"ElevenLabs API base URL." default:"" env:"ELEVENLABS_BASE_URL"`
	ElevenLabsVoiceID string `help:"ElevenLabs voice." default:"" env:"ELEVENLABS_TTS_VOICE_ID"`
	ElevenLabsModelID string `help:"ElevenLabs model." default:"" env:"ELEVENLABS_TTS_MODEL_ID"`
}

// Load parses args and the environment into a validated Config.
func Load(args []string) (Config, error) {
	var cfg Config
	parser, err := kong.New(&cfg,
		kong.Name("voicebridge"),
		kong.Description("Two-device voice translation relay."),
	)
	if err != nil {
		return Config{}, err
	}
	if _, err := parser.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DefaultLanguage = strings.TrimSpace(c.DefaultLanguage)
	if n, err := lang.Normalize(c.DefaultLanguage); err == nil {
		c.DefaultLanguage = n
	}
	for _, p := range []*string{
		&c.STTProvider, &c.TranslatorProvider, &c.TTSProvider, &c.Transcoder,
		&c.STTFallback, &c.TranslatorFallback, &c.TTSFallback,
	} {
		*p = strings.ToLower(strings.TrimSpace(*p))
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("APP_SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, errors.New("SESSION_TTL must be at least 1m"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	} else if c.SweepInterval > c.SessionTTL {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must not exceed SESSION_TTL"))
	}
	if lang.IsAuto(c.DefaultLanguage) {
		errs = append(errs, errors.New("DEFAULT_LANGUAGE must be a concrete language tag"))
	} else if _, err := lang.Normalize(c.DefaultLanguage); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_LANGUAGE parse error: %w", err))
	}
	if c.SampleRate < 8000 {
		errs = append(errs, errors.New("TRANSCODE_SAMPLE_RATE must be at least 8000"))
	}
	if c.MaxClipBytes <= 0 {
		errs = append(errs, errors.New("APP_MAX_CLIP_BYTES must be positive"))
	}
	if c.UpgradesPerMin < 0 {
		errs = append(errs, errors.New("APP_WS_UPGRADES_PER_MIN must be >= 0"))
	}

	switch c.Transcoder {
	case "ffmpeg", "passthrough":
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCODER %q", c.Transcoder))
	}

	errs = c.checkProvider(errs, "STT_PROVIDER", c.STTProvider, false, sttBackends)
	errs = c.checkProvider(errs, "TRANSLATOR_PROVIDER", c.TranslatorProvider, false, translatorBackends)
	errs = c.checkProvider(errs, "TTS_PROVIDER", c.TTSProvider, false, ttsBackends)
	errs = c.checkProvider(errs, "STT_FALLBACK_PROVIDER", c.STTFallback, true, sttBackends)
	errs = c.checkProvider(errs, "TRANSLATOR_FALLBACK_PROVIDER", c.TranslatorFallback, true, translatorBackends)
	errs = c.checkProvider(errs, "TTS_FALLBACK_PROVIDER", c.TTSFallback, true, ttsBackends)
	return errors.Join(errs...)
}

var (
	sttBackends        = []string{"google", "openai", "mock"}
	translatorBackends = []string{"deepl", "openai", "mock"}
	ttsBackends        = []string{"google", "elevenlabs", "openai", "mock"}
)

// checkProvider validates a backend name and that its credential is set.
func (c Config) checkProvider(errs []error, setting, name string, optional bool, allowed []string) []error {
	if name == "" && optional {
		return errs
	}
	if !slices.Contains(allowed, name) {
		return append(errs, fmt.Errorf("unknown %s %q (expected %s)", setting, name, strings.Join(allowed, "|")))
	}
	switch name {
	case "google":
		return appendMissing(errs, "GOOGLE_API_KEY", c.GoogleAPIKey)
	case "deepl":
		return appendMissing(errs, "DEEPL_API_KEY", c.DeepLAPIKey)
	case "elevenlabs":
		return appendMissing(errs, "ELEVENLABS_API_KEY", c.ElevenLabsAPIKey)
	case "openai":
		return appendMissing(errs, "OPENAI_API_KEY", c.OpenAIAPIKey)
	}
	return errs
}

func appendMissing(errs []error, name, value string) []error {
	if strings.TrimSpace(value) != "" {
		return errs
	}
	for _, e := range errs {
		if strings.HasPrefix(e.Error(), name+" ") {
			return errs
		}
	}
	return append(errs, fmt.Errorf("%s is required for the selected provider", name))
}
