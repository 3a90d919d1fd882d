package app

import (
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicebridge/internal/audio"
	"github.com/ent0n29/voicebridge/internal/config"
	"github.com/ent0n29/voicebridge/internal/httpapi"
	"github.com/ent0n29/voicebridge/internal/observability"
	"github.com/ent0n29/voicebridge/internal/relay"
	"github.com/ent0n29/voicebridge/internal/session"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Registry *session.Registry
	Hub      *httpapi.Hub
	Pipeline *relay.Pipeline
	Metrics  *observability.Metrics
	// Providers describes the selected transcoder and speech backends.
	Providers string
}

func Build(cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	setup, err := resolveProviders(cfg)
	if err != nil {
		return nil, err
	}
	if ff, ok := setup.transcoder.(*audio.FFmpegTranscoder); ok && !ff.Available() {
		log.Warn().Str("path", cfg.FFmpegPath).Msg("ffmpeg not found; every clip will fail to transcode")
	}

	hub := httpapi.NewHub(metrics)
	registry := session.NewRegistry(cfg.SessionTTL, hub)
	registry.SetEventHook(metrics.ObserveSessionEvent)

	pipeline, err := relay.NewPipeline(relay.Config{
		Peers:           registry,
		Outbox:          hub,
		Transcoder:      setup.transcoder,
		Recognizer:      setup.recognizer,
		Translator:      setup.translator,
		Synthesizer:     setup.synthesizer,
		DefaultLanguage: cfg.DefaultLanguage,
		Metrics:         metrics,
		Logger:          log.With().Str("component", "relay").Logger(),
	})
	if err != nil {
		return nil, err
	}

	api := httpapi.New(cfg, registry, hub, pipeline, metrics, log.With().Str("component", "httpapi").Logger())

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Registry:  registry,
		Hub:       hub,
		Pipeline:  pipeline,
		Metrics:   metrics,
		Providers: setup.detail,
	}, nil
}
