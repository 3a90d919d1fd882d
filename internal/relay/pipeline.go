// Package relay drives one voice clip from its sender to the paired receiver:
// transcode, recognize, translate, synthesize when the languages differ, and
// deliver.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ent0n29/voicebridge/internal/audio"
	"github.com/ent0n29/voicebridge/internal/lang"
	"github.com/ent0n29/voicebridge/internal/observability"
	"github.com/ent0n29/voicebridge/internal/policy"
	"github.com/ent0n29/voicebridge/internal/reliability"
	"github.com/ent0n29/voicebridge/internal/session"
	"github.com/ent0n29/voicebridge/internal/speech"
)

const transcriptPreviewRunes = 120

// Clip is one inbound voice clip. Timestamp is opaque and echoed to the
// receiver. Seq is assigned per sending connection on receipt.
type Clip struct {
	SenderConnID string
	Audio        []byte
	Timestamp    json.RawMessage
	Seq          uint64
}

// Result is what the receiver gets for a successful relay.
type Result struct {
	SessionKey     string
	ReceiverConnID string
	Audio          []byte
	Synthesized    bool
	RecognizedText string
	TranslatedText string
	FromLanguage   string
	ToLanguage     string
	Timestamp      json.RawMessage
	Seq            uint64
}

// PeerResolver looks up the sender and receiver of a clip.
type PeerResolver interface {
	ResolvePeer(connID string) (session.Peer, error)
}

// Outbox hands results and errors to the transport. Deliver returns false if
// the connection is gone.
type Outbox interface {
	Deliver(connID string, r Result) bool
	Reject(connID string, err error)
}

type Config struct {
	Peers           PeerResolver
	Outbox          Outbox
	Transcoder      audio.Transcoder
	Recognizer      speech.Recognizer
	Translator      speech.Translator
	Synthesizer     speech.Synthesizer
	DefaultLanguage string
	Metrics         *observability.Metrics
	Logger          zerolog.Logger
	Tracer          trace.Tracer
}

// Pipeline holds no per-clip state; Relay may be called concurrently.
type Pipeline struct {
	peers           PeerResolver
	outbox          Outbox
	transcoder      audio.Transcoder
	recognizer      speech.Recognizer
	translator      speech.Translator
	synthesizer     speech.Synthesizer
	defaultLanguage string
	metrics         *observability.Metrics
	log             zerolog.Logger
	tracer          trace.Tracer
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Peers == nil:
		return nil, errors.New("relay: peer resolver is required")
	case cfg.Outbox == nil:
		return nil, errors.New("relay: outbox is required")
	case cfg.Transcoder == nil:
		return nil, errors.New("relay: transcoder is required")
	case cfg.Recognizer == nil:
		return nil, errors.New("relay: recognizer is required")
	case cfg.Translator == nil:
		return nil, errors.New("relay: translator is required")
	case cfg.Synthesizer == nil:
		return nil, errors.New("relay: synthesizer is required")
	}
	def := strings.TrimSpace(cfg.DefaultLanguage)
	if lang.IsAuto(def) {
		def = "en-US"
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/ent0n29/voicebridge/internal/relay")
	}
	return &Pipeline{
		peers:           cfg.Peers,
		outbox:          cfg.Outbox,
		transcoder:      cfg.Transcoder,
		recognizer:      cfg.Recognizer,
		translator:      cfg.Translator,
		synthesizer:     cfg.Synthesizer,
		defaultLanguage: lang.Resolve(def, "en-US"),
		metrics:         cfg.Metrics,
		log:             cfg.Logger,
		tracer:          tracer,
	}, nil
}

// Relay runs one clip through the pipeline. On failure the sender alone is
// told and the returned error is a *StageError. A receiver that left before
// delivery is not an error.
func (p *Pipeline) Relay(ctx context.Context, clip Clip) error {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "relay.clip", trace.WithAttributes(
		attribute.String("conn_id", clip.SenderConnID),
		attribute.Int64("seq", int64(clip.Seq)),
		attribute.Int("audio_bytes", len(clip.Audio)),
	))
	defer span.End()

	log := p.log.With().Str("conn_id", clip.SenderConnID).Uint64("seq", clip.Seq).Logger()

	res, err := p.run(ctx, clip, log)
	if err != nil {
		var se *StageError
		stage := ""
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		p.metrics.ObserveRelay("failed", stage, time.Since(start))
		log.Warn().Err(err).Str("stage", stage).Msg("relay failed")
		p.outbox.Reject(clip.SenderConnID, err)
		return err
	}
	span.SetAttributes(attribute.String("session_key", res.SessionKey))

	t0 := time.Now()
	delivered := p.outbox.Deliver(res.ReceiverConnID, res)
	p.metrics.ObserveStage(string(StageDeliver), time.Since(t0))
	if !delivered {
		p.metrics.ObserveRelay("receiver_gone", "", time.Since(start))
		log.Info().Str("session_key", res.SessionKey).Msg("receiver left before delivery")
		return nil
	}
	p.metrics.ObserveRelay("delivered", "", time.Since(start))
	log.Debug().
		Str("session_key", res.SessionKey).
		Str("from", res.FromLanguage).
		Str("to", res.ToLanguage).
		Bool("synthesized", res.Synthesized).
		Dur("elapsed", time.Since(start)).
		Msg("relay delivered")
	return nil
}

func (p *Pipeline) run(ctx context.Context, clip Clip, log zerolog.Logger) (Result, error) {
	peer, err := p.peers.ResolvePeer(clip.SenderConnID)
	if err != nil {
		return Result{}, &StageError{Stage: StageResolve, Err: err}
	}
	from := lang.Resolve(peer.Sender.Language, p.defaultLanguage)
	to := lang.Resolve(peer.Receiver.Language, p.defaultLanguage)
	hint := from
	if lang.IsAuto(peer.Sender.Language) {
		hint = ""
	}

	res := Result{
		SessionKey:     peer.SessionKey,
		ReceiverConnID: peer.Receiver.ConnID,
		FromLanguage:   from,
		ToLanguage:     to,
		Timestamp:      clip.Timestamp,
		Seq:            clip.Seq,
	}

	var wav []byte
	if err := p.stage(ctx, StageTranscode, func(ctx context.Context) (err error) {
		wav, err = p.transcoder.Transcode(ctx, clip.Audio)
		return err
	}); err != nil {
		return Result{}, err
	}

	if err := p.stage(ctx, StageRecognize, func(ctx context.Context) (err error) {
		res.RecognizedText, err = p.recognizer.Recognize(ctx, wav, hint)
		return err
	}); err != nil {
		return Result{}, err
	}
	res.RecognizedText = strings.TrimSpace(res.RecognizedText)
	log.Debug().Str("transcript", policy.Preview(res.RecognizedText, transcriptPreviewRunes)).Msg("recognized")

	if res.RecognizedText != "" {
		if err := p.stage(ctx, StageTranslate, func(ctx context.Context) (err error) {
			res.TranslatedText, err = p.translator.Translate(ctx, res.RecognizedText, to)
			return err
		}); err != nil {
			return Result{}, err
		}
		log.Debug().Str("translation", policy.Preview(res.TranslatedText, transcriptPreviewRunes)).Msg("translated")
	}

	res.Audio = wav
	if from != to && strings.TrimSpace(res.TranslatedText) != "" {
		var synthesized []byte
		if err := p.stage(ctx, StageSynthesize, func(ctx context.Context) (err error) {
			synthesized, err = p.synthesizer.Synthesize(ctx, res.TranslatedText, to)
			return err
		}); err != nil {
			return Result{}, err
		}
		if len(synthesized) > 0 {
			res.Audio = synthesized
			res.Synthesized = true
		}
	}
	return res, nil
}

// stage times fn, wraps its error as a *StageError and records it on a child
// span.
func (p *Pipeline) stage(ctx context.Context, st Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "relay."+string(st))
	defer span.End()

	t0 := time.Now()
	err := fn(ctx)
	p.metrics.ObserveStage(string(st), time.Since(t0))
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.observeProviderError(st, err)
	return &StageError{Stage: st, Err: err}
}

func (p *Pipeline) observeProviderError(st Stage, err error) {
	var se *speech.StatusError
	if errors.As(err, &se) {
		p.metrics.ObserveProviderError(se.Provider, reliability.StatusClass(se.StatusCode))
		return
	}
	code := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		code = "timeout"
	}
	p.metrics.ObserveProviderError(string(st), code)
}
