package relay

import (
	"errors"
	"fmt"

	"github.com/ent0n29/voicebridge/internal/session"
)

// Stage names one step of the relay pipeline.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageTranscode  Stage = "transcode"
	StageRecognize  Stage = "recognize"
	StageTranslate  Stage = "translate"
	StageSynthesize Stage = "synthesize"
	StageDeliver    Stage = "deliver"
)

var (
	ErrTranscode     = errors.New("transcode failed")
	ErrTranscription = errors.New("transcription failed")
	ErrTranslation   = errors.New("translation failed")
	ErrSynthesis     = errors.New("synthesis failed")
)

var stageSentinels = map[Stage]error{
	StageTranscode:  ErrTranscode,
	StageRecognize:  ErrTranscription,
	StageTranslate:  ErrTranslation,
	StageSynthesize: ErrSynthesis,
}

// StageError reports which stage aborted a relay. It matches both the stage
// sentinel and the underlying cause with errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("relay %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	if s, ok := stageSentinels[e.Stage]; ok {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// Retryable reports whether the cause looks transient. The server never
// retries; the flag is passed to the sender.
func (e *StageError) Retryable() bool {
	var r interface{ Retryable() bool }
	if errors.As(e.Err, &r) {
		return r.Retryable()
	}
	return false
}

// Code is a short machine-readable label for err.
func Code(err error) string {
	switch {
	case errors.Is(err, session.ErrNotInSession):
		return "not_in_session"
	case errors.Is(err, session.ErrNoReceiver):
		return "no_receiver"
	case errors.Is(err, ErrTranscode):
		return "transcode_failure"
	case errors.Is(err, ErrTranscription):
		return "transcription_failure"
	case errors.Is(err, ErrTranslation):
		return "translation_failure"
	case errors.Is(err, ErrSynthesis):
		return "synthesis_failure"
	default:
		return "server_error"
	}
}

// Message is the human-readable reason shown to the sender.
func Message(err error) string {
	switch Code(err) {
	case "not_in_session":
		return "Not in any active session"
	case "no_receiver":
		return "No receiver in session"
	case "transcode_failure":
		return "Could not decode the recorded audio"
	case "transcription_failure":
		return "Speech recognition failed"
	case "translation_failure":
		return "Translation failed"
	case "synthesis_failure":
		return "Speech synthesis failed"
	default:
		return "Server error"
	}
}
