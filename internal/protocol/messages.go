package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeJoinSession   MessageType = "joinSession"
	TypeVoiceTransfer MessageType = "voiceTransfer"
	TypeSessionStatus MessageType = "sessionStatus"
	TypeVoiceReceived MessageType = "voiceReceived"
	TypeError         MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type JoinSession struct {
	Type       MessageType `json:"type"`
	SessionKey string      `json:"sessionKey"`
	Language   string      `json:"language"`
}

// VoiceTransfer carries one recorded clip. Timestamp is opaque to the server
// and echoed back to the receiver unchanged.
type VoiceTransfer struct {
	Type        MessageType     `json:"type"`
	AudioBase64 string          `json:"audioBase64"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
}

type SessionStatus struct {
	Type    MessageType `json:"type"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
}

type VoiceReceived struct {
	Type           MessageType     `json:"type"`
	AudioBase64    string          `json:"audioBase64"`
	Text           string          `json:"text,omitempty"`
	TranslatedText string          `json:"translatedText,omitempty"`
	FromLanguage   string          `json:"fromLanguage"`
	ToLanguage     string          `json:"toLanguage"`
	Timestamp      json.RawMessage `json:"timestamp,omitempty"`
	Seq            uint64          `json:"seq"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Code      string      `json:"code,omitempty"`
	Stage     string      `json:"stage,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeJoinSession:
		var msg JoinSession
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.SessionKey) == "" {
			return nil, errors.New("invalid joinSession: sessionKey is required")
		}
		return msg, nil
	case TypeVoiceTransfer:
		var msg VoiceTransfer
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.AudioBase64 == "" {
			return nil, errors.New("invalid voiceTransfer: audioBase64 is required")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
