package session

import (
	"errors"
	"time"
)

// Status is the derived state of a session as seen by its members.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusConnected  Status = "connected"
	StatusExpired    Status = "expired"
	StatusTerminated Status = "terminated"
)

// MaxDevices is the pairing limit.
const MaxDevices = 2

var (
	ErrEmptyKey     = errors.New("session key is required")
	ErrSessionFull  = errors.New("session is full")
	ErrNotInSession = errors.New("not in any active session")
	ErrNoReceiver   = errors.New("no receiver in session")
)

// Status messages sent with each transition.
const (
	MsgWaiting        = "Waiting for another device to join"
	MsgAlreadyJoined  = "You are already in this session"
	MsgConnected      = "Devices connected successfully"
	MsgFull           = "Session is full"
	MsgPeerLeft       = "Other device disconnected, waiting for reconnection"
	MsgSessionExpired = "Session expired"
)

// Device is one live connection and its declared language.
type Device struct {
	ConnID   string `json:"conn_id"`
	Language string `json:"language"`
}

// Session pairs at most two devices under a client-supplied key.
type Session struct {
	Key       string    `json:"session_key"`
	Devices   []Device  `json:"devices"`
	CreatedAt time.Time `json:"created_at"`
}

// Status derives the session status from its device count.
func (s Session) Status() Status {
	switch len(s.Devices) {
	case 0:
		return StatusTerminated
	case 1:
		return StatusWaiting
	default:
		return StatusConnected
	}
}

// Peer is the sender/receiver pair resolved for one relay.
type Peer struct {
	SessionKey string
	Sender     Device
	Receiver   Device
}

// Notice is a status update addressed to one connection.
type Notice struct {
	ConnID     string
	SessionKey string
	Status     Status
	Message    string
}

// Notifier receives status updates. The registry calls Notify while holding
// its lock, so implementations must not block or call back into the registry.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// View is the operator-facing summary of one session.
type View struct {
	Key         string    `json:"session_key"`
	Status      Status    `json:"status"`
	DeviceCount int       `json:"device_count"`
	Languages   []string  `json:"languages"`
	CreatedAt   time.Time `json:"created_at"`
	AgeMS       int64     `json:"age_ms"`
}
