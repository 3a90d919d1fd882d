package httpapi

import (
	"encoding/base64"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/ent0n29/voicebridge/internal/observability"
	"github.com/ent0n29/voicebridge/internal/protocol"
	"github.com/ent0n29/voicebridge/internal/relay"
	"github.com/ent0n29/voicebridge/internal/session"
)

const outboundQueueSize = 64

// Hub tracks live websocket connections and owns their outbound queues. It
// is the session notifier and the relay outbox. Sends never block: a full or
// closed queue drops the message.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*conn
	metrics *observability.Metrics
}

type conn struct {
	id       string
	outbound chan any
	done     chan struct{}
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{conns: make(map[string]*conn), metrics: metrics}
}

// Register allocates a connection id and its outbound queue.
func (h *Hub) Register() *conn {
	c := &conn{
		id:       uuid.NewString(),
		outbound: make(chan any, outboundQueueSize),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	return c
}

// Unregister removes the connection. Later sends to it are no-ops.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if ok {
		close(c.done)
	}
}

// CloseAll unregisters every connection; their writers close the sockets.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*conn)
	h.mu.Unlock()
	for _, c := range conns {
		close(c.done)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send queues msg for connID and reports whether it was accepted.
func (h *Hub) Send(connID string, msg any) bool {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}

	msgType := messageTypeOf(msg)
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbound <- msg:
		h.metrics.ObserveOutbound(msgType, true)
		return true
	default:
		h.metrics.ObserveOutbound(msgType, false)
		return false
	}
}

func (h *Hub) Notify(n session.Notice) {
	h.Send(n.ConnID, protocol.SessionStatus{
		Type:    protocol.TypeSessionStatus,
		Status:  string(n.Status),
		Message: n.Message,
	})
}

func (h *Hub) Deliver(connID string, r relay.Result) bool {
	return h.Send(connID, protocol.VoiceReceived{
		Type:           protocol.TypeVoiceReceived,
		AudioBase64:    base64.StdEncoding.EncodeToString(r.Audio),
		Text:           r.RecognizedText,
		TranslatedText: r.TranslatedText,
		FromLanguage:   r.FromLanguage,
		ToLanguage:     r.ToLanguage,
		Timestamp:      r.Timestamp,
		Seq:            r.Seq,
	})
}

func (h *Hub) Reject(connID string, err error) {
	ev := protocol.ErrorEvent{
		Type:    protocol.TypeError,
		Message: relay.Message(err),
		Code:    relay.Code(err),
	}
	var se *relay.StageError
	if errors.As(err, &se) {
		ev.Stage = string(se.Stage)
		ev.Retryable = se.Retryable()
	}
	h.Send(connID, ev)
}

func messageTypeOf(v any) string {
	switch m := v.(type) {
	case protocol.SessionStatus:
		return string(m.Type)
	case protocol.VoiceReceived:
		return string(m.Type)
	case protocol.ErrorEvent:
		return string(m.Type)
	case protocol.JoinSession:
		return string(m.Type)
	case protocol.VoiceTransfer:
		return string(m.Type)
	default:
		return "unknown"
	}
}
