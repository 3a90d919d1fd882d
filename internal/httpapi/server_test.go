package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/voicebridge/internal/audio"
	"github.com/ent0n29/voicebridge/internal/config"
	"github.com/ent0n29/voicebridge/internal/observability"
	"github.com/ent0n29/voicebridge/internal/relay"
	"github.com/ent0n29/voicebridge/internal/session"
	"github.com/ent0n29/voicebridge/internal/speech"
)

var namespaceSeq atomic.Int32

type testEnv struct {
	ts       *httptest.Server
	srv      *Server
	registry *session.Registry
	hub      *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		MaxClipBytes:   1 << 20,
		CORSOrigins:    []string{"*"},
		AllowAnyOrigin: true,
	}
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", namespaceSeq.Add(1)))
	hub := NewHub(metrics)
	registry := session.NewRegistry(time.Hour, hub)
	mock := speech.NewMockProvider()
	pipeline, err := relay.NewPipeline(relay.Config{
		Peers:           registry,
		Outbox:          hub,
		Transcoder:      audio.PassthroughTranscoder{SampleRate: 16000},
		Recognizer:      mock,
		Translator:      mock,
		Synthesizer:     mock,
		DefaultLanguage: "en-US",
		Metrics:         metrics,
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)

	srv := New(cfg, registry, hub, pipeline, metrics, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, srv: srv, registry: registry, hub: hub}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func next(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]any
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func join(t *testing.T, ws *websocket.Conn, key, language string) {
	t.Helper()
	send(t, ws, map[string]string{"type": "joinSession", "sessionKey": key, "language": language})
}

func clipBase64() string {
	return base64.StdEncoding.EncodeToString(audio.EncodeWAVPCM16LE(make([]byte, 320), 16000))
}

func TestRootBannerAndHealth(t *testing.T) {
	env := newTestEnv(t)

	res, err := http.Get(env.ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Voice Chat Translator Server", string(body))

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/perf/latency", "/v1/sessions"} {
		res, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func TestTwoDevicesRelayTranslatedClip(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)
	b := env.dial(t)

	join(t, a, "abc", "en-US")
	msg := next(t, a)
	require.Equal(t, "sessionStatus", msg["type"])
	require.Equal(t, "waiting", msg["status"])
	require.Equal(t, session.MsgWaiting, msg["message"])

	join(t, b, "abc", "es-ES")
	for _, ws := range []*websocket.Conn{a, b} {
		msg := next(t, ws)
		require.Equal(t, "sessionStatus", msg["type"])
		require.Equal(t, "connected", msg["status"])
		require.Equal(t, session.MsgConnected, msg["message"])
	}

	send(t, a, map[string]any{"type": "voiceTransfer", "audioBase64": clipBase64(), "timestamp": "2026-01-02T03:04:05.000Z"})

	got := next(t, b)
	require.Equal(t, "voiceReceived", got["type"])
	require.Equal(t, "simulated voice input", got["text"])
	require.Equal(t, "[es] simulated voice input", got["translatedText"])
	require.Equal(t, "en-US", got["fromLanguage"])
	require.Equal(t, "es-ES", got["toLanguage"])
	require.Equal(t, "2026-01-02T03:04:05.000Z", got["timestamp"])
	require.EqualValues(t, 1, got["seq"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("[es] simulated voice input")), got["audioBase64"])

	// The sender never receives its own clip: the next thing A sees is the
	// reply to a malformed message.
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	reply := next(t, a)
	require.Equal(t, "error", reply["type"])
	require.Equal(t, "invalid_client_message", reply["code"])
}

func TestThirdDeviceGetsSessionFull(t *testing.T) {
	env := newTestEnv(t)
	a, b, c := env.dial(t), env.dial(t), env.dial(t)

	join(t, a, "abc", "en-US")
	next(t, a)
	join(t, b, "abc", "fr-FR")
	next(t, a)
	next(t, b)

	join(t, c, "abc", "de-DE")
	msg := next(t, c)
	require.Equal(t, "sessionStatus", msg["type"])
	require.Equal(t, "error", msg["status"])
	require.Equal(t, session.MsgFull, msg["message"])

	s, ok := env.registry.Get("abc")
	require.True(t, ok)
	require.Len(t, s.Devices, 2)
}

func TestPeerDisconnectNotifiesRemaining(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.dial(t), env.dial(t)

	join(t, a, "abc", "en-US")
	next(t, a)
	join(t, b, "abc", "es-ES")
	next(t, a)
	next(t, b)

	require.NoError(t, a.Close())

	msg := next(t, b)
	require.Equal(t, "waiting", msg["status"])
	require.Equal(t, session.MsgPeerLeft, msg["message"])
}

func TestVoiceTransferOutsideSession(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)

	send(t, a, map[string]any{"type": "voiceTransfer", "audioBase64": clipBase64(), "timestamp": 1})
	msg := next(t, a)
	require.Equal(t, "error", msg["type"])
	require.Equal(t, "Not in any active session", msg["message"])
	require.Equal(t, "not_in_session", msg["code"])

	join(t, a, "solo", "en-US")
	next(t, a)
	send(t, a, map[string]any{"type": "voiceTransfer", "audioBase64": clipBase64(), "timestamp": 2})
	msg = next(t, a)
	require.Equal(t, "No receiver in session", msg["message"])
}

func TestVoiceTransferRejectsBadPayloads(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)

	send(t, a, map[string]any{"type": "voiceTransfer", "audioBase64": "%%%"})
	require.Equal(t, "invalid_audio", next(t, a)["code"])

	big := base64.StdEncoding.EncodeToString(make([]byte, (1<<20)+1))
	send(t, a, map[string]any{"type": "voiceTransfer", "audioBase64": big})
	require.Equal(t, "clip_too_large", next(t, a)["code"])
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)
	join(t, a, "abc", "auto")
	next(t, a)

	res, err := http.Get(env.ts.URL + "/v1/sessions")
	require.NoError(t, err)
	defer res.Body.Close()

	var body struct {
		TTLMS    int64          `json:"ttl_ms"`
		Sessions []session.View `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, time.Hour.Milliseconds(), body.TTLMS)
	require.Len(t, body.Sessions, 1)
	require.Equal(t, "abc", body.Sessions[0].Key)
	require.Equal(t, session.StatusWaiting, body.Sessions[0].Status)
}

func TestDrainClosesConnectionsAndRejectsReady(t *testing.T) {
	env := newTestEnv(t)
	a := env.dial(t)
	join(t, a, "abc", "en-US")
	next(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.srv.Drain(ctx))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := a.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool { return env.registry.Count() == 0 }, 3*time.Second, 20*time.Millisecond)

	res, err := http.Get(env.ts.URL + "/readyz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHubSendToUnknownConnection(t *testing.T) {
	hub := NewHub(nil)
	require.False(t, hub.Send("nope", struct{}{}))

	c := hub.Register()
	require.True(t, hub.Send(c.id, struct{}{}))
	hub.Unregister(c.id)
	require.False(t, hub.Send(c.id, struct{}{}))
	require.Zero(t, hub.Count())
}
