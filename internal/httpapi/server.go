package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicebridge/internal/config"
	"github.com/ent0n29/voicebridge/internal/observability"
	"github.com/ent0n29/voicebridge/internal/protocol"
	"github.com/ent0n29/voicebridge/internal/relay"
	"github.com/ent0n29/voicebridge/internal/session"
)

const (
	banner       = "Voice Chat Translator Server"
	readTimeout  = 120 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Relayer runs one clip through the relay pipeline.
type Relayer interface {
	Relay(ctx context.Context, clip relay.Clip) error
}

type Server struct {
	cfg      config.Config
	registry *session.Registry
	hub      *Hub
	relayer  Relayer
	metrics  *observability.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func New(cfg config.Config, registry *session.Registry, hub *Hub, relayer Relayer, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		hub:      hub,
		relayer:  relayer,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 << 10,
			WriteBufferSize: 16 << 10,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Native mobile clients omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(banner))
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Group(func(r chi.Router) {
		if s.cfg.UpgradesPerMin > 0 {
			r.Use(httprate.LimitByIP(s.cfg.UpgradesPerMin, time.Minute))
		}
		r.Get("/ws", s.handleWS)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	draining := s.draining
	s.mu.Unlock()
	if draining {
		respondError(w, http.StatusServiceUnavailable, "draining", "server is shutting down")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"sessions":    s.registry.Count(),
		"connections": s.hub.Count(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"ttl_ms":   s.registry.TTL().Milliseconds(),
		"sessions": s.registry.Snapshot(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	c := s.hub.Register()
	log := s.log.With().Str("conn_id", c.id).Logger()
	log.Debug().Str("remote", r.RemoteAddr).Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, ws, c, cancel, log)
	}()

	// base64 inflates by 4/3; leave headroom for the envelope.
	ws.SetReadLimit(s.cfg.MaxClipBytes*4/3 + 4096)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	var seq uint64
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read ended")
			}
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.metrics.ObserveInbound("invalid")
			s.hub.Send(c.id, protocol.ErrorEvent{
				Type:    protocol.TypeError,
				Message: "Invalid message: " + err.Error(),
				Code:    "invalid_client_message",
			})
			continue
		}
		s.metrics.ObserveInbound(messageTypeOf(parsed))

		switch m := parsed.(type) {
		case protocol.JoinSession:
			s.handleJoin(c.id, m, log)
		case protocol.VoiceTransfer:
			audio, err := base64.StdEncoding.DecodeString(m.AudioBase64)
			if err != nil {
				s.hub.Send(c.id, protocol.ErrorEvent{Type: protocol.TypeError, Message: "Invalid audio payload", Code: "invalid_audio"})
				continue
			}
			if int64(len(audio)) > s.cfg.MaxClipBytes {
				s.hub.Send(c.id, protocol.ErrorEvent{Type: protocol.TypeError, Message: "Voice clip is too large", Code: "clip_too_large"})
				continue
			}
			seq++
			s.startRelay(ctx, relay.Clip{
				SenderConnID: c.id,
				Audio:        audio,
				Timestamp:    m.Timestamp,
				Seq:          seq,
			}, log)
		}
	}

	cancel()
	s.registry.Leave(c.id)
	s.hub.Unregister(c.id)
	<-writerDone
	log.Debug().Msg("websocket disconnected")
}

func (s *Server) handleJoin(connID string, m protocol.JoinSession, log zerolog.Logger) {
	_, err := s.registry.Join(m.SessionKey, connID, m.Language)
	switch {
	case err == nil:
		log.Debug().Str("session_key", m.SessionKey).Str("language", m.Language).Msg("joined session")
	case errors.Is(err, session.ErrSessionFull):
		s.hub.Send(connID, protocol.SessionStatus{
			Type:    protocol.TypeSessionStatus,
			Status:  "error",
			Message: session.MsgFull,
		})
	default:
		s.hub.Send(connID, protocol.ErrorEvent{Type: protocol.TypeError, Message: err.Error(), Code: "invalid_join"})
	}
}

// startRelay runs the clip detached from the connection so a sender that
// disconnects mid-flight does not cancel provider calls.
func (s *Server) startRelay(ctx context.Context, clip relay.Clip, log zerolog.Logger) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		s.hub.Send(clip.SenderConnID, protocol.ErrorEvent{Type: protocol.TypeError, Message: "Server is shutting down", Code: "draining"})
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Uint64("seq", clip.Seq).Msg("relay panicked")
				s.hub.Send(clip.SenderConnID, protocol.ErrorEvent{Type: protocol.TypeError, Message: "Server error", Code: "server_error"})
			}
		}()
		_ = s.relayer.Relay(context.WithoutCancel(ctx), clip)
	}()
}

func (s *Server) writeLoop(ctx context.Context, ws *websocket.Conn, c *conn, cancel context.CancelFunc, log zerolog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			_ = ws.Close()
			return
		case msg := <-c.outbound:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				cancel()
				_ = ws.Close()
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cancel()
				_ = ws.Close()
				return
			}
		}
	}
}

// Drain stops accepting clips, disconnects every websocket and waits for
// in-flight relays to finish or ctx to end.
func (s *Server) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
