// Package server exposes the voice pipeline over HTTP: a WebSocket endpoint
// that runs one orchestrator session per connection, plus health and metrics
// endpoints. The server owns session lifecycles; everything below the wire
// protocol lives in internal/orchestrator.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/health"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/observe"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/orchestrator"
)

// defaultWriteTimeout bounds a single outbound WebSocket write. A client
// that stops reading gets its session torn down rather than blocking the
// playback dispatcher forever.
const defaultWriteTimeout = 10 * time.Second

// SessionFactory builds the orchestrator for one accepted connection. The
// server owns the returned session's lifecycle: Start on accept, Close on
// disconnect or shutdown.
type SessionFactory func(id string, client orchestrator.Client) *orchestrator.Orchestrator

// Server accepts voice sessions over WebSocket and serves the operational
// endpoints (/healthz, /readyz, /metrics).
type Server struct {
	log          *slog.Logger
	factory      SessionFactory
	health       *health.Handler
	metrics      *observe.Metrics
	writeTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*liveSession
	draining bool
}

// liveSession pairs a running orchestrator with its connection so shutdown
// can close both.
type liveSession struct {
	orch *orchestrator.Orchestrator
	conn *websocket.Conn
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. The default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics sets the metrics sink. The default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithWriteTimeout bounds each outbound WebSocket write. The default is 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// New creates a Server. factory is called once per accepted connection;
// checkers feed the /readyz endpoint.
func New(factory SessionFactory, checkers []health.Checker, opts ...Option) *Server {
	s := &Server{
		factory:      factory,
		writeTimeout: defaultWriteTimeout,
		sessions:     make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.health = health.New(s.SessionCount, checkers...)
	return s
}

// SessionCount reports the number of live voice sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Handler returns the HTTP mux serving /ws, the health endpoints, and
// /metrics, wrapped in the tracing middleware. Every request carries a
// server span and an X-Correlation-ID header derived from its trace id; for
// /ws that span covers the whole session.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// Run serves on addr until ctx is cancelled, then drains: the listener stops
// accepting, open sessions are closed, and the HTTP server shuts down.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.Shutdown(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown closes every live session concurrently. New connections are
// rejected once shutdown begins.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.draining = true
	open := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		open = append(open, ls)
	}
	s.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, ls := range open {
		g.Go(func() error {
			ls.conn.Close(websocket.StatusGoingAway, "server shutting down")
			ls.orch.Close()
			return nil
		})
	}
	g.Wait()
	s.log.Info("all sessions closed", "count", len(open))
}

// ─── Connection handling ──────────────────────────────────────────────────────

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients connect from arbitrary origins during local
		// development; origin policy is enforced at the edge.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	id := uuid.NewString()
	log := s.log.With("session_id", id)

	client := &wsClient{conn: conn, timeout: s.writeTimeout}
	orch := s.factory(id, client)

	if !s.register(id, orch, conn) {
		client.send(r.Context(), serverMessage{Event: eventError, Message: "server shutting down"})
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		orch.Close()
		return
	}
	defer func() {
		s.unregister(id)
		orch.Close()
		conn.Close(websocket.StatusNormalClosure, "session ended")
	}()

	orch.Start(context.Background())
	log.Info("session started", "remote_addr", r.RemoteAddr)

	greeting := serverMessage{
		Event:     eventConnected,
		SessionID: id,
		Message:   "session established",
	}
	if err := client.send(r.Context(), greeting); err != nil {
		log.Warn("greeting send failed", "error", err)
		return
	}

	s.readLoop(r.Context(), conn, orch, log)
}

// register adds the session unless the server is draining.
func (s *Server) register(id string, orch *orchestrator.Orchestrator, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.sessions[id] = &liveSession{orch: orch, conn: conn}
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// readLoop decodes inbound events and forwards them to the orchestrator.
// Malformed or unknown messages are logged and ignored; the loop ends on the
// first read error (disconnect, close, context cancellation).
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, orch *orchestrator.Orchestrator, log *slog.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				log.Info("client disconnected")
			} else {
				log.Warn("connection read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("ignoring malformed client message", "error", err)
			continue
		}

		switch msg.Type {
		case eventSpeechStart:
			orch.OnSpeechStart()
		case eventSpeechEnd:
			audio, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				log.Warn("ignoring speech_end with undecodable audio", "error", err)
				continue
			}
			orch.OnSpeechEnd(audio)
		case eventClientPlaybackStarted:
			orch.OnClientPlaybackStarted()
		case eventClientPlaybackComplete:
			orch.OnClientPlaybackComplete()
		default:
			log.Warn("ignoring unknown client event", "type", msg.Type)
		}
	}
}

// ─── Outbound writer ──────────────────────────────────────────────────────────

// wsClient adapts one WebSocket connection to the orchestrator's outbound
// contract. Writes are serialised through a mutex and individually bounded
// by the write timeout.
type wsClient struct {
	conn    *websocket.Conn
	timeout time.Duration

	mu sync.Mutex
}

var _ orchestrator.Client = (*wsClient)(nil)

func (c *wsClient) PlayAudio(ctx context.Context, audio string) error {
	return c.send(ctx, serverMessage{Event: eventPlayAudio, Audio: audio})
}

func (c *wsClient) StopPlayback(ctx context.Context) error {
	return c.send(ctx, serverMessage{Event: eventStopPlayback})
}

func (c *wsClient) ResumePlayback(ctx context.Context) error {
	return c.send(ctx, serverMessage{Event: eventPlaybackResume})
}

func (c *wsClient) ResetPlayback(ctx context.Context) error {
	return c.send(ctx, serverMessage{Event: eventPlaybackReset})
}

func (c *wsClient) send(ctx context.Context, msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}
