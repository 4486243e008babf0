// Package server exposes the chat service over HTTP: the websocket endpoint
// participants speak through, the bootstrap config API the frontend loads
// first, and the static frontend files themselves.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/lingodesk/lingodesk/pkg/broker"
	"github.com/lingodesk/lingodesk/pkg/config"
	"github.com/lingodesk/lingodesk/pkg/coordinator"
	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/presenter"
	"github.com/lingodesk/lingodesk/pkg/types/chat"
)

// Server wires the websocket hub, the coordinator and the REST surface.
type Server struct {
	router      *mux.Router
	cfg         *config.Config
	hub         *broker.Hub
	coordinator *coordinator.Coordinator
	upgrader    websocket.Upgrader
	server      *http.Server
}

// New builds the HTTP server around an already-wired hub and coordinator.
func New(cfg *config.Config, hub *broker.Hub, coord *coordinator.Coordinator) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		cfg:         cfg,
		hub:         hub,
		coordinator: coord,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()
	return s
}

// checkOrigin admits browsers from the configured frontend origin. Requests
// without an Origin header (CLI tools, tests) are always admitted.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.FrontendOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return strings.EqualFold(origin, s.cfg.FrontendOrigin)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/v1/config", s.handleConfig).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	if s.cfg.StaticDir != "" {
		s.router.PathPrefix("/").HandlerFunc(s.handleStatic)
	}

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleWebSocket upgrades the connection and pumps inbound events into the
// coordinator until the participant goes away. Role and conversation come
// from query parameters; anything unrecognized is treated as a customer in
// the default conversation.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	role := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role")))
	if role != chat.RoleAgent {
		role = chat.RoleClient
	}
	cid := strings.TrimSpace(r.URL.Query().Get("cid"))
	if cid == "" {
		cid = "default"
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.G(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	ctx := r.Context()
	conn := s.hub.Add(ctx, ws, role, cid)
	s.coordinator.OnConnect(ctx, cid, role)

	conn.ReadLoop(ctx, func(event string, data json.RawMessage) {
		s.dispatch(ctx, conn, event, data)
	})

	s.hub.Remove(ctx, conn)
	s.coordinator.OnDisconnect(ctx, cid, role)
}

// dispatch routes one inbound envelope to the coordinator. Events arrive on
// the connection's read loop, so handlers for a single participant run in
// order.
func (s *Server) dispatch(ctx context.Context, conn *broker.Conn, event string, data json.RawMessage) {
	switch event {
	case chat.EventClientMessage:
		var msg chat.ClientMessage
		if !decode(ctx, event, data, &msg) {
			return
		}
		msg.Message = s.capMessage(msg.Message)
		s.coordinator.OnClientMessage(ctx, conn.CID, msg)
	case chat.EventAgentMessage:
		var msg chat.AgentMessage
		if !decode(ctx, event, data, &msg) {
			return
		}
		msg.Message = s.capMessage(msg.Message)
		s.coordinator.OnAgentMessage(ctx, conn.CID, msg)
	case chat.EventAgentTyping:
		s.coordinator.OnAgentTyping(ctx, conn.CID)
	case chat.EventAgentSetStatus:
		var msg chat.AgentSetStatus
		if !decode(ctx, event, data, &msg) {
			return
		}
		s.coordinator.OnAgentSetStatus(ctx, conn.CID, msg.Wants())
	default:
		logger.G(ctx).WithField("event", event).Debug("ignoring unknown event")
	}
}

// capMessage enforces the message length limit advertised through the config
// endpoint. The limit counts runes, not bytes.
func (s *Server) capMessage(text string) string {
	limit := s.cfg.MaxMessageLength
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// decode unmarshals an event payload. A missing payload decodes to the zero
// value, which every event type treats as a sensible default.
func decode(ctx context.Context, event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.G(ctx).WithError(err).WithField("event", event).Warn("dropping undecodable payload")
		return false
	}
	return true
}

// handleConfig returns the settings the frontend needs before opening the
// socket.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"status": "success",
		"config": map[string]any{
			"API_BASE_URL":        s.cfg.APIBaseURL,
			"DEFAULT_CLIENT_LANG": s.cfg.DefaultClientLang,
			"TRANSLATION_ENABLED": s.cfg.TranslationEnabled,
			"MAX_MESSAGE_LENGTH":  s.cfg.MaxMessageLength,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"status":      "ok",
		"connections": s.hub.Len(),
	})
}

// handleStatic serves the frontend files, falling back to index.html so
// client-side routes resolve after a hard refresh.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "index.html"
	}

	// Cleaning a rooted path strips any traversal segments.
	path := filepath.Join(s.cfg.StaticDir, filepath.Clean("/"+name))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		path = filepath.Join(s.cfg.StaticDir, "index.html")
	}
	http.ServeFile(w, r, path)
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    duration,
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers for the configured frontend origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.FrontendOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade take over the underlying connection even
// though the logging middleware wrapped the writer.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying writer does not support hijacking")
	}
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Start runs the server until ctx is cancelled, then drains websocket
// connections and shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Serving on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("HTTP server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.coordinator.Close()
	s.hub.CloseAll(shutdownCtx)
	return s.server.Shutdown(shutdownCtx)
}

// Stop closes the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
