// Package web is the admin/status HTTP and WebSocket surface: operator
// login, a per-IMSI routing table lookup, Prometheus metrics, and a live
// feed of completed GSUP procedures. It is entirely separate from the
// GSUP/IPA peer socket.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osmocom-go/hlr-gsup/internal/logger"
	"github.com/osmocom-go/hlr-gsup/pkg/auth"
	"github.com/osmocom-go/hlr-gsup/pkg/health"
	"github.com/osmocom-go/hlr-gsup/pkg/routing"
)

// Server is the admin HTTP+WS surface.
type Server struct {
	addr    string
	server  *http.Server
	log     *logger.Logger
	auth    *auth.Service
	routing *routing.Store
	health  *health.Check

	wsClients    map[*websocket.Conn]bool
	wsClientsMux sync.RWMutex
	upgrader     websocket.Upgrader
}

// Config configures the admin server.
type Config struct {
	Addr    string
	Auth    *auth.Service
	Routing *routing.Store
	Health  *health.Check
	Log     *logger.Logger
}

// New builds a Server. It registers no routes and does not listen; Start
// does both.
func New(cfg Config) *Server {
	return &Server{
		addr:      cfg.Addr,
		log:       cfg.Log.WithComponent("adminweb"),
		auth:      cfg.Auth,
		routing:   cfg.Routing,
		health:    cfg.Health,
		wsClients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start binds addr and serves until Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/routing", s.requireAuth(s.handleRouting))
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("admin surface listening", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the admin server and closes any open
// WebSocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.wsClientsMux.Lock()
	for client := range s.wsClients {
		client.Close()
	}
	s.wsClientsMux.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type sessionContextKey struct{}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.sendError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		session, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.sendError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		s.sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{"token": session.Token})
}

func (s *Server) handleRouting(w http.ResponseWriter, r *http.Request) {
	imsi := r.URL.Query().Get("imsi")
	if imsi == "" {
		s.sendError(w, http.StatusBadRequest, "missing imsi query parameter")
		return
	}

	entry, ok := s.routing.Lookup(imsi)
	if !ok {
		s.sendError(w, http.StatusNotFound, "no routing entry for imsi")
		return
	}
	s.sendJSON(w, http.StatusOK, entry)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.GetStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, status)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, err := s.auth.ValidateToken(token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade websocket connection", err)
		return
	}

	s.wsClientsMux.Lock()
	s.wsClients[conn] = true
	s.wsClientsMux.Unlock()

	defer func() {
		s.wsClientsMux.Lock()
		delete(s.wsClients, conn)
		s.wsClientsMux.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// BroadcastProcedure pushes a completed-GSUP-procedure event to every
// connected admin WebSocket client.
func (s *Server) BroadcastProcedure(procedure, imsi, outcome string) {
	message := map[string]interface{}{
		"type":      "procedure",
		"procedure": procedure,
		"imsi":      imsi,
		"outcome":   outcome,
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.log.Error("failed to marshal websocket message", err)
		return
	}

	s.wsClientsMux.RLock()
	defer s.wsClientsMux.RUnlock()
	for client := range s.wsClients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Warn("failed to send websocket message", "error", err.Error())
		}
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode json response", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
