// Package api is the operator-facing HTTP/WS surface: health, engine
// state (positions, vetoes, equity, regime), Prometheus scrape, a
// gorilla/websocket live-state stream, and the command endpoint that
// feeds ControlPlane.Execute. Every mutating route requires a bearer
// JWT issued by controlplane.IssueToken.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twequity/trading-engine/internal/controlplane"
	"github.com/twequity/trading-engine/pkg/types"
)

// Engine is the subset of the trading engine the operator API reads
// state from directly (commands themselves go through ControlPlane).
type Engine interface {
	Positions() map[string]types.Position
	VetoEvents() []types.VetoEvent
	Equity() decimal.Decimal
	ListStrategies() []string
}

// Server wraps the operator HTTP API over an *mux.Router.
type Server struct {
	logger  *zap.Logger
	engine  Engine
	cp      *controlplane.ControlPlane
	secret  []byte
	router  *mux.Router
	httpSrv *http.Server

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]struct{}
}

// Config holds the listener address and auth secret.
type Config struct {
	Addr         string
	JWTSecret    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New builds a Server. JWTSecret must be non-empty; every mutating
// route (command, strategy selection) is rejected with 401 otherwise.
func New(logger *zap.Logger, cfg Config, engine Engine, cp *controlplane.ControlPlane) *Server {
	s := &Server{
		logger: logger.Named("api"),
		engine: engine,
		cp:     cp,
		secret: []byte(cfg.JWTSecret),
		router: mux.NewRouter(),
		subs:   make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(s.router)

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/positions", s.auth(s.handlePositions)).Methods(http.MethodGet)
	s.router.HandleFunc("/vetoes", s.auth(s.handleVetoes)).Methods(http.MethodGet)
	s.router.HandleFunc("/equity", s.auth(s.handleEquity)).Methods(http.MethodGet)
	s.router.HandleFunc("/strategies", s.auth(s.handleStrategies)).Methods(http.MethodGet)
	s.router.HandleFunc("/command", s.auth(s.handleCommand)).Methods(http.MethodPost)
	s.router.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// ListenAndServe blocks serving HTTP until ctx is canceled, then
// gracefully shuts down within 5 seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("operator API listening", zap.String("addr", s.httpSrv.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// Broadcast pushes a JSON-encoded engine state snapshot to every
// connected websocket client, dropping any client that can't keep up.
func (s *Server) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("broadcast marshal failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.subs {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.subs, conn)
		}
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := controlplane.VerifyToken(s.secret, token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Positions())
}

func (s *Server) handleVetoes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.VetoEvents())
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"equity": s.engine.Equity().String()})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.ListStrategies())
}

type commandRequest struct {
	Line string `json:"line"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	reply, err := s.cp.Dispatch(r.Context(), req.Line)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"reply": reply})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.subs[conn] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
