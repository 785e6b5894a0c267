package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/ScreenCycler/internal/config"
	"github.com/bryanchriswhite/ScreenCycler/internal/logger"
	"github.com/bryanchriswhite/ScreenCycler/internal/notify"
	"github.com/bryanchriswhite/ScreenCycler/internal/selection"
	"github.com/bryanchriswhite/ScreenCycler/internal/switcher"
	"github.com/bryanchriswhite/ScreenCycler/internal/topology"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Controller is the switcher surface the API exposes.
type Controller interface {
	Snapshot() switcher.Status
	Topology() *topology.Topology
	Combinations() []switcher.View
	HandleAction(ctx context.Context, a switcher.Action) (switcher.Status, error)
	SelectDisplay(ctx context.Context, display string) (switcher.Status, error)
	SetConfig(cfg *config.Config)
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	ctrl      Controller
	configMgr *config.Manager
	hub       *notify.Hub
	upgrader  websocket.Upgrader
}

// NewServer creates a new API server. configMgr and hub may be nil, which
// disables the config and stream endpoints.
func NewServer(ctrl Controller, configMgr *config.Manager, hub *notify.Hub) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		ctrl:      ctrl,
		configMgr: configMgr,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local control surface
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Layout state
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/topology", s.handleTopology).Methods("GET")
	api.HandleFunc("/topology/{output}", s.handleOutput).Methods("GET")
	api.HandleFunc("/combinations", s.handleCombinations).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)

	// Actions
	api.HandleFunc("/actions/{action}", s.handleAction).Methods("POST")
	api.HandleFunc("/displayed", s.handleSetDisplayed).Methods("PUT")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until ctx is done.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().Str("addr", "http://localhost"+addr).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Failed to write response")
	}
}

// HTTP Handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	topo := s.ctrl.Topology()
	if topo == nil {
		http.Error(w, "No topology detected yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, topo)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	topo := s.ctrl.Topology()
	if topo == nil {
		http.Error(w, "No topology detected yet", http.StatusServiceUnavailable)
		return
	}
	id := mux.Vars(r)["output"]
	output, ok := topo.Lookup(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown output %q", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (s *Server) handleCombinations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Combinations())
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action, err := switcher.ParseAction(mux.Vars(r)["action"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	status, err := s.ctrl.HandleAction(r.Context(), action)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Str("action", string(action)).Msg("Action failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "status": status})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSetDisplayed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Display string `json:"display"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Display == "" {
		http.Error(w, "display is required", http.StatusBadRequest)
		return
	}

	status, err := s.ctrl.SelectDisplay(r.Context(), req.Display)
	if errors.Is(err, selection.ErrNotAvailable) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "Streaming disabled", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Subscribe to status changes
	updates := s.hub.Subscribe()
	defer s.hub.Unsubscribe(updates)
	logger.WithComponent("api").Debug().Int("subscribers", s.hub.Len()).Msg("Stream client connected")

	// Detect client close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Stream updates
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.WithComponent("api").Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "No configuration manager", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "No configuration manager", http.StatusNotFound)
		return
	}

	cfg := s.configMgr.Get()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.configMgr.Update(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.ctrl.SetConfig(cfg)

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>ScreenCycler</title>
</head>
<body>
    <h1>ScreenCycler</h1>
    <ul>
        <li><a href="/api/status">/api/status</a> - Current layout status</li>
        <li><a href="/api/combinations">/api/combinations</a> - Available layouts</li>
        <li><a href="/api/topology">/api/topology</a> - Detected outputs</li>
        <li><a href="/api/config">/api/config</a> - Configuration</li>
        <li><a href="/api/health">/api/health</a> - Server health check</li>
    </ul>
    <p>POST <code>/api/actions/{next|previous|select|apply|refresh}</code> to drive the switcher.</p>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
