package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/banshee-data/rover.nav/internal/httputil"
	"github.com/banshee-data/rover.nav/internal/monitoring"
	"github.com/banshee-data/rover.nav/internal/version"
)

var logServer = monitoring.Component("monitor")

// WebServer serves mission status and debug charts for a running mission.
type WebServer struct {
	address   string
	source    StatusSource
	plotter   *MapPlotter
	decisions DecisionSource
	server    *http.Server
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	Source  StatusSource
	// Plotter, when set, supplies the mapped-percentage history for /debug/mission.
	Plotter *MapPlotter
	// Decisions, when set, backs /api/decisions.
	Decisions DecisionSource
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:   config.Address,
		source:    config.Source,
		plotter:   config.Plotter,
		decisions: config.Decisions,
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the route table.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/status", ws.handleStatus)
	mux.HandleFunc("/api/decisions", ws.handleDecisions)
	mux.HandleFunc("/debug/worldmap", ws.handleWorldMapChart)
	mux.HandleFunc("/debug/mission", ws.handleMissionChart)
	return mux
}

// Start serves until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logServer("starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logServer("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		logServer("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			logServer("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "version": version.String()})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if ws.source == nil {
		httputil.ServiceUnavailable(w, "no mission running")
		return
	}
	httputil.WriteJSONOK(w, ws.source.Status())
}
