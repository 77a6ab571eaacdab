package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HendryAvila/smartflow/internal/logging"
)

// MetricsHandler serves /metrics from the app registry and a /healthz
// probe reporting the enabled subsystems.
func (a *App) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", a.healthCheckHandler)
	return mux
}

type healthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Memory   bool     `json:"memory"`
	Sources  []string `json:"knowledgeSources"`
	Projects int      `json:"projects"`
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:   "healthy",
		Version:  Version,
		Memory:   a.Memory != nil,
		Sources:  []string{},
		Projects: len(a.Broker.Projects()),
	}
	for _, s := range a.Knowledge.Sources() {
		resp.Sources = append(resp.Sources, string(s))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// MetricsServer is the optional HTTP side listener next to the stdio MCP
// transport.
type MetricsServer struct {
	server *http.Server
	logger *logging.Logger
	addr   string
}

// NewMetricsServer creates a listener for handler on addr.
func NewMetricsServer(addr string, handler http.Handler, logger *logging.Logger) *MetricsServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MetricsServer{
		addr:   addr,
		logger: logger.Named("metrics"),
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
}

// Start binds the address and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (m *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", m.addr, err)
	}
	m.addr = ln.Addr().String()
	m.logger.Info(context.Background(), "metrics listener started", zap.String("addr", m.addr))

	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error(context.Background(), "metrics listener failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (m *MetricsServer) Addr() string {
	return m.addr
}

// Shutdown gracefully stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
