package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yaron8/tx-latency-prober/metrics"
	"github.com/yaron8/tx-latency-prober/telemetrics"
)

// LastMeasurer exposes the newest record of the running prober.
type LastMeasurer interface {
	Last() (telemetrics.MeasurementRecord, bool)
}

type APIServer struct {
	port    int
	server  *http.Server
	last    LastMeasurer
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewAPIServer(port int, last LastMeasurer, m *metrics.Collector, logger *slog.Logger) *APIServer {
	api := &APIServer{
		port:    port,
		last:    last,
		metrics: m,
		logger:  logger,
	}

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// Handler returns the routed mux wrapped in the request logger.
func (api *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			api.logger.Error("Error writing health check response", "error", err)
		}
	})

	mux.Handle("/metrics", promhttp.HandlerFor(api.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/telemetry/LastMeasurement", api.LastMeasurementHandler)

	return api.middleware(mux)
}

// Start blocks serving HTTP until Shutdown is called.
func (api *APIServer) Start() error {
	api.logger.Info("APIServer starting", "port", api.port)

	if err := api.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		api.logger.Error("Server failed to start", "error", err, "port", api.port)
		return errors.Wrap(err, "failed to start server")
	}

	return nil
}

func (api *APIServer) Shutdown(ctx context.Context) error {
	return api.server.Shutdown(ctx)
}
