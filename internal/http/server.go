package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

// Metrics implements core.Metrics on Prometheus collectors.
type Metrics struct {
	APIRequestsTotal  *prometheus.CounterVec
	RateLimitedTotal  prometheus.Counter
	TokenRefreshTotal *prometheus.CounterVec
	PollTicksTotal    *prometheus.CounterVec
	AutoAdvancesTotal prometheus.Counter
	AuthAttemptsTotal *prometheus.CounterVec
	SessionActive     prometheus.Gauge
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codespa_api_requests_total",
				Help: "Total number of Spotify API requests",
			},
			[]string{"endpoint", "status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "codespa_rate_limited_total",
				Help: "Total number of requests refused or rejected by rate limiting",
			},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codespa_token_refresh_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"status"},
		),
		PollTicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codespa_poll_ticks_total",
				Help: "Total number of playback poll ticks",
			},
			[]string{"result"},
		),
		AutoAdvancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "codespa_auto_advances_total",
				Help: "Total number of automatic track advances",
			},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codespa_auth_attempts_total",
				Help: "Total number of auth attempts",
			},
			[]string{"status"},
		),
		SessionActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "codespa_session_active",
				Help: "Whether an authenticated session is active",
			},
		),
	}

	prometheus.MustRegister(
		metrics.APIRequestsTotal,
		metrics.RateLimitedTotal,
		metrics.TokenRefreshTotal,
		metrics.PollTicksTotal,
		metrics.AutoAdvancesTotal,
		metrics.AuthAttemptsTotal,
		metrics.SessionActive,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      newMux(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		config:  config,
		logger:  logger,
		server:  server,
		metrics: metrics,
	}
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"codespa"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"codespa"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting status server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down status server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown status server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("status server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (m *Metrics) RecordAPIRequest(endpoint, status string) {
	m.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}

func (m *Metrics) RecordTokenRefresh(status string) {
	m.TokenRefreshTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordPollTick(result string) {
	m.PollTicksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAutoAdvance() {
	m.AutoAdvancesTotal.Inc()
}

func (m *Metrics) RecordAuthAttempt(status string) {
	m.AuthAttemptsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetSessionActive(active bool) {
	if active {
		m.SessionActive.Set(1)
		return
	}
	m.SessionActive.Set(0)
}
