package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
)

type Options struct {
	Port        string
	ServiceName string
	Ledger      Ledger
	Telemetry   *parking.TelemetryProvider
}

type Server struct {
	httpServer *http.Server
	handler    *Handler
	registry   *prometheus.Registry
}

func NewServer(opts Options) *Server {
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = parking.DefaultServiceName
	}

	handler := NewHandler(opts.Ledger, serviceName)
	registry := newRegistry(opts.Ledger)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	if opts.Telemetry != nil {
		r.Use(TracingMiddleware(serviceName, opts.Telemetry.TracerProvider(), opts.Telemetry.MeterProvider()))
	}
	r.Use(LoggingMiddleware)
	r.Use(CloseConnectionMiddleware)
	r.Use(CORSMiddleware)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.NotFound)

	r.Get("/", handler.Dashboard)
	r.Get("/data", handler.Data)
	r.Post("/park", handler.Park)
	r.Post("/exit", handler.Exit)
	r.Get("/fee", handler.Fee)
	r.Get("/find/{plate}", handler.FindByPlate)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	httpServer.SetKeepAlivesEnabled(false)

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		registry:   registry,
	}
}

// newRegistry exposes the ledger counters next to the Go runtime collectors.
func newRegistry(ledger Ledger) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "smart_parking_capacity",
			Help: "Maximum number of simultaneously parked vehicles.",
		}, func() float64 { return float64(ledger.Stats().Capacity) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "smart_parking_active_vehicles",
			Help: "Vehicles currently parked.",
		}, func() float64 { return float64(ledger.Stats().Active) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "smart_parking_visits_total",
			Help: "Admissions recorded since start.",
		}, func() float64 { return float64(ledger.Stats().Total) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "smart_parking_revenue_rupees_total",
			Help: "Fees billed since start.",
		}, func() float64 { return ledger.Stats().Revenue }),
	)
	return registry
}

// Handler returns the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log := logging.Component("http")
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log := logging.Component("http")
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
