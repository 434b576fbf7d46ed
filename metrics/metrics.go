// Package metrics declares the Prometheus collectors shared by both servers
// and the stats listener that exposes them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketdesk",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "The total number of HTTP requests",
	}, []string{"server", "route", "method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticketdesk",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"server", "route"})

	Throttled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketdesk",
		Subsystem: "http",
		Name:      "throttled_total",
		Help:      "Requests rejected by a rate limiter or quota",
	}, []string{"limiter"})

	SessionHydrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketdesk",
		Subsystem: "session",
		Name:      "hydrations_total",
		Help:      "User fetches issued while loading a session",
	}, []string{"result"})

	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketdesk",
		Subsystem: "guard",
		Name:      "decisions_total",
		Help:      "Route guard outcomes",
	}, []string{"outcome"})
)

// StatsServer serves /metrics on its own listener.
type StatsServer struct {
	server *http.Server
}

// NewStatsServer returns a new StatsServer listening on addr.
func NewStatsServer(addr string) *StatsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &StatsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 10,
			ReadTimeout:       time.Second * 10,
			WriteTimeout:      time.Second * 10,
			MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
		},
	}
}

// ListenAndServe starts the StatsServer.
func (s *StatsServer) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the StatsServer.
func (s *StatsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
