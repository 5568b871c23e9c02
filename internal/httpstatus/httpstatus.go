// Package httpstatus exposes the runtime's health, metrics, and status
// surface over HTTP, routed with gorilla/mux — the teacher's own HTTP
// router (infrastructure/service/runner.go's Router() *mux.Router,
// infrastructure/service/routes.go's route registration). The
// liveness/readiness split and the atomic.Bool state flags are grounded
// on the teacher's infrastructure/service.ProbeManager; unlike the
// teacher's package-level default probe manager, Server carries its own
// state rather than a global singleton, since a runtime never shares it
// across instances.
package httpstatus

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/component"
)

// StartupGrace is how long after New the readiness probe reports
// "starting up" instead of "not ready" when the runtime hasn't signaled
// ready yet.
const StartupGrace = 30 * time.Second

// Probe reports the current overall health of the runtime.
type Probe struct {
	Live    bool   `json:"live"`
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// StatusReport extends Probe with component-level detail for /status.
type StatusReport struct {
	Probe
	UptimeSeconds float64            `json:"uptime_seconds"`
	Components    []component.Handle `json:"components,omitempty"`
}

// Server serves the health/metrics/status endpoints.
type Server struct {
	registry  *component.Registry
	startedAt time.Time
	grace     time.Duration

	live  atomic.Bool
	ready atomic.Bool

	router *mux.Router
}

// New builds a Server. registry may be nil if component-level detail
// isn't available yet; the server still answers /healthz and /metrics.
func New(registry *component.Registry) *Server {
	s := &Server{
		registry:  registry,
		startedAt: time.Now(),
		grace:     StartupGrace,
	}
	s.live.Store(true)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router = r

	return s
}

// ServeHTTP makes Server usable directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// MarkReady flips the server into the ready state, called once runtime
// startup (component registration, HIL connect, calibration) completes.
func (s *Server) MarkReady() { s.ready.Store(true) }

// MarkNotReady flips the server out of the ready state, e.g. during an
// emergency-protocol lockdown.
func (s *Server) MarkNotReady() { s.ready.Store(false) }

// MarkDead marks the runtime as no longer live, signaling that it
// should be restarted by its supervisor.
func (s *Server) MarkDead() { s.live.Store(false) }

func (s *Server) probe() Probe {
	p := Probe{Live: s.live.Load(), Ready: s.ready.Load()}
	switch {
	case !p.Live:
		p.Message = "runtime not live"
	case !p.Ready && time.Since(s.startedAt) < s.grace:
		p.Message = "starting up"
	case !p.Ready:
		p.Message = "runtime not ready"
	}
	return p
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	p := s.probe()
	w.Header().Set("Content-Type", "application/json")
	if !p.Live || !p.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(p)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := StatusReport{
		Probe:         s.probe(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.registry != nil {
		report.Components = s.registry.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
