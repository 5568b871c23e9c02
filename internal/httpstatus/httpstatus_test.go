package httpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/component"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

type stubComponent struct {
	desc component.Descriptor
}

func (s *stubComponent) Descriptor() component.Descriptor           { return s.desc }
func (s *stubComponent) Initialize(ctx context.Context) error       { return nil }
func (s *stubComponent) Update(ctx context.Context, dt time.Duration) error { return nil }
func (s *stubComponent) Shutdown(ctx context.Context) error         { return nil }

func TestHealthzReportsNotReadyBeforeMarkReady(t *testing.T) {
	s := New(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var probe Probe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &probe))
	assert.True(t, probe.Live)
	assert.False(t, probe.Ready)
}

func TestHealthzReportsOKAfterMarkReady(t *testing.T) {
	s := New(nil)
	s.MarkReady()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzReportsUnavailableAfterMarkDead(t *testing.T) {
	s := New(nil)
	s.MarkReady()
	s.MarkDead()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusIncludesComponentSnapshot(t *testing.T) {
	registry := component.NewRegistry(eventbus.New(eventbus.DefaultCapacity, nil), nil)
	_, err := registry.Register(context.Background(), &stubComponent{desc: component.Descriptor{Name: "lidar"}})
	require.NoError(t, err)

	s := New(registry)
	s.MarkReady()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var report StatusReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Components, 1)
	assert.Equal(t, "lidar", report.Components[0].Descriptor.Name)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
