package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crmbridge/crmbridge-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

func healthConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	HealthLive(healthConfig())(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-CRMBridge-Env"))
	assert.Contains(t, rec.Body.String(), `"status":"live"`)
}

func TestHealthReadyAllUp(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	HealthReady(healthConfig(), nil, map[string]Pinger{"db": &stubPinger{}, "redis": &stubPinger{}})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"up"`)
	assert.Contains(t, rec.Body.String(), `"redis":"up"`)
}

func TestHealthReadyDependencyDown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	HealthReady(healthConfig(), nil, map[string]Pinger{"db": &stubPinger{err: errors.New("connection refused")}, "redis": &stubPinger{}})(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"down"`)
	assert.Contains(t, rec.Body.String(), `"redis":"up"`)
}

func TestHealthReadySkipsMissingPingers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	HealthReady(healthConfig(), nil, map[string]Pinger{"db": &stubPinger{}, "redis": nil})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"skipped"`)
}
