package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubdesk/clubdesk/internal/observability"
	_ "github.com/clubdesk/clubdesk/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "log", cfg.MailDriver)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "1h0m0s", cfg.SessionTTL.String())
	assert.Equal(t, "1h0m0s", cfg.ResetTokenTTL.String())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "short")
	_, err = LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadWorkerConfigSkipsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)

	t.Setenv("REDIS_ADDR", " ")
	_, err = LoadWorkerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ADDR")
}

func TestConfigValidateCrossFieldRules(t *testing.T) {
	cfg := Config{
		JWTSecret:     "0123456789abcdef",
		MailDriver:    " SMTP ",
		BackendURL:    "localhost:8080",
		FrontURL:      "http://localhost:5173",
		SessionTTL:    1,
		ResetTokenTTL: 1,
		BcryptCost:    40,
	}
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "SMTP_HOST")
	assert.Contains(t, msg, "BACKEND_URL")
	assert.Contains(t, msg, "BCRYPT_COST")
	assert.NotContains(t, msg, "FRONT_URL")
	assert.Equal(t, "smtp", cfg.MailDriver)

	cfg.SMTPHost = "mail.example.com"
	cfg.BackendURL = "https://api.example.com"
	cfg.BcryptCost = 12
	assert.NoError(t, cfg.Validate())

	cfg.MailDriver = "pigeon"
	assert.Error(t, cfg.Validate())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "test"}, &buf).Info("hello")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"service":"clubdesk"`)
	assert.Contains(t, out, `"env":"test"`)
}

func testConfig() *Config {
	return &Config{AppEnv: "test", FrontURL: "http://front.example", RateLimitPerMinute: 0}
}

func TestRouterHealthz(t *testing.T) {
	h := NewRouter(RouterParams{Config: testConfig(), HealthChecks: []HealthCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
	}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, rec.Body.String())

	h = NewRouter(RouterParams{Config: testConfig(), HealthChecks: []HealthCheck{
		{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }},
	}})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"unavailable"}}`, rec.Body.String())
}

func TestRouterNotFoundIsJSON(t *testing.T) {
	h := NewRouter(RouterParams{Config: testConfig()})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"route not found"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterCORSPreflightAllowsAccessTokenHeader(t *testing.T) {
	h := NewRouter(RouterParams{Config: testConfig()})
	req := httptest.NewRequest(http.MethodOptions, "/user/login", nil)
	req.Header.Set("Origin", "http://front.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Access-Token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://front.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-access-token")
}

func TestRouterServesMetrics(t *testing.T) {
	h := NewRouter(RouterParams{Config: testConfig(), Metrics: observability.NewMetrics()})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clubdesk_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestInTestModeUnderGuard(t *testing.T) {
	assert.True(t, InTestMode())
}
