package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xompass/vsaas-camera-proxy/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>viewer</html>"), 0o644))

	return &config.Config{
		Server:   config.ServerConfig{Port: 8000, LogLevel: "error"},
		Security: config.SecurityConfig{SecretKey: "secret"},
		Upstream: config.UpstreamConfig{BaseURL: "https://api.angelcam.com"},
		Static:   config.StaticConfig{Dir: staticDir},
		Metrics:  config.MetricsConfig{Enabled: true},
	}
}

func serve(t *testing.T, cfg *config.Config, target string) *httptest.ResponseRecorder {
	t.Helper()

	app, err := newApp(cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.EchoApp.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewApp_Routes(t *testing.T) {
	cfg := testConfig(t)

	rec := serve(t, cfg, "/cameras/")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = serve(t, cfg, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = serve(t, cfg, "/viewer/112859/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "viewer")

	rec = serve(t, cfg, "/recording/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, cfg, "/camera/abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())
}

func TestNewApp_Environment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Environment = "Staging"

	app, err := newApp(cfg)
	require.NoError(t, err)
	assert.Equal(t, "staging", app.GetEnvironment())
}

func TestNewApp_RequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.SecretKey = ""

	_, err := newApp(cfg)
	assert.Error(t, err)
}
