// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soothill/smartthings-tv-bridge/config"
	"github.com/soothill/smartthings-tv-bridge/pkg/interfaces"
	"golang.org/x/time/rate"
)

// fakeRecorder implements interfaces.StatusRecorder for handler tests
type fakeRecorder struct {
	healthErr error
}

func (f *fakeRecorder) WriteStatus(reading *interfaces.StatusReading) error { return nil }

func (f *fakeRecorder) Flush() {}
func (f *fakeRecorder) Close() {}

func (f *fakeRecorder) Health(ctx context.Context) error { return f.healthErr }

func TestHealthCheckHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	healthCheckHandler(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthCheckHandler() status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if w.Body.String() != "OK" {
		t.Errorf("healthCheckHandler() body = %s, want OK", w.Body.String())
	}
}

func TestReadinessCheckHandler_NoRecorder(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	readinessCheckHandler(w, req, nil)

	if w.Code != http.StatusOK {
		t.Errorf("readinessCheckHandler() status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "READY" {
		t.Errorf("readinessCheckHandler() body = %s, want READY", w.Body.String())
	}
}

func TestReadinessCheckHandler_UnhealthyRecorder(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	readinessCheckHandler(w, req, &fakeRecorder{healthErr: fmt.Errorf("influxdb down")})

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readinessCheckHandler() status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestReadinessCheckHandler_HealthyRecorder(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	readinessCheckHandler(w, req, &fakeRecorder{})

	if w.Code != http.StatusOK {
		t.Errorf("readinessCheckHandler() status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_WithinLimit(t *testing.T) {
	limiter := rate.NewLimiter(10, 20)

	testHandler := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}

	rateLimitedHandler := rateLimitMiddleware(limiter, testHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	rateLimitedHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("rateLimitMiddleware() status = %d, want %d", w.Code, http.StatusOK)
	}

	if w.Body.String() != "OK" {
		t.Errorf("rateLimitMiddleware() body = %s, want OK", w.Body.String())
	}
}

func TestRateLimitMiddleware_ExceedLimit(t *testing.T) {
	limiter := rate.NewLimiter(1, 1)

	testHandler := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}

	rateLimitedHandler := rateLimitMiddleware(limiter, testHandler)

	// First request should succeed
	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	w1 := httptest.NewRecorder()
	rateLimitedHandler(w1, req1)

	if w1.Code != http.StatusOK {
		t.Errorf("First request: status = %d, want %d", w1.Code, http.StatusOK)
	}

	// Second request should be rate limited (burst is exhausted)
	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	w2 := httptest.NewRecorder()
	rateLimitedHandler(w2, req2)

	if w2.Code != http.StatusTooManyRequests {
		t.Errorf("Second request: status = %d, want %d", w2.Code, http.StatusTooManyRequests)
	}

	if !strings.Contains(w2.Body.String(), "Rate limit exceeded") {
		t.Errorf("Second request: body = %s, want to contain 'Rate limit exceeded'", w2.Body.String())
	}
}

func TestNew_WithoutOptionalComponents(t *testing.T) {
	stateDir := t.TempDir()
	cfg := &config.Config{
		SmartThings: config.SmartThingsConfig{
			APIURL:  "https://api.smartthings.com/v1",
			Timeout: 15 * time.Second,
		},
		Bridge: config.BridgeConfig{
			Name:           "Test Bridge",
			Pin:            "00102003",
			StateDirectory: stateDir,
		},
		Logging: config.LoggingConfig{Level: "error"},
	}

	app, err := New(cfg, "9091", config.NewWatcher("config.yaml", make(chan *config.Config)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if app.recorder != nil {
		t.Error("recorder should be nil when InfluxDB is not configured")
	}
	if app.notifier.IsEnabled() {
		t.Error("notifier should be disabled without a webhook URL")
	}
	if app.coordinator == nil {
		t.Fatal("coordinator is nil")
	}
	if app.bridge.AccessoryCount() != 0 {
		t.Errorf("AccessoryCount() = %d, want 0", app.bridge.AccessoryCount())
	}
}

func TestNew_InfluxDBFailure(t *testing.T) {
	cfg := &config.Config{
		Bridge: config.BridgeConfig{
			Name:           "Test Bridge",
			Pin:            "00102003",
			StateDirectory: t.TempDir(),
		},
		InfluxDB: config.InfluxDBConfig{
			URL:          "http://invalid-host-does-not-exist:8086",
			Token:        "test-token",
			Organization: "test-org",
			Bucket:       "test-bucket",
		},
		Logging: config.LoggingConfig{Level: "error"},
	}

	if _, err := New(cfg, "9092", config.NewWatcher("config.yaml", make(chan *config.Config))); err == nil {
		t.Error("New() error = nil, want error when InfluxDB connection fails")
	}
}

func TestMain_ConfigFileHandling(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test-config.yaml")

	configContent := `
smartthings:
  token: "test-token"
  api_url: "https://api.smartthings.com/v1"
  timeout: 15s

bridge:
  name: "Test Bridge"
  pin: "00102003"
  state_directory: "` + tempDir + `"

device_mappings:
  - device_id: "d1"
    mac_address: "AA:BB:CC:DD:EE:FF"
    ip_address: "10.0.0.5"

monitoring:
  poll_interval: 30s

logging:
  level: "info"

notifications:
  slack_webhook_url: ""
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load test config: %v", err)
	}

	if cfg.SmartThings.Token != "test-token" {
		t.Errorf("SmartThings token = %s, want test-token", cfg.SmartThings.Token)
	}

	if len(cfg.DeviceMappings) != 1 || cfg.DeviceMappings[0].DeviceID != "d1" {
		t.Errorf("DeviceMappings = %+v, want one entry for d1", cfg.DeviceMappings)
	}

	if cfg.Monitoring.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Monitoring.PollInterval)
	}
}

func TestPerformConfigValidation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
smartthings:
  token: "test-token"

bridge:
  name: "Test Bridge"
  pin: "00102003"
  state_directory: "` + tempDir + `"

logging:
  level: "info"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	if got := performConfigValidation(configPath); got != 0 {
		t.Errorf("performConfigValidation() = %d, want 0", got)
	}
}

func TestPerformConfigValidation_MissingFile(t *testing.T) {
	if got := performConfigValidation(filepath.Join(t.TempDir(), "missing.yaml")); got != 1 {
		t.Errorf("performConfigValidation() = %d, want 1", got)
	}
}

func TestPerformHealthCheck_NoInfluxDB(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
smartthings:
  token: "test-token"

bridge:
  state_directory: "` + tempDir + `"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	if got := performHealthCheck(configPath); got != 0 {
		t.Errorf("performHealthCheck() = %d, want 0", got)
	}
}
