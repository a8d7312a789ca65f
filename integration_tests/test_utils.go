//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/treebark/internal/config"
	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/server"
)

// TestServerConfig contains configuration for test server setup
type TestServerConfig struct {
	ReadinessTimeout    time.Duration
	HealthCheckInterval time.Duration
}

// DefaultTestConfig returns a default test configuration
func DefaultTestConfig() *TestServerConfig {
	return &TestServerConfig{
		ReadinessTimeout:    10 * time.Second,
		HealthCheckInterval: 50 * time.Millisecond,
	}
}

// HealthResponse represents the structure of health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Root    string `json:"root"`
	Clients int    `json:"clients"`
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

// startPreviewServer runs a real preview server over root and waits until it
// reports healthy. The server is shut down when the test ends.
func startPreviewServer(t *testing.T, root string) (*server.PreviewServer, string) {
	t.Helper()

	cfg := &config.Config{
		Render:  config.RenderConfig{MaxDepth: config.DefaultMaxDepth, Contain: true},
		Server:  config.ServerConfig{Host: "localhost", Port: freePort(t), Root: root},
		Watch:   config.WatchConfig{Debounce: 50 * time.Millisecond},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelError, Output: io.Discard})

	srv, err := server.New(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("preview server did not stop")
		}
	})

	baseURL := "http://" + cfg.Server.Addr()
	require.NoError(t, WaitForServerReadiness(ctx, baseURL, nil))

	return srv, baseURL
}

// WaitForServerReadiness polls /health until the server reports healthy.
func WaitForServerReadiness(ctx context.Context, baseURL string, config *TestServerConfig) error {
	if config == nil {
		config = DefaultTestConfig()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, config.ReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(config.HealthCheckInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("server readiness timeout after %v: %w", config.ReadinessTimeout, lastErr)
		case <-ticker.C:
			healthy, err := checkServerHealth(baseURL)
			if healthy {
				return nil
			}
			lastErr = err
		}
	}
}

// checkServerHealth performs a health check
func checkServerHealth(baseURL string) (bool, error) {
	client := &http.Client{Timeout: time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return false, fmt.Errorf("server status is %s", health.Status)
	}

	return true, nil
}
