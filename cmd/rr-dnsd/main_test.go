package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawknest/rrdns/internal/dns/config"
)

// clearAppEnv removes every DNS_* variable these tests set.
func clearAppEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"DNS_ENV", "DNS_LOG_LEVEL",
		"DNS_RESOLVER_ZONES", "DNS_RESOLVER_UPSTREAM", "DNS_RESOLVER_PORT",
		"DNS_RESOLVER_CACHE_SIZE", "DNS_BLOCKLIST_DIR", "DNS_BLOCKLIST_DB",
	}
	for _, v := range vars {
		_ = os.Unsetenv(v)
	}
}

// TestApplication_Integration tests the full application lifecycle
func TestApplication_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	clearAppEnv(t)

	// Create temporary zone directory with test zone
	tempDir := t.TempDir()
	zoneFile := filepath.Join(tempDir, "test.yaml")
	zoneContent := `zone_root: test.local
www:
  A: "127.0.0.1"
`
	require.NoError(t, os.WriteFile(zoneFile, []byte(zoneContent), 0644))

	// Find available port
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	t.Setenv("DNS_RESOLVER_PORT", fmt.Sprintf("%d", port))
	t.Setenv("DNS_RESOLVER_ZONES", tempDir)
	t.Setenv("DNS_LOG_LEVEL", "debug")
	t.Setenv("DNS_RESOLVER_CACHE_SIZE", "100")
	t.Setenv("DNS_BLOCKLIST_DIR", t.TempDir())
	t.Setenv("DNS_BLOCKLIST_DB", filepath.Join(t.TempDir(), "blocklist.db"))

	// Build application
	cfg, err := config.Load()
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)

	// Test application startup and shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start application in goroutine
	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Run(ctx)
	}()

	// Wait for server to start (or timeout)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case <-timeout:
			t.Fatal("Server failed to start within timeout")
		case err := <-appErr:
			if err != nil {
				t.Fatalf("Server failed to start: %v", err)
			}
		default:
			// Check if server is listening
			conn, err := net.Dial("udp", fmt.Sprintf("localhost:%d", port))
			if err == nil {
				require.NoError(t, conn.Close())
				goto serverStarted
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

serverStarted:
	// Test graceful shutdown
	cancel()

	select {
	case err := <-appErr:
		assert.NoError(t, err, "Application should shutdown gracefully")
	case <-time.After(5 * time.Second):
		t.Fatal("Application failed to shutdown within timeout")
	}
}

// TestBuildApplication_ConfigurationVariations tests different configurations
func TestBuildApplication_ConfigurationVariations(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func()
		wantErr       bool
		errorContains string
	}{
		{
			name: "minimal valid config",
			setupEnv: func() {
				t.Setenv("DNS_RESOLVER_ZONES", t.TempDir())
			},
			wantErr: false,
		},
		{
			name: "invalid zone directory",
			setupEnv: func() {
				t.Setenv("DNS_RESOLVER_ZONES", "/nonexistent/path")
			},
			wantErr:       true,
			errorContains: "failed to load zone directory",
		},
		{
			name: "cache disabled",
			setupEnv: func() {
				t.Setenv("DNS_RESOLVER_ZONES", t.TempDir())
				t.Setenv("DNS_RESOLVER_CACHE_SIZE", "0")
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAppEnv(t)
			t.Setenv("DNS_BLOCKLIST_DIR", t.TempDir())
			t.Setenv("DNS_BLOCKLIST_DB", filepath.Join(t.TempDir(), "blocklist.db"))

			tt.setupEnv()

			cfg, err := config.Load()
			if err != nil {
				if tt.wantErr {
					return // Configuration error is expected
				}
				t.Fatalf("Config load failed: %v", err)
			}

			app, err := buildApplication(cfg)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, app)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, app)
			}
		})
	}
}

// TestApplication_ComponentIntegration tests that all components work together
func TestApplication_ComponentIntegration(t *testing.T) {
	clearAppEnv(t)

	// Create test zone
	tempDir := t.TempDir()
	zoneFile := filepath.Join(tempDir, "integration.yaml")
	zoneContent := `zone_root: integration.test
api:
  A: "10.0.0.1"
web:
  A:
    - "10.0.0.2"
    - "10.0.0.3"
`
	require.NoError(t, os.WriteFile(zoneFile, []byte(zoneContent), 0644))

	// Set test environment
	t.Setenv("DNS_RESOLVER_ZONES", tempDir)
	t.Setenv("DNS_RESOLVER_CACHE_SIZE", "50")
	t.Setenv("DNS_BLOCKLIST_DIR", t.TempDir())
	t.Setenv("DNS_BLOCKLIST_DB", filepath.Join(t.TempDir(), "blocklist.db"))

	cfg, err := config.Load()
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)

	// Verify components are wired correctly
	assert.NotNil(t, app.config)
	assert.Len(t, app.transports, 2)
	for _, tr := range app.transports {
		assert.NotNil(t, tr)
	}
	assert.NotNil(t, app.resolver)

	// Verify zone loading worked
	assert.Equal(t, tempDir, app.config.Resolver.ZoneDirectory)
	assert.Equal(t, 50, app.config.Resolver.Cache.Size)
}
