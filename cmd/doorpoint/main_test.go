package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("DOORPOINT_CONFIG")
	defer os.Setenv("DOORPOINT_CONFIG", originalEnv)

	os.Setenv("DOORPOINT_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when the database
// path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
device:
  name: bench-terminal
  config_path: "` + filepath.Join(tmpDir, "config.json") + `"
  upgrade_dir: "` + filepath.Join(tmpDir, "upgrade") + `"

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

telemetry:
  enabled: false

logging:
  level: info
  format: json
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalEnv := os.Getenv("DOORPOINT_CONFIG")
	defer os.Setenv("DOORPOINT_CONFIG", originalEnv)
	os.Setenv("DOORPOINT_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("DOORPOINT_CONFIG")
	defer os.Setenv("DOORPOINT_CONFIG", originalEnv)

	os.Setenv("DOORPOINT_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %s, want %s", got, defaultConfigPath)
	}

	os.Setenv("DOORPOINT_CONFIG", "/etc/doorpoint/config.yaml")
	if got := getConfigPath(); got != "/etc/doorpoint/config.yaml" {
		t.Errorf("getConfigPath() = %s", got)
	}
}
