package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	cfg, err := Load(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ProbeSlots != DefaultProbeSlots {
		t.Errorf("ProbeSlots = %d, want %d", cfg.ProbeSlots, DefaultProbeSlots)
	}
	if cfg.LiveInterval() != 10*time.Millisecond {
		t.Errorf("LiveInterval() = %v, want 10ms", cfg.LiveInterval())
	}
	if cfg.FileInterval() != 50*time.Millisecond {
		t.Errorf("FileInterval() = %v, want 50ms", cfg.FileInterval())
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.DefaultClassifier != "face" {
		t.Errorf("DefaultClassifier = %q, want face", cfg.DefaultClassifier)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvTray, "true")

	path := filepath.Join(dir, "config.json")
	content := `{"addr": ":7000", "live_interval_ms": 33, "log_level": "debug", "default_classifier": "eye"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr != ":9999" {
		t.Errorf("Addr = %q, want env override :9999", cfg.Addr)
	}
	if cfg.LiveIntervalMs != 33 {
		t.Errorf("LiveIntervalMs = %d, want 33", cfg.LiveIntervalMs)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Tray {
		t.Error("Tray should be enabled by env")
	}
	if cfg.DefaultClassifier != "eye" {
		t.Errorf("DefaultClassifier = %q, want eye", cfg.DefaultClassifier)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail on invalid JSON")
	}
	if cfg == nil {
		t.Fatal("Load() should still return defaults on error")
	}
}

func TestValidate_Clamps(t *testing.T) {
	cfg := &Config{
		ProbeSlots:     -1,
		CameraFPS:      500,
		LiveIntervalMs: 0,
		FileIntervalMs: -50,
		DisplayWidth:   0,
		DisplayHeight:  -1,
		LogLevel:       "verbose",
		DataDir:        t.TempDir(),
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.ProbeSlots != DefaultProbeSlots {
		t.Errorf("ProbeSlots = %d, want %d", cfg.ProbeSlots, DefaultProbeSlots)
	}
	if cfg.CameraFPS != 120 {
		t.Errorf("CameraFPS = %d, want 120", cfg.CameraFPS)
	}
	if cfg.LiveIntervalMs != DefaultLiveIntervalMs {
		t.Errorf("LiveIntervalMs = %d, want %d", cfg.LiveIntervalMs, DefaultLiveIntervalMs)
	}
	if cfg.FileIntervalMs != DefaultFileIntervalMs {
		t.Errorf("FileIntervalMs = %d, want %d", cfg.FileIntervalMs, DefaultFileIntervalMs)
	}
	if cfg.DisplayWidth != DefaultDisplayWidth || cfg.DisplayHeight != DefaultDisplayHeight {
		t.Errorf("display = %dx%d, want defaults", cfg.DisplayWidth, cfg.DisplayHeight)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
}

func TestValidate_RejectsUnknownClassifier(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.DefaultClassifier = "cat"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an unknown default classifier")
	}
}

func TestDefaultConfig_BuiltInTheme(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	if cfg.Stylesheet != "" {
		t.Errorf("Stylesheet = %q, want empty for the built-in theme", cfg.Stylesheet)
	}
	if cfg.CameraFPS != DefaultCameraFPS {
		t.Errorf("CameraFPS = %d, want %d", cfg.CameraFPS, DefaultCameraFPS)
	}
}
