// Package config loads haarlens runtime configuration from a JSON file, a .env file and the environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Defaults observed in the original desktop application.
const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultProbeSlots     = 3
	DefaultCameraFPS      = 30
	DefaultLiveIntervalMs = 10
	DefaultFileIntervalMs = 50
	DefaultDisplayWidth   = 640
	DefaultDisplayHeight  = 480
	DefaultCascadeDir     = "/usr/share/opencv4/haarcascades"
	DefaultClassifier     = "face"
)

// Environment variables that override file values.
const (
	EnvConfig     = "HAARLENS_CONFIG"
	EnvAddr       = "HAARLENS_ADDR"
	EnvCascadeDir = "HAARLENS_CASCADE_DIR"
	EnvDataDir    = "HAARLENS_DATA_DIR"
	EnvLogLevel   = "HAARLENS_LOG_LEVEL"
	EnvTray       = "HAARLENS_TRAY"
)

// Config holds runtime configuration for capture, detection and the viewer.
type Config struct {
	Addr       string `json:"addr" validate:"required"`
	StaticDir  string `json:"static_dir"`
	DataDir    string `json:"data_dir" validate:"required"`
	CascadeDir string `json:"cascade_dir" validate:"required"`

	// Number of device slots probed when enumerating cameras.
	ProbeSlots int `json:"probe_slots" validate:"min=1,max=16"`
	// Frame rate requested from the camera when live capture starts.
	CameraFPS int `json:"camera_fps" validate:"min=1,max=120"`

	// Tick cadence per mode. Tunable, not load-bearing.
	LiveIntervalMs int `json:"live_interval_ms" validate:"min=1"`
	FileIntervalMs int `json:"file_interval_ms" validate:"min=1"`

	// Display region the annotated frame is fitted into.
	DisplayWidth  int `json:"display_width" validate:"min=1"`
	DisplayHeight int `json:"display_height" validate:"min=1"`

	Stylesheet        string `json:"stylesheet"`
	LogLevel          string `json:"log_level" validate:"oneof=debug info warn error"`
	Tray              bool   `json:"tray"`
	History           bool   `json:"history"`
	DefaultClassifier string `json:"default_classifier" validate:"oneof=face eye smile upperbody fullbody profileface"`
}

var validate = validator.New()

// DefaultConfig returns a Config populated with standard defaults rooted at dataDir.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		Addr:              DefaultAddr,
		DataDir:           dataDir,
		CascadeDir:        DefaultCascadeDir,
		ProbeSlots:        DefaultProbeSlots,
		CameraFPS:         DefaultCameraFPS,
		LiveIntervalMs:    DefaultLiveIntervalMs,
		FileIntervalMs:    DefaultFileIntervalMs,
		DisplayWidth:      DefaultDisplayWidth,
		DisplayHeight:     DefaultDisplayHeight,
		Stylesheet:        "",
		LogLevel:          "info",
		Tray:              false,
		History:           true,
		DefaultClassifier: DefaultClassifier,
	}
}

// DefaultDataDir returns ~/.haarlens, or .haarlens when the home directory is unknown.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".haarlens"
	}
	return filepath.Join(homeDir, ".haarlens")
}

// Validate clamps values into safe ranges and then checks the struct tags.
func (c *Config) Validate() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.CascadeDir == "" {
		c.CascadeDir = DefaultCascadeDir
	}
	if c.ProbeSlots <= 0 {
		c.ProbeSlots = DefaultProbeSlots
	}
	if c.ProbeSlots > 16 {
		c.ProbeSlots = 16
	}
	if c.CameraFPS <= 0 {
		c.CameraFPS = DefaultCameraFPS
	}
	if c.CameraFPS > 120 {
		c.CameraFPS = 120
	}
	if c.LiveIntervalMs <= 0 {
		c.LiveIntervalMs = DefaultLiveIntervalMs
	}
	if c.FileIntervalMs <= 0 {
		c.FileIntervalMs = DefaultFileIntervalMs
	}
	if c.DisplayWidth <= 0 {
		c.DisplayWidth = DefaultDisplayWidth
	}
	if c.DisplayHeight <= 0 {
		c.DisplayHeight = DefaultDisplayHeight
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	if c.DefaultClassifier == "" {
		c.DefaultClassifier = DefaultClassifier
	}

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// LiveInterval returns the tick period used while a camera is running.
func (c *Config) LiveInterval() time.Duration {
	return time.Duration(c.LiveIntervalMs) * time.Millisecond
}

// FileInterval returns the tick period used while a static image is shown.
func (c *Config) FileInterval() time.Duration {
	return time.Duration(c.FileIntervalMs) * time.Millisecond
}

// Load reads the JSON file at path on top of the defaults, applies .env and
// environment overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	cfg := DefaultConfig(dataDir)

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := json.NewDecoder(f).Decode(cfg); err != nil {
				return cfg, errors.Wrapf(err, "decode config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return cfg, errors.Wrapf(err, "open config %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables when set.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvCascadeDir); v != "" {
		c.CascadeDir = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvTray); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Tray = b
		}
	}
}

// Path returns the config file location: $HAARLENS_CONFIG or <DataDir>/config.json.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	return filepath.Join(dataDir, "config.json")
}
