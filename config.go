package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/geometry"
	"github.com/Readm/consensus_trace/render"
)

// Visual modes.
const (
	VisualModeWeb     = "web"
	VisualModeDesktop = "desktop"
	VisualModePNG     = "png"
	VisualModeNone    = "none"
)

const (
	DefaultAPIBaseURL    = "http://localhost:8080/v1"
	DefaultListenAddr    = "127.0.0.1:8090"
	DefaultCanvasWidth   = 1200
	DefaultCanvasHeight  = 600
	DefaultRetryAttempts = 3
	DefaultInboxSize     = 256
)

// APIConfig locates the trace backend and the simulation to show.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	SimulationID  string        `yaml:"simulation_id"`
	PageLimit     int           `yaml:"page_limit"`
	Segment       int           `yaml:"segment"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	StaticDir  string `yaml:"static_dir"`
}

// VisualConfig configures the canvas and the frame sink.
type VisualConfig struct {
	Mode          string           `yaml:"mode"`
	Headless      bool             `yaml:"headless"`
	Width         float64          `yaml:"width"`
	Height        float64          `yaml:"height"`
	PixelRatio    float64          `yaml:"pixel_ratio"`
	Margins       geometry.Margins `yaml:"margins"`
	FrameInterval time.Duration    `yaml:"frame_interval"`
	Output        string           `yaml:"output"`
}

// FilterConfig is the initial filter selection.
type FilterConfig struct {
	Steps  []string `yaml:"steps"`
	Events []string `yaml:"events"`
}

// LogConfig selects level and output format ("console" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full viewer configuration.
type Config struct {
	API     APIConfig    `yaml:"api"`
	Input   string       `yaml:"input"`
	Server  ServerConfig `yaml:"server"`
	Visual  VisualConfig `yaml:"visual"`
	Filters FilterConfig `yaml:"filters"`
	Log     LogConfig    `yaml:"log"`

	// Plugins are loaded once per process, TracePlugins for the
	// configured simulation only.
	Plugins      []string `yaml:"plugins"`
	TracePlugins []string `yaml:"trace_plugins"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       DefaultAPIBaseURL,
			PageLimit:     fetch.DefaultPageLimit,
			Timeout:       30 * time.Second,
			RetryAttempts: DefaultRetryAttempts,
			PollInterval:  fetch.DefaultPollInterval,
		},
		Server: ServerConfig{ListenAddr: DefaultListenAddr},
		Visual: VisualConfig{
			Mode:       VisualModeWeb,
			Width:      DefaultCanvasWidth,
			Height:     DefaultCanvasHeight,
			PixelRatio: 1,
			Margins:    geometry.DefaultMargins(),
		},
		Filters: FilterConfig{
			Steps:  append([]string(nil), render.DefaultSelectedSteps...),
			Events: render.AllMessageLabels(),
		},
		Log:          LogConfig{Level: "info", Format: "console"},
		Plugins:      []string{"audit/selection"},
		TracePlugins: []string{"audit/unmatched"},
	}
}

// LoadConfig reads the optional YAML file at path over the defaults and
// then applies TRACE_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("TRACE_API_BASE_URL", &cfg.API.BaseURL)
	str("TRACE_SIMULATION_ID", &cfg.API.SimulationID)
	str("TRACE_LISTEN_ADDR", &cfg.Server.ListenAddr)
	str("TRACE_VISUAL_MODE", &cfg.Visual.Mode)
	str("TRACE_LOG_LEVEL", &cfg.Log.Level)
	str("TRACE_INPUT", &cfg.Input)

	if v, ok := lookup("TRACE_PAGE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRACE_PAGE_LIMIT: %w", err)
		}
		cfg.API.PageLimit = n
	}
	if v, ok := lookup("TRACE_POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRACE_POLL_INTERVAL: %w", err)
		}
		cfg.API.PollInterval = d
	}
	return nil
}

// Size returns the configured canvas size.
func (c *Config) Size() geometry.Size {
	return geometry.Size{Width: c.Visual.Width, Height: c.Visual.Height, PixelRatio: c.Visual.PixelRatio}
}
