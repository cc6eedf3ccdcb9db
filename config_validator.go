package main

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/Readm/consensus_trace/eventloop"
	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/geometry"
)

// ValidateConfig applies structural checks to Config and populates defaults where required.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Input == "" {
		if cfg.API.BaseURL == "" {
			cfg.API.BaseURL = DefaultAPIBaseURL
		}
		u, err := url.Parse(cfg.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.base_url must be an absolute URL, got %q", cfg.API.BaseURL)
		}
		if cfg.API.SimulationID == "" {
			return errors.New("api.simulation_id is required unless input is set")
		}
	}
	if cfg.API.PageLimit < 0 {
		return fmt.Errorf("api.page_limit must be non-negative, got %d", cfg.API.PageLimit)
	}
	if cfg.API.Segment < 0 {
		return fmt.Errorf("api.segment must be non-negative, got %d", cfg.API.Segment)
	}
	if cfg.Visual.Width < 0 || cfg.Visual.Height < 0 {
		return fmt.Errorf("visual size must be non-negative, got %vx%v", cfg.Visual.Width, cfg.Visual.Height)
	}
	switch cfg.Visual.Mode {
	case "":
		cfg.Visual.Mode = VisualModeWeb
	case VisualModeWeb, VisualModeDesktop, VisualModePNG, VisualModeNone:
	default:
		return fmt.Errorf("visual.mode must be one of web, desktop, png, none; got %q", cfg.Visual.Mode)
	}
	if cfg.Visual.Mode == VisualModePNG && cfg.Visual.Output == "" {
		return errors.New("visual.output is required in png mode")
	}
	if _, err := ParseLogLevel(cfg.Log.Level); err != nil {
		return err
	}

	if cfg.API.PageLimit == 0 {
		cfg.API.PageLimit = fetch.DefaultPageLimit
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = DefaultConfig().API.Timeout
	}
	if cfg.API.RetryAttempts <= 0 {
		cfg.API.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.API.PollInterval <= 0 {
		cfg.API.PollInterval = fetch.DefaultPollInterval
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Visual.Width == 0 {
		cfg.Visual.Width = DefaultCanvasWidth
	}
	if cfg.Visual.Height == 0 {
		cfg.Visual.Height = DefaultCanvasHeight
	}
	if cfg.Visual.PixelRatio <= 0 {
		cfg.Visual.PixelRatio = 1
	}
	if cfg.Visual.Margins == (geometry.Margins{}) {
		cfg.Visual.Margins = geometry.DefaultMargins()
	}
	if cfg.Visual.FrameInterval <= 0 {
		cfg.Visual.FrameInterval = eventloop.DefaultFrameInterval
	}
	if cfg.Filters.Steps == nil {
		cfg.Filters.Steps = DefaultConfig().Filters.Steps
	}
	if cfg.Filters.Events == nil {
		cfg.Filters.Events = DefaultConfig().Filters.Events
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	return nil
}
