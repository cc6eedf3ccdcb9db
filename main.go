package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Readm/consensus_trace/backoff"
	"github.com/Readm/consensus_trace/fetch"
	"github.com/Readm/consensus_trace/hooks"
	"github.com/Readm/consensus_trace/plugins/audit"
	"github.com/Readm/consensus_trace/plugins/visualization"
	"github.com/Readm/consensus_trace/visual"
)

type cliFlags struct {
	config     string
	input      string
	simulation string
	api        string
	listen     string
	mode       string
	headless   bool
	benchmark  int
	png        string
	logLevel   string
}

func main() {
	var f cliFlags
	flag.StringVar(&f.config, "config", "", "YAML configuration file")
	flag.StringVar(&f.input, "input", "", "Read events from a JSON file instead of the API")
	flag.StringVar(&f.simulation, "simulation", "", "Simulation ID to load")
	flag.StringVar(&f.api, "api", "", "Events API base URL")
	flag.StringVar(&f.listen, "listen", "", "Listen address of the web front end")
	flag.StringVar(&f.mode, "mode", "", "Visualizer: web, desktop, png or none")
	flag.BoolVar(&f.headless, "headless", false, "Load once, print a summary and exit")
	flag.IntVar(&f.benchmark, "benchmark", 0, "Run the pipeline N times on -input and report stage timings")
	flag.StringVar(&f.png, "png", "", "Write the first loaded frame to this PNG file")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *Config, f cliFlags) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Input, f.input)
	set(&cfg.API.SimulationID, f.simulation)
	set(&cfg.API.BaseURL, f.api)
	set(&cfg.Server.ListenAddr, f.listen)
	set(&cfg.Visual.Mode, f.mode)
	set(&cfg.Visual.Output, f.png)
	set(&cfg.Log.Level, f.logLevel)
	if f.headless {
		cfg.Visual.Headless = true
	}
}

func run(f cliFlags) error {
	cfg, err := LoadConfig(f.config)
	if err != nil {
		return err
	}
	applyFlags(cfg, f)
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := ConfigureLogging(cfg.Log)
	if err != nil {
		return err
	}

	if f.benchmark > 0 {
		if cfg.Input == "" {
			return errors.New("-benchmark requires -input")
		}
		res, err := RunBenchmark(cfg.Input, f.benchmark, cfg)
		if err != nil {
			return err
		}
		PrintBenchmark(os.Stdout, res)
		return nil
	}

	metrics := NewMetrics()
	broker := hooks.NewPluginBroker()
	registry := hooks.NewRegistry(broker)
	if err := audit.Register(registry, audit.Defaults(logger.Zerolog())); err != nil {
		return err
	}

	var (
		vis    visual.Visualizer = visual.NewNullVisualizer()
		server *WebServer
	)
	err = visualization.Register(registry, visualization.Options{
		Factories: map[string]visualization.Factory{
			VisualModeWeb: func() (visual.Visualizer, error) {
				server = NewWebServer(cfg.Server.ListenAddr, metrics)
				server.SetStaticDir(cfg.Server.StaticDir)
				server.SetPlugins(broker)
				return NewWebVisualizer(server), nil
			},
			VisualModeDesktop: func() (visual.Visualizer, error) {
				return NewFyneVisualizer(), nil
			},
			VisualModePNG: func() (visual.Visualizer, error) {
				return NewPNGVisualizer(cfg.Visual.Output), nil
			},
			VisualModeNone: func() (visual.Visualizer, error) {
				return visual.NewNullVisualizer(), nil
			},
		},
		SetVisualizer: func(_ string, v visual.Visualizer) { vis = v },
	})
	if err != nil {
		return err
	}
	if err := registry.LoadGlobal(cfg.Plugins); err != nil {
		return err
	}
	if err := registry.ArmTrace(cfg.API.SimulationID, cfg.TracePlugins); err != nil {
		return err
	}
	if err := registry.LoadGlobal([]string{visualization.PluginName(cfg.Visual.Mode)}); err != nil {
		return err
	}
	vis.SetHeadless(cfg.Visual.Headless)

	var (
		source Source
		client *fetch.Client
	)
	if cfg.Input != "" {
		source = FileSource{Path: cfg.Input}
	} else {
		client = fetch.NewClient(cfg.API.BaseURL,
			fetch.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			fetch.WithRetry(backoff.Config{
				MinWait:     200 * time.Millisecond,
				MaxWait:     5 * time.Second,
				MaxAttempts: cfg.API.RetryAttempts,
			}),
			fetch.WithObserver(metrics.ObserveFetch),
		)
		source = fetch.NewLoader(client)
	}

	session := NewSession(source, SessionOptions{
		SimulationID:  cfg.API.SimulationID,
		PageLimit:     cfg.API.PageLimit,
		Segment:       cfg.API.Segment,
		Size:          cfg.Size(),
		Margins:       cfg.Visual.Margins,
		Steps:         cfg.Filters.Steps,
		Events:        cfg.Filters.Events,
		FrameInterval: cfg.Visual.FrameInterval,
		Headless:      cfg.Visual.Headless,
		Metrics:       metrics,
		Broker:        broker,
		Logger:        logger.With("session"),
	})
	session.AddPublisher(func(fr *Frame) { vis.PublishFrame(fr) })
	vis.Bind(session)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	desktop, _ := vis.(*FyneVisualizer)
	if desktop != nil && !cfg.Visual.Headless {
		desktop.Initialize(float32(cfg.Visual.Width), float32(cfg.Visual.Height))
		desktop.OnClose(cancel)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	if server != nil && !cfg.Visual.Headless {
		g.Go(func() error { return server.Start(gctx) })
	}
	if client != nil {
		poller := fetch.NewPoller(client, cfg.API.PollInterval)
		g.Go(func() error {
			_, err := poller.Run(gctx, cfg.API.SimulationID, func(sim *fetch.Simulation) {
				if err := session.SubmitStatus(gctx, sim); err != nil {
					logger.Debugf("status update dropped: %v", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if cfg.Visual.Headless || cfg.Visual.Mode == VisualModePNG {
		g.Go(func() error {
			defer cancel()
			return reportFirstLoad(gctx, session, vis, cfg.Visual.Output)
		})
	}

	if desktop != nil && !cfg.Visual.Headless {
		desktop.ShowAndRun()
		cancel()
	}
	return g.Wait()
}

// reportFirstLoad waits for the first load to finish, prints its summary
// and writes the frame as PNG when an output is configured.
func reportFirstLoad(ctx context.Context, session *Session, vis visual.Visualizer, output string) error {
	if err := session.Loads().Wait(ctx, 1); err != nil {
		return nil
	}
	frame, err := session.Snapshot(ctx)
	if err != nil {
		return nil
	}
	PrintSummary(os.Stdout, frame)
	if p, ok := vis.(*PNGVisualizer); ok {
		p.PublishFrame(frame)
		if err := p.Write(); err != nil {
			return err
		}
		GetLogger().Infof("frame written to %s", p.path)
	} else if output != "" {
		if err := WriteFramePNG(output, frame); err != nil {
			return err
		}
		GetLogger().Infof("frame written to %s", output)
	}
	if frame.Status == StatusError {
		return errors.New(frame.Error)
	}
	return nil
}
