// Package audit provides instrumentation plugins: a selection log and a
// data-quality report of events the pair matcher could not use.
package audit

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/hooks"
)

// Factory installs audit hooks into the broker.
type Factory func(broker *hooks.PluginBroker) error

// TraceFactory builds the data-loaded handler of one trace scope.
type TraceFactory = hooks.TracePluginFactory

// Options configure audit plugin registration. Factories are loaded once per
// process, Trace factories once per simulation segment.
type Options struct {
	Factories map[string]Factory
	Trace     map[string]TraceFactory
}

// Register registers audit plugins for each provided factory.
func Register(reg *hooks.Registry, opts Options) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	for _, name := range sortedKeys(opts.Factories) {
		factory := opts.Factories[name]
		if factory == nil {
			continue
		}
		desc := descriptor(name)
		if err := reg.RegisterGlobal(desc.Name, desc, func(b *hooks.PluginBroker) error {
			if b == nil {
				return fmt.Errorf("plugin broker is nil")
			}
			return factory(b)
		}); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(opts.Trace) {
		factory := opts.Trace[name]
		if factory == nil {
			continue
		}
		desc := descriptor(name)
		if err := reg.RegisterTrace(desc.Name, desc, factory); err != nil {
			return err
		}
	}
	return nil
}

func descriptor(name string) hooks.PluginDescriptor {
	return hooks.PluginDescriptor{
		Name:        PluginName(name),
		Category:    hooks.PluginCategoryInstrumentation,
		Description: fmt.Sprintf("%s audit plugin", name),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PluginName returns the registry name of the audit plugin called name.
func PluginName(name string) string {
	return "audit/" + name
}

// Defaults returns the built-in audit plugins writing to logger.
func Defaults(logger zerolog.Logger) Options {
	return Options{
		Factories: map[string]Factory{"selection": SelectionLog(logger)},
		Trace:     map[string]TraceFactory{"unmatched": UnmatchedReport(logger)},
	}
}

// SelectionLog logs every committed brush range and every click.
func SelectionLog(logger zerolog.Logger) Factory {
	return func(b *hooks.PluginBroker) error {
		b.RegisterBrushSelect(func(ctx *hooks.BrushSelectContext) error {
			logger.Info().Int64("start", ctx.Start).Int64("end", ctx.End).
				Int64("span_ms", ctx.End-ctx.Start).Msg("brush selection")
			return nil
		})
		b.RegisterEventSelect(func(ctx *hooks.EventSelectContext) error {
			ev := logger.Info()
			if ctx.Shape != nil {
				ev = ev.Str("shape", ctx.Shape.CanvasType()).Str("shape_type", ctx.Shape.ShapeType())
			}
			if ctx.Event != nil {
				ev = ev.Str("event_type", ctx.Event.Type).Str("node", ctx.Event.NodeID).
					Str("timestamp", core.FormatTimestamp(ctx.Event.Timestamp))
			}
			ev.Bool("resolved", ctx.Event != nil).Msg("event selection")
			return nil
		})
		return nil
	}
}

// UnmatchedReport warns when a load contained sends without a receive,
// P2P records lacking key fields, or records the normalizer dropped. Each
// scope warns once per distinct set of counts, so status-driven reloads of
// the same segment stay quiet while navigating to another segment reports
// again.
func UnmatchedReport(logger zerolog.Logger) TraceFactory {
	return func(scope hooks.TraceScope) (hooks.DataLoadedHook, error) {
		logger := logger.With().Str("simulation", scope.SimulationID).Int("segment", scope.Segment).Logger()
		var last *hooks.DataLoadedContext
		return func(ctx *hooks.DataLoadedContext) error {
			if ctx.UnmatchedSends == 0 && ctx.Unkeyed == 0 && ctx.Skipped == 0 {
				logger.Debug().Int("arrows", ctx.Arrows).Msg("all sends matched")
				last = nil
				return nil
			}
			if last != nil && last.UnmatchedSends == ctx.UnmatchedSends &&
				last.Unkeyed == ctx.Unkeyed && last.Skipped == ctx.Skipped {
				return nil
			}
			report := *ctx
			last = &report
			logger.Warn().
				Int("events", ctx.Events).
				Int("arrows", ctx.Arrows).
				Int("unmatched_sends", ctx.UnmatchedSends).
				Int("unkeyed", ctx.Unkeyed).
				Int("skipped", ctx.Skipped).
				Msg("trace has unusable message records")
			return nil
		}, nil
	}
}
