// Package visualization registers frame sinks (web, desktop, png) as plugins
// so the binary can activate them by name from configuration.
package visualization

import (
	"fmt"
	"sort"

	"github.com/Readm/consensus_trace/hooks"
	"github.com/Readm/consensus_trace/visual"
)

// Factory creates a visualizer instance.
type Factory func() (visual.Visualizer, error)

// Options configure visualization plugin registration.
type Options struct {
	Factories     map[string]Factory
	SetVisualizer func(mode string, v visual.Visualizer)
}

// Register registers visualization plugins for each provided factory.
func Register(reg *hooks.Registry, opts Options) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	if opts.SetVisualizer == nil {
		return fmt.Errorf("SetVisualizer callback is required")
	}
	modes := make([]string, 0, len(opts.Factories))
	for mode := range opts.Factories {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		factory := opts.Factories[mode]
		if factory == nil {
			continue
		}
		desc := hooks.PluginDescriptor{
			Name:        PluginName(mode),
			Category:    hooks.PluginCategoryVisualization,
			Description: fmt.Sprintf("%s trace visualizer", mode),
		}
		mode := mode
		if err := reg.RegisterGlobal(desc.Name, desc, func(*hooks.PluginBroker) error {
			v, err := factory()
			if err != nil {
				return fmt.Errorf("create %s visualizer: %w", mode, err)
			}
			opts.SetVisualizer(mode, v)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// PluginName returns the registry name of the visualizer for mode.
func PluginName(mode string) string {
	return "visualization/" + mode
}
