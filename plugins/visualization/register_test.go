package visualization

import (
	"errors"
	"testing"

	"github.com/Readm/consensus_trace/hooks"
	"github.com/Readm/consensus_trace/visual"
)

func TestRegisterAndLoad(t *testing.T) {
	reg := hooks.NewRegistry(nil)
	got := map[string]visual.Visualizer{}
	err := Register(reg, Options{
		Factories: map[string]Factory{
			"web":  func() (visual.Visualizer, error) { return visual.NewNullVisualizer(), nil },
			"none": nil,
		},
		SetVisualizer: func(mode string, v visual.Visualizer) { got[mode] = v },
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if err := reg.LoadGlobal([]string{PluginName("web")}); err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if got["web"] == nil {
		t.Fatalf("expected web visualizer to be installed")
	}
	if _, ok := reg.Descriptor(PluginName("none")); ok {
		t.Fatalf("nil factory must be skipped")
	}
	plugins := reg.Broker().ListPlugins(hooks.PluginCategoryVisualization)
	if len(plugins) != 1 || plugins[0].Name != "visualization/web" {
		t.Fatalf("unexpected catalog %+v", plugins)
	}
}

func TestFactoryErrorPropagates(t *testing.T) {
	reg := hooks.NewRegistry(nil)
	boom := errors.New("no display")
	err := Register(reg, Options{
		Factories:     map[string]Factory{"desktop": func() (visual.Visualizer, error) { return nil, boom }},
		SetVisualizer: func(string, visual.Visualizer) {},
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if err := reg.LoadGlobal([]string{"visualization/desktop"}); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestRegisterRequiresCallback(t *testing.T) {
	if err := Register(hooks.NewRegistry(nil), Options{}); err == nil {
		t.Fatalf("expected error without SetVisualizer")
	}
}
