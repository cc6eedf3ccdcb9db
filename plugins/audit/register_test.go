package audit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Readm/consensus_trace/core"
	"github.com/Readm/consensus_trace/hooks"
)

func TestRegisterAndLoad(t *testing.T) {
	broker := hooks.NewPluginBroker()
	reg := hooks.NewRegistry(broker)

	called := false
	factories := map[string]Factory{
		"stub": func(*hooks.PluginBroker) error {
			called = true
			return nil
		},
	}
	if err := Register(reg, Options{Factories: factories}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if err := reg.LoadGlobal([]string{"audit/stub"}); err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if !called {
		t.Fatalf("expected factory to be called")
	}
	if got := broker.ListPlugins(hooks.PluginCategoryInstrumentation); len(got) != 1 {
		t.Fatalf("expected one instrumentation plugin, got %+v", got)
	}
}

func TestUnmatchedReportPerSegment(t *testing.T) {
	var buf bytes.Buffer
	broker := hooks.NewPluginBroker()
	reg := hooks.NewRegistry(broker)
	if err := Register(reg, Defaults(zerolog.New(&buf))); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.LoadGlobal([]string{"audit/unmatched"}); err == nil {
		t.Fatalf("unmatched report is trace scoped, global load must fail")
	}
	if err := reg.ArmTrace("s1", []string{"audit/unmatched"}); err != nil {
		t.Fatalf("arm: %v", err)
	}
	emit := func(ctx hooks.DataLoadedContext) {
		t.Helper()
		if err := broker.EmitDataLoaded(&ctx); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	warnings := func() int { return strings.Count(buf.String(), `"level":"warn"`) }

	emit(hooks.DataLoadedContext{SimulationID: "other", Segment: 1, UnmatchedSends: 5})
	emit(hooks.DataLoadedContext{SimulationID: "s1", Segment: 1, Arrows: 3})
	if warnings() != 0 {
		t.Fatalf("clean load must not warn: %s", buf.String())
	}

	emit(hooks.DataLoadedContext{SimulationID: "s1", Segment: 1, UnmatchedSends: 2})
	emit(hooks.DataLoadedContext{SimulationID: "s1", Segment: 1, UnmatchedSends: 2})
	if warnings() != 1 {
		t.Fatalf("a reload with the same counts must not warn again: %s", buf.String())
	}
	out := buf.String()
	if !strings.Contains(out, `"unmatched_sends":2`) || !strings.Contains(out, `"simulation":"s1"`) || !strings.Contains(out, `"segment":1`) {
		t.Fatalf("expected unmatched warning, got %s", out)
	}
	if strings.Contains(out, `"unmatched_sends":5`) {
		t.Fatalf("load of another simulation was reported: %s", out)
	}

	emit(hooks.DataLoadedContext{SimulationID: "s1", Segment: 2, UnmatchedSends: 2})
	if warnings() != 2 || !strings.Contains(buf.String(), `"segment":2`) {
		t.Fatalf("navigating to segment 2 should report again: %s", buf.String())
	}
	if scope, loads, ok := reg.Scope("s1"); !ok || scope.Segment != 2 || loads != 1 {
		t.Fatalf("scope %+v loads %d ok %v", scope, loads, ok)
	}
}

func TestSelectionLog(t *testing.T) {
	var buf bytes.Buffer
	broker := hooks.NewPluginBroker()
	if err := SelectionLog(zerolog.New(&buf))(broker); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := broker.EmitBrushSelect(&hooks.BrushSelectContext{Start: 100, End: 250}); err != nil {
		t.Fatalf("emit brush: %v", err)
	}
	p := &core.StateChangePoint{Type: "proposeStep", Node: "a"}
	if err := broker.EmitEventSelect(&hooks.EventSelectContext{Shape: p}); err != nil {
		t.Fatalf("emit select: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"span_ms":150`, `"shape":"step"`, `"shape_type":"proposeStep"`, `"resolved":false`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}
