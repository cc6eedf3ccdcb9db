package hooks

import (
	"sort"
	"sync"
	"time"

	"github.com/Readm/consensus_trace/core"
)

// PluginCategory represents the high-level role of a plugin.
type PluginCategory string

const (
	// PluginCategoryVisualization covers frame sinks (web, desktop, image export).
	PluginCategoryVisualization PluginCategory = "visualization"
	// PluginCategorySelection covers consumers of brush and click selections.
	PluginCategorySelection PluginCategory = "selection"
	// PluginCategoryInstrumentation covers metrics, audit logs, and diagnostics.
	PluginCategoryInstrumentation PluginCategory = "instrumentation"
)

// PluginDescriptor describes a plugin registered with the broker.
type PluginDescriptor struct {
	Name        string
	Category    PluginCategory
	Description string
}

// HookBundle groups multiple hook handlers that belong to one plugin.
type HookBundle struct {
	BrushSelect    []BrushSelectHook
	EventSelect    []EventSelectHook
	Highlight      []HighlightHook
	ViewportChange []ViewportChangeHook
	DataLoaded     []DataLoadedHook
	FramePublished []FrameHook
}

// BrushSelectContext carries a committed brush range in epoch milliseconds.
type BrushSelectContext struct {
	Start int64
	End   int64
}

// EventSelectContext carries the result of click resolution. Event is nil
// when the clicked shape could not be traced back to a loaded event.
type EventSelectContext struct {
	Shape core.Shape
	Event *core.CanvasEvent
}

// HighlightContext reports a hover target change; Shape is nil when cleared.
type HighlightContext struct {
	Shape core.Shape
}

// ViewportChangeContext reports a viewport transition and what caused it.
type ViewportChangeContext struct {
	Cause    string
	Previous core.Viewport
	Current  core.Viewport
}

// DataLoadedContext summarizes a completed load and reconstruction pass.
type DataLoadedContext struct {
	SimulationID   string
	Segment        int
	Events         int
	Skipped        int
	Arrows         int
	Points         int
	UnmatchedSends int
	Unkeyed        int
}

// FrameContext describes a published frame.
type FrameContext struct {
	Seq      uint64
	Commands int
	Elapsed  time.Duration
}

type BrushSelectHook func(ctx *BrushSelectContext) error
type EventSelectHook func(ctx *EventSelectContext) error
type HighlightHook func(ctx *HighlightContext) error
type ViewportChangeHook func(ctx *ViewportChangeContext) error
type DataLoadedHook func(ctx *DataLoadedContext) error
type FrameHook func(ctx *FrameContext) error

// PluginBroker coordinates hook registration and triggering.
type PluginBroker struct {
	mu sync.RWMutex

	brushSelectHooks    []BrushSelectHook
	eventSelectHooks    []EventSelectHook
	highlightHooks      []HighlightHook
	viewportChangeHooks []ViewportChangeHook
	dataLoadedHooks     []DataLoadedHook
	frameHooks          []FrameHook

	pluginCatalog map[PluginCategory][]PluginDescriptor
	pluginIndex   map[string]PluginDescriptor
}

// NewPluginBroker creates an empty broker instance.
func NewPluginBroker() *PluginBroker {
	return &PluginBroker{
		pluginCatalog: make(map[PluginCategory][]PluginDescriptor),
		pluginIndex:   make(map[string]PluginDescriptor),
	}
}

func register[H any](p *PluginBroker, list *[]H, h H) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*list = append(*list, h)
}

// emit runs a snapshot of handlers in registration order and stops at the first error.
func emit[C any, H ~func(*C) error](p *PluginBroker, list *[]H, ctx *C) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]H, len(*list))
	copy(handlers, *list)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBrushSelect adds a hook run when a brush range is committed.
func (p *PluginBroker) RegisterBrushSelect(h BrushSelectHook) {
	if p == nil || h == nil {
		return
	}
	register(p, &p.brushSelectHooks, h)
}

// RegisterEventSelect adds a hook run when a click resolves.
func (p *PluginBroker) RegisterEventSelect(h EventSelectHook) {
	if p == nil || h == nil {
		return
	}
	register(p, &p.eventSelectHooks, h)
}

// RegisterHighlight adds a hook run when the hover target changes.
func (p *PluginBroker) RegisterHighlight(h HighlightHook) {
	if p == nil || h == nil {
		return
	}
	register(p, &p.highlightHooks, h)
}

// RegisterViewportChange adds a hook run after every viewport transition.
func (p *PluginBroker) RegisterViewportChange(h ViewportChangeHook) {
	if p == nil || h == nil {
		return
	}
	register(p, &p.viewportChangeHooks, h)
}

// RegisterDataLoaded adds a hook run after a load is reconstructed.
func (p *PluginBroker) RegisterDataLoaded(h DataLoadedHook) {
	if p == nil || h == nil {
		return
	}
	register(p, &p.dataLoadedHooks, h)
}

// RegisterFrame adds a hook run for every published frame.
func (p *PluginBroker) RegisterFrame(h FrameHook) {
	if p == nil || h == nil {
		return
	}
	register(p, &p.frameHooks, h)
}

// EmitBrushSelect triggers brush-select hooks.
func (p *PluginBroker) EmitBrushSelect(ctx *BrushSelectContext) error {
	if p == nil {
		return nil
	}
	return emit(p, &p.brushSelectHooks, ctx)
}

// EmitEventSelect triggers event-select hooks.
func (p *PluginBroker) EmitEventSelect(ctx *EventSelectContext) error {
	if p == nil {
		return nil
	}
	return emit(p, &p.eventSelectHooks, ctx)
}

// EmitHighlight triggers highlight hooks.
func (p *PluginBroker) EmitHighlight(ctx *HighlightContext) error {
	if p == nil {
		return nil
	}
	return emit(p, &p.highlightHooks, ctx)
}

// EmitViewportChange triggers viewport-change hooks.
func (p *PluginBroker) EmitViewportChange(ctx *ViewportChangeContext) error {
	if p == nil {
		return nil
	}
	return emit(p, &p.viewportChangeHooks, ctx)
}

// EmitDataLoaded triggers data-loaded hooks.
func (p *PluginBroker) EmitDataLoaded(ctx *DataLoadedContext) error {
	if p == nil {
		return nil
	}
	return emit(p, &p.dataLoadedHooks, ctx)
}

// EmitFrame triggers frame hooks.
func (p *PluginBroker) EmitFrame(ctx *FrameContext) error {
	if p == nil {
		return nil
	}
	return emit(p, &p.frameHooks, ctx)
}

// RegisterBundle registers a plugin descriptor together with all hook handlers.
func (p *PluginBroker) RegisterBundle(desc PluginDescriptor, bundle HookBundle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registerDescriptorLocked(desc)

	p.brushSelectHooks = append(p.brushSelectHooks, bundle.BrushSelect...)
	p.eventSelectHooks = append(p.eventSelectHooks, bundle.EventSelect...)
	p.highlightHooks = append(p.highlightHooks, bundle.Highlight...)
	p.viewportChangeHooks = append(p.viewportChangeHooks, bundle.ViewportChange...)
	p.dataLoadedHooks = append(p.dataLoadedHooks, bundle.DataLoaded...)
	p.frameHooks = append(p.frameHooks, bundle.FramePublished...)
}

// RegisterPluginMetadata stores plugin metadata without registering hooks.
func (p *PluginBroker) RegisterPluginMetadata(desc PluginDescriptor) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registerDescriptorLocked(desc)
}

// ListPlugins returns descriptors for plugins in the requested category.
func (p *PluginBroker) ListPlugins(category PluginCategory) []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	catalog := p.pluginCatalog[category]
	if len(catalog) == 0 {
		return nil
	}
	out := make([]PluginDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ListAllPlugins returns descriptors of every registered plugin sorted by name.
func (p *PluginBroker) ListAllPlugins() []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PluginDescriptor, 0, len(p.pluginIndex))
	for _, desc := range p.pluginIndex {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *PluginBroker) registerDescriptorLocked(desc PluginDescriptor) {
	if desc.Name == "" {
		return
	}
	if _, exists := p.pluginIndex[desc.Name]; exists {
		return
	}
	p.pluginIndex[desc.Name] = desc
	category := desc.Category
	p.pluginCatalog[category] = append(p.pluginCatalog[category], desc)
}
