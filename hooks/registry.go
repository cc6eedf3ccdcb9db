package hooks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// GlobalPluginFactory installs process-wide hooks into the broker.
type GlobalPluginFactory func(broker *PluginBroker) error

// TraceScope identifies the loaded view of a simulation a trace plugin
// instance observes. Segment is 0 for traces loaded in one piece.
type TraceScope struct {
	SimulationID string
	Segment      int
}

// TracePluginFactory builds the data-loaded handler of one trace scope.
// A fresh handler is built whenever the session moves to another scope, so
// state the handler closes over never leaks between segments.
type TracePluginFactory func(scope TraceScope) (DataLoadedHook, error)

type plugin struct {
	desc   PluginDescriptor
	global GlobalPluginFactory
	trace  TracePluginFactory
}

// armedTrace is the set of trace plugins active for one simulation and the
// handlers built for the scope it last loaded.
type armedTrace struct {
	names    []string
	scope    TraceScope
	built    bool
	handlers []DataLoadedHook
	loads    int
}

// Registry keeps plugin factories that configuration can activate. Global
// plugins are installed once. Trace plugins are armed per simulation and
// rebuilt for each (simulation, segment) the session reports through the
// data-loaded hook.
type Registry struct {
	mu      sync.Mutex
	broker  *PluginBroker
	plugins map[string]plugin
	armed   map[string]*armedTrace
	hooked  bool
}

// NewRegistry creates an empty plugin registry bound to a broker.
func NewRegistry(broker *PluginBroker) *Registry {
	if broker == nil {
		broker = NewPluginBroker()
	}
	return &Registry{
		broker:  broker,
		plugins: make(map[string]plugin),
		armed:   make(map[string]*armedTrace),
	}
}

// Broker returns the underlying broker associated with the registry.
func (r *Registry) Broker() *PluginBroker {
	if r == nil {
		return nil
	}
	return r.broker
}

// RegisterGlobal registers a process-wide plugin factory.
func (r *Registry) RegisterGlobal(name string, desc PluginDescriptor, factory GlobalPluginFactory) error {
	if factory == nil {
		return fmt.Errorf("plugin %q: factory cannot be nil", name)
	}
	return r.add(name, plugin{desc: desc, global: factory})
}

// RegisterTrace registers a plugin instantiated per trace scope.
func (r *Registry) RegisterTrace(name string, desc PluginDescriptor, factory TracePluginFactory) error {
	if factory == nil {
		return fmt.Errorf("plugin %q: factory cannot be nil", name)
	}
	return r.add(name, plugin{desc: desc, trace: factory})
}

func (r *Registry) add(name string, p plugin) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	if name == "" {
		return errors.New("plugin name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin already registered: %s", name)
	}
	r.plugins[name] = p
	return nil
}

// lookup returns the named plugins, failing on unknown names and on
// plugins of the other kind.
func (r *Registry) lookup(names []string, trace bool) ([]plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]plugin, 0, len(names))
	for _, name := range names {
		p, ok := r.plugins[name]
		switch {
		case !ok:
			return nil, fmt.Errorf("plugin not found: %s", name)
		case trace && p.trace == nil:
			return nil, fmt.Errorf("plugin %s is global, not per trace", name)
		case !trace && p.global == nil:
			return nil, fmt.Errorf("plugin %s is per trace, not global", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadGlobal installs the requested global plugins.
func (r *Registry) LoadGlobal(names []string) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	plugins, err := r.lookup(names, false)
	if err != nil {
		return err
	}
	for i, p := range plugins {
		if err := p.global(r.broker); err != nil {
			return fmt.Errorf("global plugin %s failed: %w", names[i], err)
		}
		r.broker.RegisterPluginMetadata(p.desc)
	}
	return nil
}

// ArmTrace activates the named trace plugins for loads of simulationID.
// Handlers are built lazily on the first load of each scope. Arming the
// same simulation again replaces its plugin set.
func (r *Registry) ArmTrace(simulationID string, names []string) error {
	if r == nil {
		return errors.New("registry is nil")
	}
	plugins, err := r.lookup(names, true)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.armed[simulationID] = &armedTrace{names: append([]string(nil), names...)}
	install := !r.hooked
	r.hooked = true
	r.mu.Unlock()

	if install {
		r.broker.RegisterDataLoaded(r.dispatch)
	}
	for _, p := range plugins {
		r.broker.RegisterPluginMetadata(p.desc)
	}
	return nil
}

// Scope reports the scope the plugins of simulationID were last built for
// and how many loads they have seen in it.
func (r *Registry) Scope(simulationID string) (TraceScope, int, bool) {
	if r == nil {
		return TraceScope{}, 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.armed[simulationID]
	if !ok || !a.built {
		return TraceScope{}, 0, false
	}
	return a.scope, a.loads, true
}

// dispatch routes a completed load to the trace plugins of its simulation,
// rebuilding them when the load belongs to a new scope.
func (r *Registry) dispatch(ctx *DataLoadedContext) error {
	scope := TraceScope{SimulationID: ctx.SimulationID, Segment: ctx.Segment}

	r.mu.Lock()
	a, ok := r.armed[scope.SimulationID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	if !a.built || a.scope != scope {
		handlers := make([]DataLoadedHook, 0, len(a.names))
		for _, name := range a.names {
			h, err := r.plugins[name].trace(scope)
			if err != nil {
				r.mu.Unlock()
				return fmt.Errorf("trace plugin %s for %s segment %d: %w", name, scope.SimulationID, scope.Segment, err)
			}
			if h != nil {
				handlers = append(handlers, h)
			}
		}
		a.scope, a.handlers, a.built, a.loads = scope, handlers, true, 0
	}
	a.loads++
	handlers := a.handlers
	r.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Descriptor returns metadata registered under the provided name.
func (r *Registry) Descriptor(name string) (PluginDescriptor, bool) {
	if r == nil {
		return PluginDescriptor{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[name]
	return p.desc, ok
}

// Names lists registered plugin names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
