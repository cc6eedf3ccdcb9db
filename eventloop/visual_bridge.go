package eventloop

import "sync/atomic"

// VisualBridge fans published frames out to the registered sinks unless
// the session runs headless.
type VisualBridge[Frame any] struct {
	headless   bool
	publishers []func(Frame)
	published  atomic.Uint64
}

// NewVisualBridge constructs a bridge with the headless flag and initial sinks.
func NewVisualBridge[Frame any](headless bool, publish ...func(Frame)) *VisualBridge[Frame] {
	v := &VisualBridge[Frame]{headless: headless}
	for _, p := range publish {
		v.AddPublisher(p)
	}
	return v
}

// IsHeadless reports whether visualization output is disabled.
func (v *VisualBridge[Frame]) IsHeadless() bool {
	if v == nil {
		return true
	}
	return v.headless
}

// SetHeadless updates the headless flag.
func (v *VisualBridge[Frame]) SetHeadless(headless bool) {
	if v == nil {
		return
	}
	v.headless = headless
}

// AddPublisher registers another frame sink. Not safe to call concurrently with Publish.
func (v *VisualBridge[Frame]) AddPublisher(publish func(Frame)) {
	if v == nil || publish == nil {
		return
	}
	v.publishers = append(v.publishers, publish)
}

// Publish emits a frame to every sink when visualization is enabled.
func (v *VisualBridge[Frame]) Publish(frame Frame) {
	if v == nil || v.IsHeadless() {
		return
	}
	for _, p := range v.publishers {
		p(frame)
	}
	v.published.Add(1)
}

// Published returns how many frames reached the sinks.
func (v *VisualBridge[Frame]) Published() uint64 {
	if v == nil {
		return 0
	}
	return v.published.Load()
}
