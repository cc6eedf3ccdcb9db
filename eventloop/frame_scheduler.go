package eventloop

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler coalesces redraw requests so that fire runs at most once
// per interval, however many inputs changed in between.
type FrameScheduler struct {
	interval time.Duration
	fire     func()

	mu        sync.Mutex
	pending   bool
	stopped   bool
	last      time.Time
	timer     *time.Timer
	coalesced uint64
}

// NewFrameScheduler returns a scheduler calling fire from its own timer
// goroutine; fire should only hand off to the owning loop.
func NewFrameScheduler(interval time.Duration, fire func()) *FrameScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameScheduler{interval: interval, fire: fire}
}

// Request asks for a frame. Requests made while one is pending are merged into it.
func (s *FrameScheduler) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.pending {
		s.coalesced++
		return
	}
	s.pending = true
	delay := s.interval - time.Since(s.last)
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.tick)
}

func (s *FrameScheduler) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.last = time.Now()
	s.mu.Unlock()
	s.fire()
}

// Coalesced returns how many requests were merged into an already pending frame.
func (s *FrameScheduler) Coalesced() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coalesced
}

// Stop cancels any pending frame; later requests are ignored.
func (s *FrameScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
