// Package eventloop provides the single-goroutine command loop a trace
// session runs on, plus the helpers around it: a bounded inbox, a frame
// publishing bridge, and a frame-aligned redraw scheduler.
package eventloop

import "context"

// CommandSource yields queued commands.
type CommandSource[T any] interface {
	NextCommand() (T, bool)
	WaitCommand(context.Context) (T, bool)
}

// MergeFunc folds next into prev when both can be handled as a single
// command, and reports whether it did.
type MergeFunc[T any] func(prev, next T) (T, bool)

// CommandLoop dispatches commands on the goroutine that drives it. The
// handler returns false to stop the loop. With a MergeFunc installed, runs
// of adjacent mergeable commands (pointer moves during a drag, redraw
// ticks) reach the handler once.
type CommandLoop[T any] struct {
	source CommandSource[T]
	handle func(T) bool
	merge  MergeFunc[T]

	// held is a command read ahead while merging and not yet dispatched.
	held    T
	holding bool

	handled uint64
	merged  uint64
}

// NewCommandLoop creates a loop reading from source and dispatching to handle.
func NewCommandLoop[T any](source CommandSource[T], handle func(T) bool) *CommandLoop[T] {
	return &CommandLoop[T]{source: source, handle: handle}
}

// SetMerge installs the fold applied to adjacent queued commands.
func (c *CommandLoop[T]) SetMerge(merge MergeFunc[T]) {
	if c != nil {
		c.merge = merge
	}
}

// Handled returns the number of handler calls.
func (c *CommandLoop[T]) Handled() uint64 {
	if c == nil {
		return 0
	}
	return c.handled
}

// Merged returns the number of commands folded into a neighbour.
func (c *CommandLoop[T]) Merged() uint64 {
	if c == nil {
		return 0
	}
	return c.merged
}

func (c *CommandLoop[T]) ready() bool {
	return c != nil && c.handle != nil && c.source != nil
}

func (c *CommandLoop[T]) next() (T, bool) {
	if c.holding {
		cmd := c.held
		var zero T
		c.held, c.holding = zero, false
		return cmd, true
	}
	return c.source.NextCommand()
}

// DrainPending dispatches every queued command. It returns false when the
// handler asked to stop; commands behind the stopping one are not dispatched.
func (c *CommandLoop[T]) DrainPending() bool {
	if !c.ready() {
		return true
	}
	cmd, ok := c.next()
	if !ok {
		return true
	}
	return c.dispatch(cmd)
}

// WaitAndHandle blocks until a command is available (or ctx is done) and
// dispatches it together with whatever is queued behind it.
func (c *CommandLoop[T]) WaitAndHandle(ctx context.Context) bool {
	if !c.ready() {
		return true
	}
	cmd, ok := c.next()
	if !ok {
		if cmd, ok = c.source.WaitCommand(ctx); !ok {
			return true
		}
	}
	return c.dispatch(cmd)
}

func (c *CommandLoop[T]) dispatch(cmd T) bool {
	for {
		if c.merge != nil {
			cmd = c.fold(cmd)
		}
		c.handled++
		if !c.handle(cmd) {
			return false
		}
		var ok bool
		if cmd, ok = c.next(); !ok {
			return true
		}
	}
}

// fold merges queued successors into cmd until one does not merge; that
// one is held for the next dispatch.
func (c *CommandLoop[T]) fold(cmd T) T {
	for {
		next, ok := c.next()
		if !ok {
			return cmd
		}
		merged, did := c.merge(cmd, next)
		if !did {
			c.held, c.holding = next, true
			return cmd
		}
		cmd = merged
		c.merged++
	}
}
