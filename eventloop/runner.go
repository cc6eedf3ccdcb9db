package eventloop

import "context"

// Runner glues command handling and frame publishing for a session loop.
type Runner[TCommand any, Frame any] struct {
	commandLoop *CommandLoop[TCommand]
	visual      *VisualBridge[Frame]
}

// NewRunner creates a new Runner instance.
func NewRunner[TCommand any, Frame any](loop *CommandLoop[TCommand], visual *VisualBridge[Frame]) *Runner[TCommand, Frame] {
	return &Runner[TCommand, Frame]{
		commandLoop: loop,
		visual:      visual,
	}
}

// Run dispatches commands until ctx is done or the handler asks to stop.
// It returns ctx.Err() in the first case and nil in the second.
func (r *Runner[TCommand, Frame]) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.WaitForCommand(ctx) || !r.DrainPendingCommands() {
			return nil
		}
	}
}

// DrainPendingCommands pulls all queued commands through the underlying command loop.
func (r *Runner[TCommand, Frame]) DrainPendingCommands() bool {
	if r == nil || r.commandLoop == nil {
		return true
	}
	return r.commandLoop.DrainPending()
}

// WaitForCommand blocks on the command loop until a command arrives or context is cancelled.
func (r *Runner[TCommand, Frame]) WaitForCommand(ctx context.Context) bool {
	if r == nil || r.commandLoop == nil {
		<-ctx.Done()
		return true
	}
	return r.commandLoop.WaitAndHandle(ctx)
}

// CommandStats reports handler calls and merged commands of the loop.
func (r *Runner[TCommand, Frame]) CommandStats() (handled, merged uint64) {
	if r == nil || r.commandLoop == nil {
		return 0, 0
	}
	return r.commandLoop.Handled(), r.commandLoop.Merged()
}

// PublishFrame emits a frame through the visual bridge if visualization is enabled.
func (r *Runner[TCommand, Frame]) PublishFrame(frame Frame) {
	if r == nil || r.visual == nil {
		return
	}
	r.visual.Publish(frame)
}

// VisualEnabled reports whether the visual bridge is active.
func (r *Runner[TCommand, Frame]) VisualEnabled() bool {
	if r == nil || r.visual == nil {
		return false
	}
	return !r.visual.IsHeadless()
}
