package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Controller defines the abstract controlling logic.
type Controller interface {
	Control(ControlContext) error
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// ControlContext provides the context of current control
// iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Iteration is the sequence number of current iteration, from 1.
	Iteration() int64
	// PostRun injects one-shot hooks run after all controllers.
	// If called in post-run hooks, new hooks are installed for
	// next iteration.
	PostRun(hooks ...Controller)

	LoopControl
}

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// PreRun injects one-shot hooks run before all controllers
	// in the next iteration.
	PreRun(controllers ...Controller)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(ctx ControlContext) error {
	return f(ctx)
}
