package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the default period of a Loop.
const DefaultInterval = 100 * time.Millisecond

// Loop runs controllers periodically, e.g. polling devices on a bus.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	preHooks    []Controller
	postHooks   []Controller
	runners     []Runnable
	iteration   int64
	lock        sync.Mutex

	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	*Loop
	ctx       context.Context
	time      time.Time
	iteration int64
}

var (
	loopCtxKey = &Loop{}
)

// LoopCtlFrom gets LoopControl from context.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// CtlCtxFrom gets ControlContext from context.
func CtlCtxFrom(ctx context.Context) ControlContext {
	return ctx.Value(loopCtxKey).(ControlContext)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
// Controllers also implementing Runnable are run in background.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	l.lock.Lock()
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	l.lock.Unlock()

	runner := NewRunnerWith(context.WithValue(ctx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce(ctx)
		case <-l.wakeUpCh:
			l.RunOnce(ctx)
		}
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		glog.Fatalln(err)
	}
}

// PreRun implements LoopControl.
func (l *Loop) PreRun(hooks ...Controller) {
	l.lock.Lock()
	l.preHooks = append(l.preHooks, hooks...)
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	l.lock.Lock()
	ch := l.wakeUpCh
	l.lock.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// RunOnce runs a single iteration.
func (l *Loop) RunOnce(ctx context.Context) {
	l.lock.Lock()
	l.iteration++
	iter := &loopIteration{Loop: l, time: time.Now(), iteration: l.iteration}
	pre := l.preHooks
	l.preHooks = nil
	l.lock.Unlock()

	iter.ctx = context.WithValue(ctx, loopCtxKey, ControlContext(iter))
	runControllers(iter, pre)
	runControllers(iter, l.controllers)

	l.lock.Lock()
	post := l.postHooks
	l.postHooks = nil
	l.lock.Unlock()
	runControllers(iter, post)
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) Iteration() int64 {
	return t.iteration
}

func (t *loopIteration) PostRun(hooks ...Controller) {
	t.lock.Lock()
	t.postHooks = append(t.postHooks, hooks...)
	t.lock.Unlock()
}

func runControllers(iter *loopIteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}
