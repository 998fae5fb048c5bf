package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when stop is requested twice before
// all runnables finished.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name used in logs.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// Runner runs Runnables sharing a bus session until they all stop, and
// then releases the resources they share, like the serial port.
type Runner struct {
	Context context.Context

	runnables []Runnable
	closers   []io.Closer
	errCh     chan error
	exitCh    chan struct{}
}

// NewRunner creates a Runner on a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a Runner on ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	return &Runner{
		Context: ctx,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals cancels the runnables on SIGINT or SIGTERM.
// A second signal makes Wait return ErrForcedExit right away.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		cancel()
		sig = <-sigCh
		glog.Errorf("%v: stop requested again, exiting", sig)
		close(r.exitCh)
	}()
	return r
}

// CloseOnExit registers resources closed by Wait after the runnables
// stopped, the last registered first.
func (r *Runner) CloseOnExit(closers ...io.Closer) *Runner {
	r.closers = append(r.closers, closers...)
	return r
}

// Go starts Runnables on the Runner's context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	return r.GoWith(r.Context, runnables...)
}

// GoWith starts Runnables on ctx.
func (r *Runner) GoWith(ctx context.Context, runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := strconv.Itoa(len(r.runnables))
		if named, ok := runnable.(Named); ok {
			name = named.Name()
		}
		r.runnables = append(r.runnables, runnable)
		go func(runnable Runnable, name string) {
			glog.V(4).Infof("%s started", name)
			err := runnable.Run(ctx)
			glog.V(4).Infof("%s stopped: %v", name, err)
			r.errCh <- err
		}(runnable, name)
	}
	return r
}

// Wait waits for all Runnables, then closes the registered resources.
// Cancellation doesn't count as a failure.
func (r *Runner) Wait() error {
	var errs AggregatedError
	runnables := r.runnables
	r.runnables = nil
	for range runnables {
		select {
		case <-r.exitCh:
			errs.Add(ErrForcedExit)
			r.close(&errs)
			return errs.Aggregate()
		case err := <-r.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	r.close(&errs)
	return errs.Aggregate()
}

func (r *Runner) close(errs *AggregatedError) {
	for n := len(r.closers) - 1; n >= 0; n-- {
		errs.Add(r.closers[n].Close())
	}
	r.closers = nil
}
