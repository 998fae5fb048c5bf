package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type funcRunnable func(context.Context) error

func (f funcRunnable) Run(ctx context.Context) error { return f(ctx) }

type recordCloser struct {
	name   string
	closed *[]string
	err    error
}

func (c *recordCloser) Close() error {
	*c.closed = append(*c.closed, c.name)
	return c.err
}

func TestRunnerWait(t *testing.T) {
	errFail := errors.New("fail")
	r := NewRunner()
	r.Go(
		funcRunnable(func(context.Context) error { return nil }),
		NamedRun("fail", funcRunnable(func(context.Context) error { return errFail })),
		funcRunnable(func(context.Context) error { return context.Canceled }),
	)
	err := r.Wait()
	require.ErrorIs(t, err, errFail)
	var agg *AggregatedError
	require.True(t, errors.As(err, &agg))
	require.Len(t, agg.Errors, 1)

	require.NoError(t, NewRunner().Wait())
}

func TestRunnerCloseOnExit(t *testing.T) {
	var closed []string
	errClose := errors.New("port busy")
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunnerWith(ctx).CloseOnExit(
		&recordCloser{name: "port", closed: &closed},
		&recordCloser{name: "log", closed: &closed, err: errClose},
	)
	r.Go(funcRunnable(func(ctx context.Context) error {
		<-ctx.Done()
		closed = append(closed, "loop")
		return ctx.Err()
	}))
	cancel()
	err := r.Wait()
	require.ErrorIs(t, err, errClose)
	require.Equal(t, []string{"loop", "log", "port"}, closed)

	// closed only once.
	require.NoError(t, r.Wait())
	require.Len(t, closed, 3)
}

func TestRunnerForcedExit(t *testing.T) {
	var closed []string
	r := NewRunner().CloseOnExit(&recordCloser{name: "port", closed: &closed})
	release := make(chan struct{})
	defer close(release)
	r.Go(funcRunnable(func(context.Context) error {
		<-release
		return nil
	}))
	close(r.exitCh)
	require.ErrorIs(t, r.Wait(), ErrForcedExit)
	require.Equal(t, []string{"port"}, closed)
}

func TestNamedRun(t *testing.T) {
	r := NamedRun("monitor", funcRunnable(func(context.Context) error { return nil }))
	require.Equal(t, "monitor", r.(Named).Name())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	require.Empty(t, errs.Error())
	errs.Add(errors.New("a"), nil)
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(errors.New("b"))
	require.EqualError(t, errs.Aggregate(), "2 errors: a; b")
}
