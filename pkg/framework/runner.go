package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// ErrForcedExit is returned by Wait when a second stop signal arrives
// before all runners stopped.
var ErrForcedExit = errors.New("forced exit")

// Runner runs multiple Runnables until the first one stops or the
// context is canceled, and collects their errors.
type Runner struct {
	Context context.Context

	cancel  context.CancelFunc
	errCh   chan runResult
	exitCh  chan struct{}
	started int

	exitOnce sync.Once
}

type runResult struct {
	name string
	err  error
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context: ctx,
		cancel:  cancel,
		errCh:   make(chan runResult),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals stops the runner on Ctrl-C or SIGTERM. A second signal
// forces Wait to return.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("stop requested: %v", sig)
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		r.ForceExit()
	}()
	return r
}

// ForceExit cancels the context and makes Wait return ErrForcedExit
// without waiting for the remaining Runnables.
func (r *Runner) ForceExit() {
	r.cancel()
	r.exitOnce.Do(func() { close(r.exitCh) })
}

// Stop cancels the runner context.
func (r *Runner) Stop() {
	r.cancel()
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		name := strconv.Itoa(r.started)
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		r.started++
		glog.V(4).Infof("start Runner[%s]", name)
		go func(runner Runnable, name string) {
			err := runner.Run(r.Context)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			select {
			case r.errCh <- runResult{name: name, err: err}:
			case <-r.exitCh:
			}
		}(runner, name)
	}
	return r
}

// Wait waits until all Runnables stop. The first Runnable to stop cancels
// the others. Cancellation errors are not reported.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for n := 0; n < r.started; n++ {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case res := <-r.errCh:
			r.cancel()
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				glog.Errorf("Runner[%s] failed: %v", res.name, res.err)
				errs.Add(res.err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs a func which doesn't accept a context.
// onCancel is called only when the context is canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return context.Canceled
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser ensures closer.Close is called either on cancel or
// when fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
