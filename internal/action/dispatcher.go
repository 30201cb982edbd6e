package action

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMPRISTimeout bounds a single bus call.
const DefaultMPRISTimeout = 5 * time.Second

// Config configures a Dispatcher.
type Config struct {
	Shell    Executor
	MPRIS    Executor
	DryRun   bool
	Recorder Recorder
	Logger   *slog.Logger
	// OnResult, if set, observes every result after it is recorded.
	OnResult func(Result)
}

// Dispatcher routes actions to executors on their own goroutines.
type Dispatcher struct {
	cfg Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewDispatcher returns a Dispatcher. A nil Shell defaults to NewShell("")
// and a nil MPRIS to NewMPRIS("").
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Shell == nil {
		cfg.Shell = NewShell("")
	}
	if cfg.MPRIS == nil {
		cfg.MPRIS = NewMPRIS("")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{cfg: cfg, log: log, ctx: ctx, cancel: cancel, now: time.Now}
}

// Run starts action and returns immediately. Empty actions are ignored,
// as is anything submitted once Close has begun.
func (d *Dispatcher) Run(action string) {
	if action == "" {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("dispatcher closed, action dropped", "action", action)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.finish(d.exec(action))
	}()
}

func (d *Dispatcher) exec(action string) Result {
	start := d.now()
	res := Result{Action: action, At: start}

	kind, arg, err := Parse(action)
	res.Kind = kind
	if err != nil {
		res.ExitCode = -1
		res.Err = err
		return res
	}

	if d.cfg.DryRun {
		res.Kind = KindDryRun
		d.log.Info("dry run, action not executed", "action", action, "executor", string(kind))
		return res
	}

	switch kind {
	case KindMPRIS:
		ctx, cancel := context.WithTimeout(d.ctx, DefaultMPRISTimeout)
		res.ExitCode, res.Err = d.cfg.MPRIS.Exec(ctx, arg)
		cancel()
	default:
		res.ExitCode, res.Err = d.cfg.Shell.Exec(d.ctx, arg)
	}
	res.Duration = d.now().Sub(start)
	return res
}

func (d *Dispatcher) finish(res Result) {
	switch {
	case res.Err != nil:
		d.log.Error("action failed", "action", res.Action, "executor", string(res.Kind), "error", res.Err)
	case res.ExitCode != 0:
		d.log.Warn("action exited with error", "action", res.Action, "exit_code", res.ExitCode, "duration", res.Duration)
	default:
		d.log.Debug("action finished", "action", res.Action, "executor", string(res.Kind), "duration", res.Duration)
	}

	if d.cfg.Recorder != nil {
		if err := d.cfg.Recorder.Record(context.Background(), res); err != nil {
			d.log.Warn("record action", "action", res.Action, "error", err)
		}
	}
	if d.cfg.OnResult != nil {
		d.cfg.OnResult(res)
	}
}

// Close waits for running actions until ctx ends, then cancels pending
// MPRIS calls. Shell commands still running at that point are left alone.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
