// Package sender runs outbound calls, Telegram replies and order
// notifications, on a bounded worker pool with retries.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/pointshop/core/logger"
	"github.com/m3rciful/pointshop/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("sender: queue closed")
	// ErrQueueFull is returned when the job was not accepted.
	ErrQueueFull = errors.New("sender: queue full")
)

// Job is one outbound call. Its context is bounded by Options.MaxDuration
// and it may run more than once.
type Job func(ctx context.Context) error

// Options controls the dispatcher. Zero values get defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds a job across all of its attempts.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type task struct {
	ctx      context.Context
	action   string
	endpoint string
	run      Job
}

// Dispatcher executes jobs asynchronously. Transient failures are retried
// with linear backoff, stretched to Telegram's flood-control wait.
type Dispatcher struct {
	opts  Options
	tasks chan task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	failed atomic.Uint64
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, tasks: make(chan task, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go d.worker()
	}
	return d
}

// Enqueue schedules run. The job keeps the values of ctx but not its
// cancellation, since it usually outlives the update that queued it.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run Job) error {
	if run == nil {
		return errors.New("sender: nil job")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.tasks <- task{ctx: context.WithoutCancel(ctx), action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits until the queued ones are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.process(t)
	}
}

func (d *Dispatcher) process(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	attempt := 1
	err := t.run(ctx)
	for ; err != nil && attempt < attempts && netutil.ShouldRetry(err); attempt++ {
		delay := max(d.opts.RetryBackoff*time.Duration(attempt), netutil.RetryAfter(err))
		logger.Debug(t.ctx, "sender", "send.retry",
			slog.String("action", t.action),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("err", redactToken(err)),
		)
		if !sleep(ctx, delay) {
			err = fmt.Errorf("%w after %w", ctx.Err(), err)
			break
		}
		err = t.run(ctx)
	}

	attrs := []slog.Attr{
		slog.String("action", t.action),
		slog.String("endpoint", t.endpoint),
		slog.Int("attempts", attempt),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err == nil {
		level := slog.LevelDebug
		if attempt > 1 {
			level = slog.LevelInfo
		}
		logger.LogEvent(t.ctx, logger.Component("sender"), level, "send.done", append(attrs, slog.String("status", "ok"))...)
		return
	}
	d.failed.Add(1)
	logger.Error(t.ctx, "sender", "send.fail", append(attrs,
		slog.String("status", "fail"),
		slog.String("err", redactToken(err)),
		slog.String("err_code", errorKind(err)),
	)...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
