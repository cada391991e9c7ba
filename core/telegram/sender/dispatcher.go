package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the job was not accepted; callers usually send inline.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher. Zero values get defaults.
type Options struct {
	// QueueSize is split evenly between the workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
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

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2+len(extra))
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher runs outbound Telegram calls on a small worker pool. Transient
// failures are retried with linear backoff, or after the delay Telegram asks
// for on flood control. Each worker owns a FIFO queue and jobs sharing a key
// always land on the same worker, so one chat's messages keep their order.
type Dispatcher struct {
	opts   Options
	queues []chan job
	wg     sync.WaitGroup
	once   sync.Once
	errs   atomic.Uint64
	next   atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
	}
	perWorker := max(opts.QueueSize/opts.Workers, 1)
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		jobs := make(chan job, perWorker)
		d.queues[i] = jobs
		go func() {
			defer d.wg.Done()
			for j := range jobs {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may be called more than once.
// Jobs with the same non-empty key run one at a time in enqueue order; an
// empty key spreads jobs round-robin.
func (d *Dispatcher) Enqueue(ctx context.Context, key, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
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
	case d.queue(key) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns how many jobs failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close rejects new jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) queue(key string) chan job {
	n := uint64(len(d.queues))
	if key == "" {
		return d.queues[d.next.Add(1)%n]
	}
	return d.queues[xxhash.Sum64String(key)%n]
}

func (d *Dispatcher) process(j job) {
	// The update handler may have returned already; keep its values only.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt, err := d.attempt(ctx, j)
	if err == nil {
		level := slog.LevelDebug
		if attempt > 1 {
			level = slog.LevelInfo
		}
		logger.Event(j.ctx, "tg.sender", level, "send.ok", j.attrs(
			slog.Int("attempts", attempt),
			slog.Duration("elapsed", logger.Took(start)),
		)...)
		return
	}

	d.errs.Add(1)
	logger.Error(j.ctx, "tg.sender", "send.fail", j.attrs(
		slog.String("status", logger.Status(err)),
		slog.String("error", netutil.Redact(err)),
		slog.String("error_kind", netutil.ErrorKind(err)),
		slog.Int("attempts", attempt),
		slog.Duration("elapsed", logger.Took(start)),
	)...)
}

// attempt runs j until it succeeds, fails permanently or runs out of retries
// or time. It returns the number of calls made and the last error.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		err := j.run()
		if err == nil || n == limit || !netutil.ShouldRetry(err) {
			return n, err
		}

		delay := d.opts.RetryBackoff * time.Duration(n)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry", j.attrs(
			slog.String("status", "retry"),
			slog.Int("attempt", n),
			slog.Duration("delay", delay),
			slog.String("error_kind", netutil.ErrorKind(err)),
		)...)
		if werr := sleep(ctx, delay); werr != nil {
			return n, errors.Join(err, werr)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
