// Package coordinator runs at most one statistics computation per path.
//
// Each computation runs on its own goroutine under a deadline. A finished
// result is held until the next PollResult takes it; a timeout is a result
// too. Failures leave nothing behind so the next query starts over.
package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/metrics"
)

// DefaultTimeout is the deadline used when none is configured.
const DefaultTimeout = 5 * time.Second

// Outcome is the answer of StartOrJoin.
type Outcome int

const (
	// Started means a new computation was launched.
	Started Outcome = iota
	// AlreadyInProgress means a computation for the path exists and was left alone.
	AlreadyInProgress
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == Started {
		return "started"
	}

	return "already in progress"
}

// Calculator computes the stats of a directory, honouring ctx.
type Calculator interface {
	Calculate(ctx context.Context, path string) (dirstat.DirectoryStats, error)
}

// Result is a terminal computation outcome.
type Result struct {
	// Stats is the computed result; TimedOut is set when the deadline fired.
	Stats dirstat.DirectoryStats
	// Mtime is the directory mtime passed to StartOrJoin.
	Mtime time.Time
}

type state int

const (
	statePending state = iota
	stateCompleted
)

type entry struct {
	state  state
	mtime  time.Time
	result Result
	cancel context.CancelFunc
}

// Options configures a Coordinator.
type Options struct {
	// Timeout bounds every computation. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
	// Metrics records computation outcomes. Nil disables metrics.
	Metrics metrics.Recorder
	// OnSettled is called without locks held after a computation for path
	// stored a result or failed. It is not called for cancelled computations.
	OnSettled func(path string)
}

// Coordinator tracks in-flight computations by cleaned path.
//
// Safe for concurrent use.
type Coordinator struct {
	calc      Calculator
	log       *zap.Logger
	metrics   metrics.Recorder
	onSettled func(string)

	mu      sync.Mutex
	timeout time.Duration
	entries map[string]*entry

	wg sync.WaitGroup
}

// New creates a Coordinator that runs calc.
func New(calc Calculator, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}

	if opts.OnSettled == nil {
		opts.OnSettled = func(string) {}
	}

	return &Coordinator{
		calc:      calc,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		onSettled: opts.OnSettled,
		timeout:   opts.Timeout,
		entries:   make(map[string]*entry),
	}
}

// SetTimeout changes the deadline of computations started afterwards.
func (c *Coordinator) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeout = d
}

// StartOrJoin launches a computation for path unless one is already tracked.
//
// mtime is the directory's modification time observed by the caller; it is
// handed back with the result so the caller can cache it. An unconsumed
// result also counts as tracked.
func (c *Coordinator) StartOrJoin(path string, mtime time.Time) Outcome {
	key := filepath.Clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return AlreadyInProgress
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	e := &entry{state: statePending, mtime: mtime, cancel: cancel}
	c.entries[key] = e

	c.metrics.ComputationStarted()
	c.log.Debug("computation started", zap.String("path", key), zap.Duration("timeout", c.timeout))

	c.wg.Add(1)

	go c.run(ctx, key, e)

	return Started
}

// run executes one computation and settles its entry.
func (c *Coordinator) run(ctx context.Context, key string, e *entry) {
	defer c.wg.Done()

	start := time.Now()
	stats, err := c.calc.Calculate(ctx, key)

	// Classify before cancel, which would otherwise mask the deadline.
	ctxErr := ctx.Err()
	e.cancel()

	elapsed := time.Since(start)

	var outcome string

	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimedOut
		stats = dirstat.TimedOutStats()
	case ctxErr != nil:
		outcome = metrics.OutcomeCancelled
	case err != nil:
		outcome = metrics.OutcomeFailed
	default:
		outcome = metrics.OutcomeCompleted
	}

	c.mu.Lock()

	if c.entries[key] != e {
		// Cancelled by CancelAll; a newer computation may own the key by now.
		c.mu.Unlock()
		c.metrics.ComputationSettled(metrics.OutcomeCancelled, elapsed)
		c.log.Debug("dropping cancelled computation", zap.String("path", key))

		return
	}

	switch outcome {
	case metrics.OutcomeCompleted, metrics.OutcomeTimedOut:
		e.state = stateCompleted
		e.result = Result{Stats: stats, Mtime: e.mtime}
	default:
		delete(c.entries, key)
	}

	c.mu.Unlock()

	c.metrics.ComputationSettled(outcome, elapsed)

	switch outcome {
	case metrics.OutcomeTimedOut:
		c.log.Debug("computation timed out", zap.String("path", key), zap.Duration("elapsed", elapsed))
	case metrics.OutcomeFailed, metrics.OutcomeCancelled:
		c.log.Debug("computation failed", zap.String("path", key), zap.Error(err))
	default:
		c.log.Debug("computation completed",
			zap.String("path", key),
			zap.Duration("elapsed", elapsed),
			zap.Uint64("files", stats.FileCount),
			zap.Uint64("folders", stats.FolderCount),
			zap.Uint64("bytes", stats.Size))
	}

	c.onSettled(key)
}

// PollResult takes the finished result for path. A result is returned exactly once.
func (c *Coordinator) PollResult(path string) (Result, bool) {
	key := filepath.Clean(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.state != stateCompleted {
		return Result{}, false
	}

	delete(c.entries, key)

	return e.result, true
}

// InProgress reports whether a computation for path is still running.
func (c *Coordinator) InProgress(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[filepath.Clean(path)]

	return ok && e.state == statePending
}

// CancelAll aborts every running computation and forgets all tracked state,
// including results that were not consumed yet.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.cancel()
	}

	c.entries = make(map[string]*entry)
}

// Wait blocks until every launched computation goroutine has returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels everything and waits for the goroutines to exit.
func (c *Coordinator) Close() {
	c.CancelAll()
	c.Wait()
}
