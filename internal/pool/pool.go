// Package pool implements a fixed-size worker pool over an unbounded FIFO
// queue with outstanding-work tracking.
//
// Tasks may submit further tasks from inside their body. The outstanding
// counter covers queued plus executing tasks and is decremented only after a
// task body returns, so Wait cannot observe zero while a running task is
// still able to enqueue more work.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/metrics"
)

// ErrPoolClosed is returned by Submit once Shutdown has been called.
var ErrPoolClosed = errors.New("pool closed")

// Task is a unit of work. The context is the one the pool was created with.
type Task func(ctx context.Context)

// State is the pool lifecycle state.
type State int

// Pool lifecycle: Running -> Stopping -> Stopped.
const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PanicError wraps a value recovered from a task body.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers     int    `json:"workers"`
	Queued      int    `json:"queued"`
	Running     int    `json:"running"`
	Outstanding int    `json:"outstanding"`
	State       string `json:"state"`
}

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	ctx     context.Context
	logger  *zap.Logger
	workers int

	mu          sync.Mutex
	ready       *sync.Cond // queue non-empty or state changed
	queue       fifo
	running     int
	outstanding int
	state       State
	idle        chan struct{} // closed while outstanding == 0

	wg sync.WaitGroup
}

// New starts a pool of the given size. Tasks receive ctx; cancelling it does
// not stop the pool, it only informs task bodies.
func New(ctx context.Context, workers int, logger *zap.Logger) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("pool requires a positive worker count, got %d", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	p := &Pool{
		ctx:     ctx,
		logger:  logger,
		workers: workers,
		idle:    idle,
	}
	p.ready = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := range workers {
		go p.work(i)
	}
	return p, nil
}

// Submit appends task to the queue and wakes one idle worker.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue.push(task)
	if p.outstanding == 0 {
		p.idle = make(chan struct{})
	}
	p.outstanding++
	metrics.SetOutstanding(p.outstanding)
	p.mu.Unlock()

	p.ready.Signal()
	return nil
}

// Wait blocks until no task is queued or executing, or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for idle: %w", ctx.Err())
	}
}

// Shutdown stops accepting tasks, lets workers drain the queue and blocks
// until every worker has exited or ctx ends. It is safe to call repeatedly.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateRunning {
		p.state = StateStopping
		p.logger.Debug("pool stopping", zap.Int("queued", p.queue.len()))
	}
	p.mu.Unlock()
	p.ready.Broadcast()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool shutdown: %w", ctx.Err())
	}
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:     p.workers,
		Queued:      p.queue.len(),
		Running:     p.running,
		Outstanding: p.outstanding,
		State:       p.state.String(),
	}
}

// State returns the lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pool) work(index int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", index))

	for {
		p.mu.Lock()
		for p.queue.len() == 0 && p.state == StateRunning {
			p.ready.Wait()
		}
		if p.queue.len() == 0 {
			p.mu.Unlock()
			logger.Debug("worker exiting")
			return
		}
		task := p.queue.pop()
		p.running++
		p.mu.Unlock()

		p.run(task, logger)

		p.mu.Lock()
		p.running--
		p.outstanding--
		// Published under the lock so the gauge follows the counter's order.
		metrics.SetOutstanding(p.outstanding)
		if p.outstanding == 0 {
			close(p.idle)
		}
		p.mu.Unlock()
	}
}

// run executes task, converting a panic into a logged PanicError.
func (p *Pool) run(task Task, logger *zap.Logger) {
	start := time.Now()
	outcome := "ok"
	metrics.IncActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			perr := &PanicError{Value: r, Stack: debug.Stack()}
			logger.Error("task failed", zap.Error(perr), zap.ByteString("stack", perr.Stack))
		}
		metrics.DecActiveWorkers()
		metrics.ObserveTask(outcome, time.Since(start))
	}()
	task(p.ctx)
}
