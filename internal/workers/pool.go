// Package workers runs independent evaluations across a bounded pool
// of goroutines. The Backtester fans (strategy, symbol) jobs through
// it; each worker is pinned to one evaluation at a time so a slow
// replay never starves the queue of a thread it already holds.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of work.
type Task interface {
	Execute() error
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Config sizes the pool.
type Config struct {
	Name            string
	NumWorkers      int
	QueueSize       int
	ShutdownTimeout time.Duration
}

// EvaluationPoolConfig sizes a pool for CPU-bound backtest replays:
// one worker per core, queue deep enough for a full
// (strategy x symbol) fan-out.
func EvaluationPoolConfig(name string) Config {
	return Config{
		Name:            name,
		NumWorkers:      runtime.NumCPU(),
		QueueSize:       4096,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Pool is a fixed-size worker pool over a bounded task queue.
type Pool struct {
	logger *zap.Logger
	config Config

	tasks  chan Task
	wg     sync.WaitGroup
	cancel context.CancelFunc

	running   atomic.Bool
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
}

// NewPool builds a Pool; call Start before submitting.
func NewPool(logger *zap.Logger, config Config) *Pool {
	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.NumCPU()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &Pool{
		logger: logger.Named("workers." + config.Name),
		config: config,
		tasks:  make(chan Task, config.QueueSize),
	}
}

// Start launches the worker goroutines. Idempotent.
func (p *Pool) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Debug("pool started", zap.Int("workers", p.config.NumWorkers))
}

// Stop drains outstanding tasks and waits for the workers, up to
// ShutdownTimeout; past the deadline remaining workers are abandoned
// with their tasks unfinished.
func (p *Pool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("pool shutdown timed out, abandoning workers")
	}
	p.cancel()
}

// Submit enqueues a task. Returns an error if the pool is stopped or
// the queue is full; the caller decides whether to block, retry, or
// run inline.
func (p *Pool) Submit(t Task) error {
	if !p.running.Load() {
		return fmt.Errorf("workers: pool %s is not running", p.config.Name)
	}
	select {
	case p.tasks <- t:
		p.submitted.Add(1)
		return nil
	default:
		return fmt.Errorf("workers: pool %s queue full (%d)", p.config.Name, p.config.QueueSize)
	}
}

// SubmitFunc enqueues a plain function.
func (p *Pool) SubmitFunc(f func() error) error {
	return p.Submit(TaskFunc(f))
}

// Stats reports the pool's lifetime counters.
func (p *Pool) Stats() (submitted, completed, failed, panicked int64) {
	return p.submitted.Load(), p.completed.Load(), p.failed.Load(), p.panicked.Load()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(t, id)
		}
	}
}

func (p *Pool) run(t Task, id int) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.failed.Add(1)
			p.logger.Error("task panicked", zap.Int("worker", id), zap.Any("recover", r))
		}
	}()
	if err := t.Execute(); err != nil {
		p.failed.Add(1)
		p.completed.Add(1)
		return
	}
	p.completed.Add(1)
}
