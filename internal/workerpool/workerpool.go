// Package workerpool implements the bounded worker pool spec.md §5
// delegates heavy work to (proof-of-work mining, signature-verification
// batches, fusion-stage numerics): a fixed number of goroutines drain a
// job channel, and every job's result is posted back as an event rather
// than returned synchronously, matching the teacher's goroutine-pool
// idiom in internal/app/services/automation's scheduler dispatch loop.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"

	cerrors "github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/errors"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

// DefaultSize returns spec.md §5's sizing formula: min(4, hardware
// threads - 1). gopsutil's logical-core count is used instead of
// runtime.NumCPU directly since it accounts for container CPU limits
// that NumCPU does not; runtime.NumCPU is the fallback when gopsutil
// cannot read the host.
func DefaultSize() int {
	threads, err := cpu.Counts(true)
	if err != nil || threads <= 0 {
		threads = runtime.NumCPU()
	}
	size := threads - 1
	if size > 4 {
		size = 4
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Job is a unit of blocking work submitted to the pool. Run is
// responsible for publishing its own domain-specific success event (a
// mined Block, a fused state, a verified signature batch) — the pool
// only surfaces a failure, since the closed event-kind set has no
// generic "job succeeded" member.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool is a fixed-size goroutine pool draining a bounded job queue.
type Pool struct {
	jobs chan Job

	bus    *eventbus.Bus
	source string

	wg sync.WaitGroup
}

// New starts a Pool of size workers. size <= 0 uses DefaultSize().
// queueDepth bounds how many submitted jobs may be pending at once;
// Submit blocks the caller (never the workers) once the queue is full.
func New(ctx context.Context, size, queueDepth int, bus *eventbus.Bus, source string) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}
	if queueDepth <= 0 {
		queueDepth = size * 4
	}

	p := &Pool{
		jobs:   make(chan Job, queueDepth),
		bus:    bus,
		source: source,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	return p
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.runJob(ctx, job)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, job Job) {
	err := job.Run(ctx)
	if err == nil || p.bus == nil {
		return
	}
	_ = p.bus.Publish(eventbus.New(eventbus.KindError, p.source, eventbus.PriorityNormal,
		cerrors.Internal("worker job "+job.Name+" failed", err)))
}

// Submit enqueues job for execution by a worker goroutine, blocking the
// caller if the queue is full. Submit returns immediately after
// enqueuing — it does not wait for the job to complete; the job's
// outcome arrives as a published event.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs. Workers drain the jobs already queued
// and exit once the queue is empty; cancelling ctx (passed to New) stops
// them sooner and may leave queued jobs unrun.
func (p *Pool) Close() {
	close(p.jobs)
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
