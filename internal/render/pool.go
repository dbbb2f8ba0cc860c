package render

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"drop-catch/internal/game"
)

var (
	// ErrPoolBusy is returned when every worker is busy and the queue is full
	ErrPoolBusy = errors.New("render pool busy")
	// ErrPoolStopped is returned after Stop
	ErrPoolStopped = errors.New("render pool stopped")
)

// Pool renders PNG frames on a fixed set of goroutines so concurrent
// /frame.png requests cannot start an unbounded number of gg contexts.
type Pool struct {
	numWorkers int
	jobs       chan renderJob
	wg         sync.WaitGroup

	mu      sync.RWMutex
	running bool

	rendered atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

type renderJob struct {
	ctx    context.Context
	snap   game.Snapshot
	opts   Options
	result chan<- renderResult
}

type renderResult struct {
	png []byte
	err error
}

// NewPool creates a pool with numWorkers goroutines; zero means NumCPU,
// capped at 8. Call Start before Render.
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > 8 {
		numWorkers = 8
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan renderJob, numWorkers*2),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop drains queued jobs and waits for the workers to exit
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := job.ctx.Err(); err != nil {
			job.result <- renderResult{err: err}
			continue
		}
		var buf bytes.Buffer
		err := WritePNG(&buf, job.snap, job.opts)
		if err != nil {
			p.failed.Add(1)
		} else {
			p.rendered.Add(1)
		}
		job.result <- renderResult{png: buf.Bytes(), err: err}
	}
}

// Render queues snap and waits for the encoded PNG. A full queue fails
// immediately with ErrPoolBusy rather than blocking the caller.
func (p *Pool) Render(ctx context.Context, snap game.Snapshot, opts Options) ([]byte, error) {
	result := make(chan renderResult, 1)

	p.mu.RLock()
	if !p.running {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}
	select {
	case p.jobs <- renderJob{ctx: ctx, snap: snap, opts: opts, result: result}:
	default:
		p.mu.RUnlock()
		p.rejected.Add(1)
		return nil, ErrPoolBusy
	}
	p.mu.RUnlock()

	select {
	case res := <-result:
		return res.png, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Workers returns the number of render goroutines
func (p *Pool) Workers() int {
	return p.numWorkers
}

// GetStats returns render counters for the debug server
func (p *Pool) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"workers":  p.numWorkers,
		"queued":   len(p.jobs),
		"rendered": p.rendered.Load(),
		"rejected": p.rejected.Load(),
		"failed":   p.failed.Load(),
	}
}
