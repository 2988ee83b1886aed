package soundmod

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
)

// MaxWorkersEnv names the environment variable bounding concurrent conversions.
const MaxWorkersEnv = "SOUNDMOD_MAX_WORKERS"

// Pool bounds the number of concurrent batch conversions and counts what
// went through it.
type Pool struct {
	size  int
	slots chan struct{}

	mu       sync.Mutex
	running  int
	waiting  int
	peak     int
	finished int64
}

// PoolStats is a snapshot of a Pool.
type PoolStats struct {
	Size     int
	Running  int
	Waiting  int
	Peak     int
	Finished int64
}

// Free returns the number of slots a new job could take without waiting.
func (s PoolStats) Free() int { return s.Size - s.Running }

// NewPool creates a pool sized by SOUNDMOD_MAX_WORKERS, defaulting to the
// number of CPUs.
func NewPool() *Pool {
	size := runtime.NumCPU()

	if envMax := os.Getenv(MaxWorkersEnv); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			size = parsed
		}
	}

	return NewPoolWithLimit(size)
}

// NewPoolWithLimit creates a pool of size slots. A non-positive size falls
// back to NewPool.
func NewPoolWithLimit(size int) *Pool {
	if size <= 0 {
		return NewPool()
	}

	return &Pool{
		size:  size,
		slots: make(chan struct{}, size),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	p.waiting++
	p.mu.Unlock()

	select {
	case p.slots <- struct{}{}:
		p.mu.Lock()
		p.waiting--
		p.running++
		p.peak = max(p.peak, p.running)
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		p.waiting--
		p.mu.Unlock()
		return fmt.Errorf("waiting for a worker slot: %w", ctx.Err())
	}
}

// Release frees the slot taken by a successful Acquire.
func (p *Pool) Release() {
	p.mu.Lock()
	p.running--
	p.finished++
	p.mu.Unlock()
	<-p.slots
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Size:     p.size,
		Running:  p.running,
		Waiting:  p.waiting,
		Peak:     p.peak,
		Finished: p.finished,
	}
}
