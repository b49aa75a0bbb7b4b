package invoice

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one exporter is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ExporterPool hands out Exporters for parallel batches. Each Exporter owns
// its own browser. Exporters are created lazily on first acquire.
type ExporterPool struct {
	size      int
	factory   func() (*Exporter, error)
	exporters []*Exporter
	idle      chan *Exporter
	mu        sync.Mutex
	created   int
	closed    bool
}

// NewExporterPool creates a pool of up to n exporters built by factory.
// A nil factory builds exporters with NewExporter and no options.
func NewExporterPool(n int, factory func() (*Exporter, error)) *ExporterPool {
	if n < 1 {
		n = 1
	}
	if factory == nil {
		factory = func() (*Exporter, error) { return NewExporter() }
	}

	return &ExporterPool{
		size:      n,
		factory:   factory,
		exporters: make([]*Exporter, 0, n),
		idle:      make(chan *Exporter, n),
	}
}

// Acquire gets an idle exporter, creating one if the pool is not full.
// Blocks until one is released, ctx is done, or the pool is closed.
func (p *ExporterPool) Acquire(ctx context.Context) (*Exporter, error) {
	select {
	case e, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return e, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		// Create outside the lock
		e, err := p.factory()

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.created--
			return nil, err
		}
		if p.closed {
			_ = e.Close()
			return nil, ErrPoolClosed
		}
		p.exporters = append(p.exporters, e)
		return e, nil
	}
	p.mu.Unlock()

	select {
	case e, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an exporter to the pool. After Close it is a no-op.
func (p *ExporterPool) Release(e *Exporter) {
	if e == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// The buffer holds every exporter the pool can create, so this never blocks.
	select {
	case p.idle <- e:
	default:
	}
}

// Close shuts down every exporter the pool created.
// Returns an aggregated error if several fail to close.
func (p *ExporterPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	exporters := p.exporters
	p.mu.Unlock()

	var errs []error
	for _, e := range exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *ExporterPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
