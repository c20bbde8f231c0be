package session

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/ctagard/lodeb/internal/symbols"
)

// ResolveFunc computes target metadata; it must honour ctx
type ResolveFunc func(ctx context.Context) (*symbols.Table, error)

// MetadataResult is the single outcome of one resolution
type MetadataResult struct {
	Generation uint64
	Table      *symbols.Table
	Err        error
}

type metadataFuture struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	result MetadataResult
}

// MetadataResolver runs at most one metadata resolution per target load.
// Starting a new one cancels the previous; a superseded resolution writes only
// into its own future, which nobody reads any more, so the last started wins.
type MetadataResolver struct {
	gen *atomic.Uint64

	mu      sync.Mutex
	current *metadataFuture
}

// NewMetadataResolver returns an idle resolver
func NewMetadataResolver() *MetadataResolver {
	return &MetadataResolver{gen: atomic.NewUint64(0)}
}

// Start cancels any resolution in flight and runs fn in the background.
// It returns the generation of the new resolution.
func (r *MetadataResolver) Start(parent context.Context, fn ResolveFunc) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	f := &metadataFuture{
		gen:    r.gen.Inc(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.current = f

	go func() {
		table, err := fn(ctx)
		f.result = MetadataResult{Generation: f.gen, Table: table, Err: err}
		close(f.done)
	}()

	return f.gen
}

// Poll returns the outcome of the current resolution once it has finished,
// exactly once. It never blocks.
func (r *MetadataResolver) Poll() (MetadataResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.current
	if f == nil {
		return MetadataResult{}, false
	}
	select {
	case <-f.done:
		f.cancel()
		r.current = nil
		return f.result, true
	default:
		return MetadataResult{}, false
	}
}

// Wait blocks until the current resolution finishes, then consumes it like
// Poll. It returns false when nothing is in flight or it was superseded.
func (r *MetadataResolver) Wait(ctx context.Context) (MetadataResult, bool, error) {
	r.mu.Lock()
	f := r.current
	r.mu.Unlock()
	if f == nil {
		return MetadataResult{}, false, nil
	}

	select {
	case <-f.done:
	case <-ctx.Done():
		return MetadataResult{}, false, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != f {
		return MetadataResult{}, false, nil
	}
	f.cancel()
	r.current = nil
	return f.result, true, nil
}

// Cancel abandons the resolution in flight, if any
func (r *MetadataResolver) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.cancel()
		r.current = nil
	}
}

// Pending reports whether a resolution has been started and not consumed
func (r *MetadataResolver) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Generation returns the number of resolutions started so far
func (r *MetadataResolver) Generation() uint64 {
	return r.gen.Load()
}
