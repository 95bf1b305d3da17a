// Package batch groups deferrable model invocations that share a task type and
// model, and dispatches each group as a sequential burst.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
	"github.com/cd3331/pm-document-intelligence-sub000/internal/observability"
)

// Config bounds a batch by size and by time, whichever triggers first.
type Config struct {
	MaxSize int
	Window  time.Duration

	// LatencyCeiling is the longest a request waits for its batch before it is
	// dispatched on its own.
	LatencyCeiling time.Duration
}

// DefaultConfig returns conservative batching bounds.
func DefaultConfig() Config {
	return Config{
		MaxSize:        8,
		Window:         50 * time.Millisecond,
		LatencyCeiling: 2 * time.Second,
	}
}

// Request is one queued invocation. Callback receives the outcome exactly once
// unless the request is claimed by its submitter first.
type Request struct {
	Ctx      context.Context
	Call     domain.Invocation
	Callback func(*domain.ModelResponse, error)

	claimed atomic.Bool
}

// claim marks the request as taken. Only the first caller wins.
func (r *Request) claim() bool {
	return r.claimed.CompareAndSwap(false, true)
}

type pendingBatch struct {
	requests []*Request
	timer    *time.Timer
}

// Processor holds the pending requests per batch key.
type Processor struct {
	cfg Config

	mu      sync.Mutex
	pending map[domain.BatchKey]*pendingBatch

	dispatched atomic.Int64
	fallbacks  atomic.Int64
}

var _ domain.Batcher = (*Processor)(nil)

// NewProcessor creates a batch processor (DI constructor).
func NewProcessor(cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.LatencyCeiling <= 0 {
		cfg.LatencyCeiling = def.LatencyCeiling
	}

	return &Processor{
		cfg:     cfg,
		pending: make(map[domain.BatchKey]*pendingBatch),
	}
}

// Add enqueues a request and reports whether its batch reached the size bound.
// The first request of a batch arms the window timer, which drains and
// dispatches the batch on expiry.
func (p *Processor) Add(key domain.BatchKey, req *Request) bool {
	_, full := p.add(key, req)
	return full
}

func (p *Processor) add(key domain.BatchKey, req *Request) (*pendingBatch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.pending[key]
	if !ok {
		b = &pendingBatch{}
		b.timer = time.AfterFunc(p.cfg.Window, func() {
			p.flushBatch(key, b)
		})
		p.pending[key] = b
	}
	b.requests = append(b.requests, req)

	return b, len(b.requests) >= p.cfg.MaxSize
}

// Drain removes and returns the pending requests for key.
func (p *Processor) Drain(key domain.BatchKey) []*Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.pending[key]
	if !ok {
		return nil
	}
	delete(p.pending, key)
	b.timer.Stop()

	return b.requests
}

// Pending returns the number of queued requests for key.
func (p *Processor) Pending(key domain.BatchKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.pending[key]; ok {
		return len(b.requests)
	}
	return 0
}

// FlushAll drains and dispatches every pending batch. Used on shutdown.
func (p *Processor) FlushAll() {
	p.mu.Lock()
	keys := make([]domain.BatchKey, 0, len(p.pending))
	for k := range p.pending {
		keys = append(keys, k)
	}
	p.mu.Unlock()

	for _, k := range keys {
		p.flush(k)
	}
}

func (p *Processor) flush(key domain.BatchKey) {
	p.dispatch(key, p.Drain(key))
}

// flushBatch dispatches b only if it is still the pending batch for key. A
// trigger that fires after b was drained leaves the next batch alone.
func (p *Processor) flushBatch(key domain.BatchKey, b *pendingBatch) {
	p.mu.Lock()
	if p.pending[key] != b {
		p.mu.Unlock()
		return
	}
	delete(p.pending, key)
	b.timer.Stop()
	p.mu.Unlock()

	p.dispatch(key, b.requests)
}

// dispatch runs a drained batch outside the lock. Requests already claimed by
// their submitter or abandoned by their caller are skipped.
func (p *Processor) dispatch(key domain.BatchKey, reqs []*Request) {
	if len(reqs) == 0 {
		return
	}

	observability.FromContext(context.Background()).Debug("dispatching batch",
		observability.String("batch_key", key.String()),
		observability.Int("size", len(reqs)))

	for _, req := range reqs {
		if !req.claim() {
			continue
		}
		if err := req.Ctx.Err(); err != nil {
			req.Callback(nil, err)
			continue
		}

		p.dispatched.Add(1)
		resp, err := req.Call(req.Ctx)
		req.Callback(resp, err)
	}
}

type outcome struct {
	resp *domain.ModelResponse
	err  error
}

// Submit enqueues call under key and waits for its result. If the batch has
// not reached the call within the latency ceiling, the call runs individually.
func (p *Processor) Submit(ctx context.Context, key domain.BatchKey, call domain.Invocation) (*domain.ModelResponse, error) {
	done := make(chan outcome, 1)
	req := &Request{
		Ctx:  ctx,
		Call: call,
		Callback: func(resp *domain.ModelResponse, err error) {
			done <- outcome{resp: resp, err: err}
		},
	}

	if b, full := p.add(key, req); full {
		go p.flushBatch(key, b)
	}

	ceiling := time.NewTimer(p.cfg.LatencyCeiling)
	defer ceiling.Stop()

	select {
	case out := <-done:
		return out.resp, out.err

	case <-ctx.Done():
		req.claim()
		return nil, ctx.Err()

	case <-ceiling.C:
		if req.claim() {
			p.fallbacks.Add(1)
			observability.FromContext(ctx).Info("batch latency ceiling reached, dispatching individually",
				observability.String("batch_key", key.String()))
			return call(ctx)
		}
	}

	// Already running inside a batch dispatch.
	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats reports how many invocations ran inside batches and how many fell back
// to individual dispatch.
func (p *Processor) Stats() (dispatched, fallbacks int64) {
	return p.dispatched.Load(), p.fallbacks.Load()
}
