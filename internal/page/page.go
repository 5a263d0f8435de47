// Package page holds the state of the follower telemetry page: the polling
// cycle bookkeeping, the accumulated history, the status flag and the raw
// data toggle. Rendering lives elsewhere; this package only decides what
// state a finished fetch cycle turns into.
package page

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/keilerkonzept/follower-dashboard/internal/history"
	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
)

// Status is the outcome of the most recent cycle. It is overwritten every
// cycle and carries no memory of earlier ones.
type Status int

const (
	StatusIdle Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Fetcher performs one fetch cycle against the telemetry service.
type Fetcher interface {
	FetchCycle(ctx context.Context) (telemetry.Cycle, error)
}

// Result is a finished fetch cycle, tagged with the sequence number handed
// out by BeginCycle.
type Result struct {
	Seq      uint64
	Cycle    telemetry.Cycle
	Err      error
	Started  time.Time
	Finished time.Time
}

type Options struct {
	Retention         int
	DiagnosticsWindow int
	DiagnosticsTopK   int
	LatencyWindow     int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Counters tally cycles over the life of the page.
type Counters struct {
	Started   uint64
	Succeeded uint64
	Failed    uint64
	Skipped   uint64
	Discarded uint64
}

type Page struct {
	fetcher Fetcher
	store   *history.Store
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	status   Status
	lastErr  error
	seq      uint64
	inFlight bool
	closed   bool
	showRaw  bool
	counters Counters

	diag    *diagnostics
	metrics *cycleMetrics
}

// New mounts a page. All state lives until Close.
func New(f Fetcher, opts Options) *Page {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Page{
		fetcher: f,
		store:   history.New(opts.Retention),
		now:     opts.Now,
		ctx:     ctx,
		cancel:  cancel,
		diag:    newDiagnostics(opts.DiagnosticsTopK, opts.DiagnosticsWindow),
		metrics: newCycleMetrics(opts.LatencyWindow),
	}
}

func (p *Page) Store() *history.Store { return p.store }

// BeginCycle is called on every timer tick. It refuses to start a cycle on a
// closed page or while the previous cycle is still in flight, so cycles never
// overlap. On success the status is reset to idle.
func (p *Page) BeginCycle() (seq uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, false
	}
	if p.inFlight {
		p.counters.Skipped++
		return 0, false
	}
	p.seq++
	p.inFlight = true
	p.status = StatusIdle
	p.counters.Started++
	return p.seq, true
}

// Fetch runs the fetch for cycle seq. It blocks until both requests are done
// or the page is closed.
func (p *Page) Fetch(seq uint64) Result {
	r := Result{Seq: seq, Started: p.now()}
	r.Cycle, r.Err = p.fetcher.FetchCycle(p.ctx)
	r.Finished = p.now()
	return r
}

// CompleteCycle applies a finished cycle. Results from a closed page or for
// a sequence number other than the current one are dropped. It reports
// whether r changed the page state.
func (p *Page) CompleteCycle(r Result) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.inFlight || r.Seq != p.seq {
		p.counters.Discarded++
		return false
	}
	p.inFlight = false
	p.metrics.observe(r.Finished.Sub(r.Started), r.Err == nil, r.Finished)

	if r.Err != nil {
		p.status = StatusError
		p.lastErr = r.Err
		p.counters.Failed++
		p.diag.observe(telemetry.Reasons(r.Err))
		log.Printf("poll: cycle %d failed: %v", r.Seq, r.Err)
		return true
	}

	p.store.Append(r.Seq, r.Cycle, r.Finished)
	p.status = StatusSuccess
	p.lastErr = nil
	p.counters.Succeeded++
	p.diag.observe(nil)
	return true
}

// Close tears the page down: requests in flight are canceled and no later
// result is applied.
func (p *Page) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) InFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

func (p *Page) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LastError is the error of the latest cycle, nil unless Status is
// StatusError.
func (p *Page) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Page) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// ToggleRaw flips the raw data toggle and returns the new value. It has no
// effect on polling or accumulation.
func (p *Page) ToggleRaw() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showRaw = !p.showRaw
	return p.showRaw
}

func (p *Page) ShowRaw() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.showRaw
}

// Loading is true until the first successful cycle.
func (p *Page) Loading() bool {
	return p.store.Empty()
}

// TopFailures returns the most frequent failure reasons over the recent
// diagnostics window, heaviest first.
func (p *Page) TopFailures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.diag.top()
}

func (p *Page) Latency() LatencyStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics.snapshot()
}
