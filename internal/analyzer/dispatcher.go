package analyzer

import (
	"context"
	"errors"
	"sync"

	"github.com/dkovalev/logsentry-bot/internal/filter"
)

// ErrQueueFull is returned by Submit when the job queue is saturated.
// Callers report it instead of blocking the transport loop.
var ErrQueueFull = errors.New("analysis queue is full")

// ErrClosed is returned by Submit once Close has been called.
var ErrClosed = errors.New("dispatcher is closed")

// Request describes one analysis pass. Active is a snapshot taken by
// the caller before submitting, so a filter toggle mid-scan cannot mix
// two configurations.
type Request struct {
	Path   string
	Window int
	Active []filter.Rule
}

// Response carries the outcome of one dispatched analysis.
type Response struct {
	Result *Result
	Err    error
}

type job struct {
	ctx context.Context
	req Request
	out chan Response
}

// Dispatcher runs analyses on a fixed pool of workers. File scanning
// is the only slow operation in the process; dispatching it here keeps
// one long scan from blocking unrelated transport requests.
type Dispatcher struct {
	jobs      chan job
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts workers goroutines consuming a queue of the
// given capacity.
func NewDispatcher(workers, queue int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}

	d := &Dispatcher{jobs: make(chan job, queue)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		if err := j.ctx.Err(); err != nil {
			j.out <- Response{Err: err}
			continue
		}
		result, err := Analyze(j.req.Path, j.req.Window, j.req.Active)
		j.out <- Response{Result: result, Err: err}
	}
}

// Submit enqueues a request without blocking and returns the channel
// the caller awaits. The channel is buffered, so an abandoned caller
// never wedges a worker.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (<-chan Response, error) {
	// The mutex orders Submit against Close: a send may not race a
	// close of the jobs channel, or late callers panic the process
	// during shutdown.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	out := make(chan Response, 1)
	select {
	case d.jobs <- job{ctx: ctx, req: req, out: out}:
		return out, nil
	default:
		return nil, ErrQueueFull
	}
}

// Close stops accepting work and waits for in-flight analyses to
// finish. Submit calls after Close return ErrClosed.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
	})
	d.wg.Wait()
}
