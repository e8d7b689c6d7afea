package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"sewing-planner/internal/notify"
	"sewing-planner/internal/project"
)

var ErrClosed = errors.New("reconcile: engine closed")

// resultBuffer only smooths hand-off; Request never waits on it.
const resultBuffer = 64

// Result reports how one effect's commit went. It is produced by the commit
// worker and must be handed to Resolve on the goroutine that owns the
// aggregate.
type Result struct {
	Seq uint64
	Op  notify.Op
	Err error
}

// Event is delivered to subscribers after an effect is settled or rolled
// back, and for failures passed to Report.
type Event struct {
	Seq       uint64
	Op        notify.Op
	Err       error
	Committed bool
}

type job struct {
	seq    uint64
	effect project.Effect
}

// Engine applies effects to an aggregate optimistically and commits them
// on a single worker goroutine in request order. A failed commit is not
// retried: its effect is reverted and the failure shown on the notification
// center.
//
// Request, Resolve, Settle, Report and Close must be called from the
// goroutine that owns the aggregate.
type Engine struct {
	agg    *project.Aggregate
	p      project.Persister
	center *notify.Center
	ids    *project.IDMap
	log    zerolog.Logger

	mu       sync.Mutex
	queue    []job
	stopping bool
	wake     chan struct{}
	results  chan Result

	seq     uint64
	pending map[uint64]project.Effect
	subs    []func(Event)
	closed  bool

	closeOnce sync.Once
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithIDMap shares an id map, e.g. between an engine and a test.
func WithIDMap(m *project.IDMap) Option { return func(e *Engine) { e.ids = m } }

// New starts the commit worker. Close stops it.
func New(agg *project.Aggregate, p project.Persister, center *notify.Center, opts ...Option) *Engine {
	e := &Engine{
		agg:     agg,
		p:       p,
		center:  center,
		ids:     project.NewIDMap(),
		log:     zerolog.Nop(),
		wake:    make(chan struct{}, 1),
		results: make(chan Result, resultBuffer),
		pending: map[uint64]project.Effect{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.center == nil {
		e.center = notify.NewCenter()
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	defer close(e.results)
	// Durable writes are not cancellable once submitted.
	ctx := context.Background()
	for {
		j, ok := e.next()
		if !ok {
			return
		}
		err := j.effect.Commit(ctx, e.p, e.ids)
		e.results <- Result{Seq: j.seq, Op: j.effect.Op(), Err: err}
	}
}

// next blocks until a job is queued. It reports false once the engine is
// stopping and the queue is empty.
func (e *Engine) next() (job, bool) {
	for {
		e.mu.Lock()
		if len(e.queue) > 0 {
			j := e.queue[0]
			e.queue[0] = job{}
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return j, true
		}
		stopping := e.stopping
		e.mu.Unlock()
		if stopping {
			return job{}, false
		}
		<-e.wake
	}
}

func (e *Engine) enqueue(j job) {
	e.mu.Lock()
	e.queue = append(e.queue, j)
	e.mu.Unlock()
	e.poke()
}

func (e *Engine) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Request applies eff to the aggregate and queues its commit without
// waiting, however many commits are outstanding. A nil effect is ignored.
// If Apply fails nothing is queued and the error is returned.
func (e *Engine) Request(eff project.Effect) (uint64, error) {
	if eff == nil {
		return 0, nil
	}
	if e.closed {
		return 0, ErrClosed
	}
	if err := eff.Apply(e.agg); err != nil {
		return 0, err
	}
	e.seq++
	seq := e.seq
	e.pending[seq] = eff
	e.enqueue(job{seq: seq, effect: eff})
	return seq, nil
}

// Results delivers commit outcomes in request order. It is closed after
// Close once the worker has drained.
func (e *Engine) Results() <-chan Result { return e.results }

// Resolve settles or rolls back the effect a result belongs to. Results for
// unknown sequence numbers are ignored.
func (e *Engine) Resolve(r Result) {
	eff, ok := e.pending[r.Seq]
	if !ok {
		return
	}
	delete(e.pending, r.Seq)

	if r.Err == nil {
		eff.Settle(e.agg)
		e.log.Debug().Uint64("seq", r.Seq).Str("op", string(r.Op)).Msg("effect committed")
		e.publish(Event{Seq: r.Seq, Op: r.Op, Committed: true})
		return
	}

	eff.Revert(e.agg)
	e.log.Warn().Err(r.Err).Uint64("seq", r.Seq).Str("op", string(r.Op)).Msg("effect rolled back")
	e.center.Show(r.Op, r.Err)
	e.publish(Event{Seq: r.Seq, Op: r.Op, Err: r.Err})
}

// Settle resolves results until no effect is pending.
func (e *Engine) Settle(ctx context.Context) error {
	for len(e.pending) > 0 {
		select {
		case r, ok := <-e.results:
			if !ok {
				return ErrClosed
			}
			e.Resolve(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Pending returns the number of effects applied but not yet resolved.
func (e *Engine) Pending() int { return len(e.pending) }

// Subscribe registers fn for every Event. fn runs on the resolving goroutine.
func (e *Engine) Subscribe(fn func(Event)) {
	if fn != nil {
		e.subs = append(e.subs, fn)
	}
}

// Report surfaces a failure that has no effect to roll back, such as a
// failed image load.
func (e *Engine) Report(op notify.Op, err error) {
	if err == nil {
		return
	}
	e.log.Warn().Err(err).Str("op", string(op)).Msg("operation failed")
	e.center.Show(op, err)
	e.publish(Event{Op: op, Err: err})
}

func (e *Engine) Center() *notify.Center { return e.center }

func (e *Engine) IDs() *project.IDMap { return e.ids }

// Close stops accepting effects, waits for queued commits, and resolves
// them.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.closed = true
		e.mu.Lock()
		e.stopping = true
		e.mu.Unlock()
		e.poke()
	})
	for r := range e.results {
		e.Resolve(r)
	}
}

func (e *Engine) publish(ev Event) {
	for _, fn := range e.subs {
		fn(ev)
	}
}
