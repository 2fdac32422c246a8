// Package scheduler runs the fixed worker pool that drains the event
// queue and drives events through their lifecycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gitaiops/internal"
)

// Pool is a fixed-size set of workers pulling from the priority queue.
// Priority ordering holds at dequeue time only; completion order across
// workers is unordered. A single event is never processed concurrently
// with itself: between attempts it is either sleeping out its backoff or
// back in the queue.
type Pool struct {
	queue      *internal.Queue
	dispatcher Dispatcher
	processors map[internal.Kind]Processor

	workers     int
	maxAttempts int
	baseDelay   time.Duration
	grace       time.Duration
	logger      Logger
	listeners   []Listener

	running   atomic.Bool
	requeueWG sync.WaitGroup
}

func New(queue *internal.Queue, dispatcher Dispatcher, opts ...Option) *Pool {
	p := &Pool{
		queue:       queue,
		dispatcher:  dispatcher,
		processors:  make(map[internal.Kind]Processor),
		workers:     5,
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		grace:       10 * time.Second,
		logger:      defaultLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register installs a processor for its kind.
func (p *Pool) Register(proc Processor) {
	if proc != nil {
		p.processors[proc.Kind()] = proc
	}
}

// WorkerCount reports the configured pool size.
func (p *Pool) WorkerCount() int { return p.workers }

// Running reports whether the pool is accepting work.
func (p *Pool) Running() bool { return p.running.Load() }

// Run blocks until ctx is cancelled and the pool has drained. Cancelling
// ctx stops new dequeues immediately; in-flight attempts keep a separate
// processing context that survives for the grace period.
func (p *Pool) Run(ctx context.Context) error {
	if len(p.processors) == 0 {
		return errors.New("at least one processor is required")
	}

	p.running.Store(true)
	defer p.running.Store(false)
	p.notifyStart(ctx)
	defer p.notifyExit(ctx)

	procCtx, cancelProc := context.WithCancel(context.Background())
	defer cancelProc()
	stopShutdown := context.AfterFunc(ctx, func() {
		p.queue.Shutdown()
		time.AfterFunc(p.grace, cancelProc)
	})
	defer stopShutdown()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, procCtx, id)
		}(i)
	}
	wg.Wait()
	p.requeueWG.Wait()
	return nil
}

func (p *Pool) workerLoop(ctx, procCtx context.Context, id int) {
	for {
		evt, err := p.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		p.process(procCtx, evt)
	}
}

// process runs a single attempt and converts its result into a status
// transition. Errors never escape: a failing event must not take a
// worker down with it.
func (p *Pool) process(ctx context.Context, evt *internal.Event) {
	evt.Status = internal.StatusInProgress
	evt.Attempts++
	evt.LastAttemptAt = time.Now().UTC()
	p.notifyEventStart(ctx, evt)

	proc, ok := p.processors[evt.Kind]
	if !ok {
		p.abandon(ctx, evt, fmt.Errorf("no processor registered for kind %s", evt.Kind))
		return
	}

	outcome, err := p.safeProcess(ctx, proc, evt)
	if err == nil {
		if deliverErr := p.dispatcher.Deliver(ctx, evt, outcome); deliverErr != nil {
			// Delivery keeps its own retry budget; a lost delivery is
			// recorded by the dispatcher, not charged to the event.
			p.logger.Printf("delivery failed event=%s: %v", evt.ID, deliverErr)
		}
		evt.Status = internal.StatusSucceeded
		evt.LastError = ""
		internal.IncProcessed(evt.Kind)
		p.notifyEventFinish(ctx, evt, nil)
		return
	}

	p.notifyError(ctx, evt, err)
	if !internal.Retryable(err) {
		p.abandon(ctx, evt, err)
		return
	}

	internal.IncFailed(evt.Kind)
	evt.LastError = err.Error()
	if evt.Attempts >= p.maxAttempts {
		p.abandon(ctx, evt, fmt.Errorf("attempts exhausted: %w", err))
		return
	}

	evt.Status = internal.StatusFailed
	p.logger.Printf("event %s attempt %d/%d failed, retrying: %v", evt.ID, evt.Attempts, p.maxAttempts, err)
	p.notifyEventFinish(ctx, evt, err)
	p.requeueAfter(ctx, evt, internal.Delay(evt.Attempts, p.baseDelay))
}

// requeueAfter puts the event back in the queue once its backoff has
// elapsed. The event stays out of every worker's reach until then, which
// keeps its attempts strictly sequential.
func (p *Pool) requeueAfter(ctx context.Context, evt *internal.Event, delay time.Duration) {
	p.requeueWG.Add(1)
	go func() {
		defer p.requeueWG.Done()
		if err := internal.Sleep(ctx, delay); err != nil {
			p.abandon(ctx, evt, errors.New("shutdown before retry"))
			return
		}
		if err := p.queue.Enqueue(evt); err != nil {
			p.abandon(ctx, evt, fmt.Errorf("requeue failed: %w", err))
		}
	}()
}

func (p *Pool) abandon(ctx context.Context, evt *internal.Event, err error) {
	evt.Status = internal.StatusAbandoned
	if err != nil {
		evt.LastError = err.Error()
	}
	internal.IncAbandoned(evt.Kind)
	p.logger.Printf("event abandoned id=%s kind=%s attempts=%d: %v", evt.ID, evt.Kind, evt.Attempts, err)
	p.dispatcher.ReportAbandoned(ctx, evt)
	p.notifyEventFinish(ctx, evt, err)
}

// safeProcess shields the pool from panicking processors; a panic is
// logged with full context and treated as a transient failure.
func (p *Pool) safeProcess(ctx context.Context, proc Processor, evt *internal.Event) (outcome *internal.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("processor panic event=%s kind=%s attempt=%d: %v", evt.ID, evt.Kind, evt.Attempts, r)
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return proc.Process(ctx, evt)
}

func (p *Pool) notifyStart(ctx context.Context) {
	for _, l := range p.listeners {
		if l.OnStart != nil {
			l.OnStart(ctx)
		}
	}
}

func (p *Pool) notifyExit(ctx context.Context) {
	for _, l := range p.listeners {
		if l.OnExit != nil {
			l.OnExit(ctx)
		}
	}
}

func (p *Pool) notifyEventStart(ctx context.Context, evt *internal.Event) {
	for _, l := range p.listeners {
		if l.OnEventStart != nil {
			l.OnEventStart(ctx, evt)
		}
	}
}

func (p *Pool) notifyEventFinish(ctx context.Context, evt *internal.Event, err error) {
	for _, l := range p.listeners {
		if l.OnEventFinish != nil {
			l.OnEventFinish(ctx, evt, err)
		}
	}
}

func (p *Pool) notifyError(ctx context.Context, evt *internal.Event, err error) {
	for _, l := range p.listeners {
		if l.OnError != nil {
			l.OnError(ctx, evt, err)
		}
	}
}
