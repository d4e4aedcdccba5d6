package attendance

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

const queueBuffer = 64

// Resolver produces a code from a scanner, e.g. by decoding a camera frame.
type Resolver func(ctx context.Context) (string, error)

// ScanResult is the settled outcome of a queued submission.
type ScanResult struct {
	Outcome models.ScanOutcome
	Err     error
}

type scanJob struct {
	resolved <-chan resolution
	ticket   *Ticket
}

type resolution struct {
	code string
	err  error
}

const (
	ticketPending int32 = iota
	ticketClaimed
	ticketWithdrawn
)

// Ticket tracks one queued submission. The worker claims it right before
// touching the tracker; a caller whose context ends first withdraws it, and a
// withdrawn ticket is never applied.
type Ticket struct {
	ctx   context.Context
	out   chan ScanResult
	state atomic.Int32
}

func newTicket(ctx context.Context) *Ticket {
	return &Ticket{ctx: ctx, out: make(chan ScanResult, 1)}
}

func settledTicket(ctx context.Context, err error) *Ticket {
	t := newTicket(ctx)
	t.state.Store(ticketClaimed)
	t.out <- ScanResult{Err: err}
	return t
}

// Done yields the result once the worker settles the ticket.
func (t *Ticket) Done() <-chan ScanResult {
	return t.out
}

// Wait blocks until the result is ready or the submitting context ends. When
// the context ends before the worker claimed the scan, the scan is withdrawn
// and the context error is returned. A scan the worker already claimed is
// reported as applied.
func (t *Ticket) Wait() ScanResult {
	select {
	case res := <-t.out:
		return res
	case <-t.ctx.Done():
	}
	if t.state.CompareAndSwap(ticketPending, ticketWithdrawn) {
		return ScanResult{Err: t.ctx.Err()}
	}
	return <-t.out
}

// ScanQueue applies scan submissions to the tracker in submission order.
// Resolvers run concurrently; the single worker waits for each one in turn,
// so a slow decode never lets a later scan overtake it.
type ScanQueue struct {
	tracker *Tracker
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	jobs    chan scanJob
	done    chan struct{}
}

// NewScanQueue starts the worker goroutine. Call Stop to release it.
func NewScanQueue(tracker *Tracker, logger *zap.Logger) *ScanQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &ScanQueue{
		tracker: tracker,
		logger:  logger,
		jobs:    make(chan scanJob, queueBuffer),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit enqueues a scan. If ctx ends while the queue is full the scan is
// dropped and the ticket settles with the context error.
func (q *ScanQueue) Submit(ctx context.Context, resolve Resolver) *Ticket {
	if err := ctx.Err(); err != nil {
		return settledTicket(ctx, err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		return settledTicket(ctx, ErrQueueStopped)
	}

	ticket := newTicket(ctx)
	resolved := make(chan resolution, 1)
	go func() {
		code, err := resolve(ctx)
		resolved <- resolution{code: code, err: err}
	}()

	select {
	case q.jobs <- scanJob{resolved: resolved, ticket: ticket}:
		return ticket
	case <-ctx.Done():
		return settledTicket(ctx, ctx.Err())
	}
}

// SubmitCode enqueues an already decoded code.
func (q *ScanQueue) SubmitCode(ctx context.Context, code string) *Ticket {
	return q.Submit(ctx, func(context.Context) (string, error) { return code, nil })
}

// Consume records every code yielded by codes, one at a time, reporting each
// result to onResult. It stops when codes is exhausted, ctx is done, or the
// session is no longer open.
func (q *ScanQueue) Consume(ctx context.Context, codes iter.Seq[string], onResult func(ScanResult)) error {
	for code := range codes {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := q.SubmitCode(ctx, code).Wait()
		if err := ctx.Err(); err != nil && errors.Is(res.Err, err) {
			return err
		}

		if onResult != nil {
			onResult(res)
		}

		var serr *StateError
		if errors.As(res.Err, &serr) || errors.Is(res.Err, ErrQueueStopped) {
			return res.Err
		}
	}
	return nil
}

// Stop drains pending submissions and stops the worker.
func (q *ScanQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	<-q.done
}

func (q *ScanQueue) run() {
	defer close(q.done)

	for job := range q.jobs {
		ticket := job.ticket

		var res resolution
		select {
		case res = <-job.resolved:
		case <-ticket.ctx.Done():
		}

		if ticket.ctx.Err() != nil {
			ticket.state.CompareAndSwap(ticketPending, ticketWithdrawn)
		}
		if !ticket.state.CompareAndSwap(ticketPending, ticketClaimed) {
			q.logger.Debug("scan withdrawn before it was applied", zap.Error(ticket.ctx.Err()))
			ticket.out <- ScanResult{Err: ticket.ctx.Err()}
			continue
		}

		if res.err != nil {
			q.logger.Warn("scan could not be resolved", zap.Error(res.err))
			ticket.out <- ScanResult{Err: fmt.Errorf("%w: %v", ErrUnreadableCode, res.err)}
			continue
		}

		outcome, err := q.tracker.RecordScan(res.code)
		ticket.out <- ScanResult{Outcome: outcome, Err: err}
	}
}
