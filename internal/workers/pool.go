// Package workers runs deal translations off the webhook request path. The
// webhook controller acknowledges the CRM immediately and hands the deal to
// a fixed-size pool over a bounded queue; when the queue is full the caller
// gets a rate-limit error instead of an unbounded backlog.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/crmbridge/crmbridge-backend/internal/translator"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/metrics"
)

const jobTimeout = 2 * time.Minute

type job struct {
	dealID     string
	event      string
	enqueuedAt time.Time
}

// Pool is a fixed set of workers draining a bounded translation queue.
type Pool struct {
	translator translator.Service
	logger     *logger.Logger
	metrics    *metrics.JobMetrics
	workers    int

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewPool builds a pool with the given worker count and queue depth.
func NewPool(translatorSvc translator.Service, logg *logger.Logger, jobMetrics *metrics.JobMetrics, workers, queueDepth int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = 1
	}
	return &Pool{
		translator: translatorSvc,
		logger:     logg,
		metrics:    jobMetrics,
		workers:    workers,
		jobs:       make(chan job, queueDepth),
	}
}

// Start launches the workers. They drain the queue until Stop closes it;
// ctx only carries the request-scoped logger fields into the jobs.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Enqueue queues one deal for translation. A full queue is reported as a
// rate-limit error so the webhook can tell the CRM to retry later. The send
// happens under the mutex so a concurrent Stop cannot close the channel
// between the closed check and the send.
func (p *Pool) Enqueue(dealID, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return pkgerrors.New(pkgerrors.CodeInternal, "translation pool is stopped")
	}

	select {
	case p.jobs <- job{dealID: dealID, event: event, enqueuedAt: time.Now()}:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeRateLimit, "translation queue is full")
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Depth reports how many jobs are waiting.
func (p *Pool) Depth() int {
	return len(p.jobs)
}

// run drains the queue until Stop closes it. Shutdown cancelling the outer
// context must not abandon accepted jobs, so the loop keeps reading and each
// job gets its own timeout detached from the caller's cancellation.
func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for item := range p.jobs {
		p.process(ctx, item)
	}
}

func (p *Pool) process(ctx context.Context, item job) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	if p.logger != nil {
		jobCtx = p.logger.WithDealID(jobCtx, item.dealID)
		jobCtx = p.logger.WithField(jobCtx, "event", item.event)
	}

	start := time.Now()
	_, err := p.translator.TranslateAndSubmit(jobCtx, item.dealID)
	if p.metrics != nil {
		p.metrics.ObserveDuration("deal_translation", time.Since(start))
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.IncFailure("deal_translation")
		}
		// The translator already recorded the failure; the pool only notes
		// that the job is done.
		if p.logger != nil {
			p.logger.Warn(jobCtx, "deal translation job failed")
		}
		return
	}
	if p.metrics != nil {
		p.metrics.IncSuccess("deal_translation")
	}
}
