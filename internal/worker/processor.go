package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"webpptx/internal/config"
	"webpptx/internal/deck"
	"webpptx/internal/models"
	"webpptx/internal/queue"
	"webpptx/internal/store"
	"webpptx/internal/telemetry"
)

// Handler executes one job of a given kind and returns the path of the
// finished result archive.
type Handler func(ctx context.Context, job models.Job) (string, error)

// Mirror replicates a finished archive somewhere else. Optional.
type Mirror interface {
	Upload(ctx context.Context, jobID, archivePath string) error
}

// Processor drives the bounded worker pool. Workers pull job identities
// from the queue in submission order; each job is claimed by exactly one
// worker and driven queued -> running -> done|failed.
type Processor struct {
	cfg      config.Config
	queue    *queue.RedisQueue
	store    *store.Store
	handlers map[string]Handler
	mirror   Mirror
}

func NewProcessor(cfg config.Config, q *queue.RedisQueue, st *store.Store) *Processor {
	return &Processor{
		cfg:      cfg,
		queue:    q,
		store:    st,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to a job kind.
func (p *Processor) RegisterHandler(kind string, handler Handler) {
	if kind == "" || handler == nil {
		return
	}
	p.handlers[kind] = handler
}

// SetMirror installs an optional archive mirror.
func (p *Processor) SetMirror(m Mirror) {
	p.mirror = m
}

// Run starts the worker pool and blocks until context cancellation.
func (p *Processor) Run(ctx context.Context) error {
	n := p.cfg.WorkerCount
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (p *Processor) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := p.queue.Dequeue(ctx)
		if err != nil || jobID == "" {
			if err != nil {
				log.Printf("dequeue: %v", err)
			}
			p.idle(ctx)
			continue
		}
		if depth, err := p.queue.Depth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}

		job, err := p.store.MarkRunning(jobID)
		if err != nil {
			// Unknown or already claimed; nothing for this worker to do.
			log.Printf("claim %s: %v", jobID, err)
			continue
		}

		telemetry.InFlightGauge.Inc()
		p.execute(ctx, job)
		telemetry.InFlightGauge.Dec()
	}
}

func (p *Processor) execute(ctx context.Context, job models.Job) {
	handler, ok := p.handlers[job.Kind]
	if !ok {
		_ = p.store.MarkFailed(job.ID, "no handler for kind "+job.Kind)
		telemetry.JobsFailed.Inc()
		return
	}

	// A pathological input must not hold a pool slot forever.
	jobCtx := ctx
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	started := time.Now()
	resultPath, err := handler(jobCtx, job)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, deck.ErrUnreadable) {
			reason = models.FailureUnreadablePackage
		}
		_ = p.store.MarkFailed(job.ID, reason)
		telemetry.JobsFailed.Inc()
		log.Printf("job %s (%s) failed after %s: %v", job.ID, job.Kind, time.Since(started).Round(time.Millisecond), err)
		return
	}

	if p.mirror != nil {
		if err := p.mirror.Upload(jobCtx, job.ID, resultPath); err != nil {
			// Mirroring is best-effort; the local archive is the contract.
			log.Printf("mirror %s: %v", job.ID, err)
		}
	}

	_ = p.store.MarkDone(job.ID, resultPath)
	telemetry.JobsCompleted.Inc()
	log.Printf("job %s (%s) done in %s", job.ID, job.Kind, time.Since(started).Round(time.Millisecond))
}

func (p *Processor) idle(ctx context.Context) {
	interval := p.cfg.WorkerPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(interval):
	}
}
