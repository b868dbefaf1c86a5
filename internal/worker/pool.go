package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/channels"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/jobqueue"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/monitoring"
	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/template"
)

// Pool runs a bounded set of delivery workers over the job queue. Each
// worker loops claim -> render -> send -> record; a background reclaimer
// releases lapsed leases so a crashed worker never strands a job in sending.
type Pool struct {
	queue     jobqueue.Store
	templates template.Store
	channel   channels.SendChannel
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	cfg       config.WorkerConfig

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool creates a delivery worker pool
func NewPool(queue jobqueue.Store, templates template.Store, channel channels.SendChannel, metrics *monitoring.Metrics, logger *zap.Logger, cfg config.WorkerConfig) *Pool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.ReclaimEvery <= 0 {
		cfg.ReclaimEvery = 30 * time.Second
	}
	return &Pool{
		queue:     queue,
		templates: templates,
		channel:   channel,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the workers and the lease reclaimer
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.PoolSize; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.New().String()[:8])
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runWorker(ctx, workerID)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runReclaimer(ctx)
	}()

	p.logger.Info("Delivery worker pool started", zap.Int("pool_size", p.cfg.PoolSize))
}

// Stop signals the workers and waits for in-flight jobs to resolve
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("Delivery worker pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.ClaimNext(ctx, workerID)
		if err != nil {
			p.logger.Error("Failed to claim job", zap.String("worker_id", workerID), zap.Error(err))
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}
		if job == nil {
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}

		p.process(ctx, workerID, job)
	}
}

// process resolves one claimed job to sent, pending-for-retry, or failed
func (p *Pool) process(ctx context.Context, workerID string, job *jobqueue.Job) {
	logger := p.logger.With(
		zap.String("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("template", job.TemplateName),
	)

	tmpl, err := p.templates.GetActive(ctx, job.TemplateName)
	if err != nil {
		if errors.Is(err, template.ErrTemplateNotFound) {
			// A data problem; no retry can fix it
			logger.Warn("Job references missing or inactive template")
			p.markFailed(ctx, logger, job, "template inactive", true)
			return
		}
		// Template store unavailable; release the claim without an attempt
		logger.Error("Template lookup failed, requeueing", zap.Error(err))
		if err := p.queue.Requeue(ctx, job.ID); err != nil {
			logger.Error("Failed to requeue job", zap.Error(err))
		}
		return
	}

	rendered, err := template.Render(tmpl, job.Variables)
	if err != nil {
		logger.Warn("Job failed to render", zap.Error(err))
		p.markFailed(ctx, logger, job, err.Error(), true)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	start := time.Now()
	err = p.channel.Send(sendCtx, job.Recipient, rendered.Subject, rendered.HTMLBody, rendered.TextBody)
	cancel()
	if p.metrics != nil {
		p.metrics.SendDuration.Observe(time.Since(start).Seconds())
	}

	if err == nil {
		if err := p.queue.MarkSent(ctx, job.ID); err != nil {
			logger.Error("Failed to mark job sent", zap.Error(err))
			return
		}
		if p.metrics != nil {
			p.metrics.JobsSent.Inc()
		}
		logger.Info("Notification delivered", zap.String("recipient", job.Recipient))
		return
	}

	if channels.IsPermanent(err) {
		logger.Warn("Send failed permanently", zap.Error(err))
		p.markFailed(ctx, logger, job, err.Error(), true)
		return
	}

	// Transient failure, including send timeouts
	logger.Warn("Send failed, will retry", zap.Error(err), zap.Int("attempts", job.Attempts+1))
	p.markFailed(ctx, logger, job, err.Error(), false)
}

func (p *Pool) markFailed(ctx context.Context, logger *zap.Logger, job *jobqueue.Job, errMsg string, permanent bool) {
	if err := p.queue.MarkFailed(ctx, job.ID, errMsg, permanent); err != nil {
		logger.Error("Failed to record job failure", zap.Error(err))
		return
	}
	if p.metrics == nil {
		return
	}
	switch {
	case permanent:
		p.metrics.JobsFailed.WithLabelValues("permanent").Inc()
	case job.Attempts+1 >= job.MaxAttempts:
		p.metrics.JobsFailed.WithLabelValues("exhausted").Inc()
	default:
		p.metrics.JobsRetried.Inc()
	}
}

// runReclaimer periodically releases lapsed leases and refreshes queue depth
func (p *Pool) runReclaimer(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ReclaimEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reclaimed, err := p.queue.ReclaimExpired(ctx, time.Now())
		if err != nil {
			p.logger.Error("Failed to reclaim expired leases", zap.Error(err))
			continue
		}
		if reclaimed > 0 {
			p.logger.Warn("Reclaimed expired job leases", zap.Int("count", reclaimed))
			if p.metrics != nil {
				p.metrics.LeasesReclaimed.Add(float64(reclaimed))
			}
		}

		if p.metrics != nil {
			if counts, err := p.queue.CountByStatus(ctx); err == nil {
				for status, n := range counts {
					p.metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(n))
				}
			}
		}
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
