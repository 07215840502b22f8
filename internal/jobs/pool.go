package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/events"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/convictionhq/conviction/internal/store"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultLeaseTTL     = 2 * time.Minute
	defaultMaxAttempts  = 3
)

// Runner executes one workflow per job. The conductor is the
// production implementation.
type Runner interface {
	ExecuteResearch(ctx context.Context, job *domain.ResearchJob, engagement *domain.Engagement) (*research.WorkflowResult, error)
	ExecuteStressTest(ctx context.Context, job *domain.ResearchJob, engagement *domain.Engagement) (*research.StressResult, error)
}

// Pool runs claimed jobs on a bounded set of workers, away from the
// request path. Workflows run for minutes, so each claim is held
// through periodic lease renewal rather than one short lock; a worker
// that dies mid-run loses its lease and the job is retried up to the
// attempt ceiling, after which the janitor fails it with the last
// error preserved.
type Pool struct {
	jobs        domain.JobStore
	engagements domain.EngagementStore
	runner      Runner
	bus         *events.Bus
	logger      *zap.Logger

	count        int
	leaseTTL     time.Duration
	maxAttempts  int
	pollInterval time.Duration

	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(jobs domain.JobStore, engagements domain.EngagementStore, runner Runner, bus *events.Bus, count int, leaseTTL time.Duration, maxAttempts int, logger *zap.Logger) *Pool {
	if count <= 0 {
		count = 1
	}
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Pool{
		jobs:         jobs,
		engagements:  engagements,
		runner:       runner,
		bus:          bus,
		logger:       logger,
		count:        count,
		leaseTTL:     leaseTTL,
		maxAttempts:  maxAttempts,
		pollInterval: defaultPollInterval,
		stopCh:       make(chan struct{}),
	}
}

// SetPollInterval overrides how often idle workers look for work.
func (p *Pool) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// Start launches the workers and the lease janitor.
func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Add(1)
	go p.janitor(ctx)

	p.logger.Info("job worker pool started",
		zap.Int("workers", p.count),
		zap.Duration("lease_ttl", p.leaseTTL),
		zap.Int("max_attempts", p.maxAttempts))
}

// Stop cancels running workflows cooperatively and waits for the
// workers to drain. In-flight external calls finish or time out on
// their own deadlines.
func (p *Pool) Stop() {
	close(p.stopCh)
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("job worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.drain(ctx, id)
		}
	}
}

// drain claims and runs jobs until the queue is empty or the pool is
// stopping.
func (p *Pool) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		job, err := p.jobs.ClaimNext(ctx, p.leaseTTL, p.maxAttempts)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) && ctx.Err() == nil {
				p.logger.Error("job claim failed", zap.Int("worker", workerID), zap.Error(err))
			}
			return
		}
		p.run(ctx, workerID, job)
	}
}

func (p *Pool) run(ctx context.Context, workerID int, job *domain.ResearchJob) {
	p.logger.Info("job started",
		zap.Int("worker", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.Attempts))

	stopHeartbeat := p.heartbeat(job)
	defer stopHeartbeat()

	p.publish(job, domain.Event{
		Type: domain.EventStatusUpdate,
		Data: map[string]any{"kind": "status", "status": string(domain.JobRunning), "attempt": job.Attempts},
	})

	results, confidence, err := p.execute(ctx, job)
	if err != nil {
		p.fail(ctx, job, err)
		return
	}

	if err := p.jobs.MarkCompleted(context.WithoutCancel(ctx), job.ID, results, confidence); err != nil {
		p.logger.Error("job completion not persisted",
			zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	p.logger.Info("job completed",
		zap.String("job_id", job.ID.String()),
		zap.Float32("confidence_score", confidence))
	p.publish(job, domain.Event{
		Type: domain.EventCompleted,
		Data: map[string]any{"confidence_score": confidence, "status": string(domain.JobCompleted)},
	})
}

func (p *Pool) execute(ctx context.Context, job *domain.ResearchJob) ([]byte, float32, error) {
	engagement, err := p.engagements.GetByID(ctx, job.EngagementID)
	if err != nil {
		return nil, 0, &research.PersistError{Op: "load engagement", Err: err}
	}

	switch job.Kind {
	case domain.JobStressTest:
		result, err := p.runner.ExecuteStressTest(ctx, job, engagement)
		if err != nil {
			return nil, 0, err
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, 0, err
		}
		// A stress test's score is the surviving conviction: what the
		// adversarial pass could not shake.
		return raw, (1 - result.OverallRiskScore) * 100, nil
	default:
		result, err := p.runner.ExecuteResearch(ctx, job, engagement)
		if err != nil {
			return nil, 0, err
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, 0, err
		}
		return raw, result.Confidence * 100, nil
	}
}

// fail records the failure verbatim so operators see the raw cause. A
// job whose lease will still be retried is not failed here: losing a
// worker mid-run leaves the lease to lapse and ClaimNext to retry, so
// this path only fires for errors the workflow itself surfaced.
func (p *Pool) fail(ctx context.Context, job *domain.ResearchJob, cause error) {
	msg := cause.Error()
	if ctx.Err() != nil {
		msg = "canceled: " + msg
	}

	if err := p.jobs.MarkFailed(context.WithoutCancel(ctx), job.ID, msg); err != nil {
		p.logger.Error("job failure not persisted",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	p.logger.Warn("job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("error", msg))
	p.publish(job, domain.Event{
		Type: domain.EventError,
		Data: map[string]any{"message": msg, "status": string(domain.JobFailed)},
	})
}

// heartbeat renews the job's lease at a third of its TTL until the
// returned stop function runs.
func (p *Pool) heartbeat(job *domain.ResearchJob) func() {
	done := make(chan struct{})
	var once sync.Once

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		interval := p.leaseTTL / 3
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := p.jobs.RenewLease(ctx, job.ID, p.leaseTTL); err != nil {
					p.logger.Warn("lease renewal failed",
						zap.String("job_id", job.ID.String()), zap.Error(err))
				}
				cancel()
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// janitor fails jobs whose lease lapsed after the attempt ceiling.
// Jobs with attempts left stay claimable and are retried by ClaimNext.
func (p *Pool) janitor(ctx context.Context) {
	defer p.wg.Done()
	interval := p.leaseTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			failed, err := p.jobs.FailExpired(runCtx, p.maxAttempts)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Error("expired-lease sweep failed", zap.Error(err))
				}
				continue
			}
			if failed > 0 {
				p.logger.Warn("failed jobs with exhausted attempts", zap.Int64("count", failed))
			}
		}
	}
}

func (p *Pool) publish(job *domain.ResearchJob, evt domain.Event) {
	if p.bus == nil {
		return
	}
	evt.JobID = job.ID
	evt.Timestamp = time.Now().UTC()
	p.bus.Publish(evt)
}
