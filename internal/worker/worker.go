package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/harbor-academy/backend/pkg/queue"
)

// Processor handles one job type.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

type jobSource interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Runner pulls jobs from the queue and routes them to processors by type.
type Runner struct {
	queue      jobSource
	processors map[queue.JobType]Processor
	keys       []string
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRunner creates a runner with the given processors. It only pops from
// the queues of job types it has a processor for.
func NewRunner(q jobSource, processors map[queue.JobType]Processor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := make([]string, 0, len(processors))
	for t := range processors {
		if key, err := queue.KeyFor(t); err == nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return &Runner{queue: q, processors: processors, keys: keys, backoff: queue.RetryBackoff, logger: logger}
}

// Handle processes one job, re-enqueueing it on failure.
func (r *Runner) Handle(ctx context.Context, job *queue.Job) error {
	p, ok := r.processors[job.Type]
	if !ok {
		err := fmt.Errorf("unknown job type: %s", job.Type)
		r.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	if err := p.Process(ctx, job); err != nil {
		r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := r.queue.Retry(ctx, job); reErr != nil {
			r.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		return err
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (r *Runner) Run(ctx context.Context) {
	if len(r.keys) == 0 {
		r.logger.Warn("no processors registered")
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("worker stopping")
			return
		default:
		}

		job, _, err := r.queue.Dequeue(ctx, r.keys...)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			r.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		if err := r.Handle(ctx, job); err != nil {
			r.sleep(ctx)
		}
	}
}

func (r *Runner) sleep(ctx context.Context) {
	t := time.NewTimer(r.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
