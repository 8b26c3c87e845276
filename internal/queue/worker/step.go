package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/observability"
)

// ProcessOne claims and executes at most one job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.metrics.Claimed(string(j.Type))

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observe(j, result, elapsed)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observe(j, observability.JobFailed, elapsed)
		return true, err
	}

	w.observe(j, observability.JobDone, elapsed)
	w.logger.InfoContext(ctx, "job.done", "job_id", j.ID, "job_type", string(j.Type), "attempt", j.Attempts+1)

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) (err error) {
	h, ok := w.handlers[j.Type]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrInvalidJobType, j.Type)
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return h(jobCtx, j)
}

// handleFailure reschedules with backoff, or marks the job failed when it
// cannot succeed or has used its attempts.
func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error) string {
	msg := cause.Error()
	attempt := j.Attempts + 1

	permanent := errors.Is(cause, jobs.ErrInvalidJobType) ||
		errors.Is(cause, jobs.ErrInvalidJobPayload) ||
		errors.Is(cause, jobs.ErrPayloadTypeMismatch)

	if permanent || attempt >= j.MaxAttempts {
		w.logger.ErrorContext(ctx, "job.failed", "job_id", j.ID, "job_type", string(j.Type), "attempt", attempt, "err", msg)

		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.logger.ErrorContext(ctx, "job.mark_failed_error", "job_id", j.ID, "err", err)
		}
		return observability.JobFailed
	}

	runAt := time.Now().UTC().Add(w.backoff(j.Attempts))
	w.logger.WarnContext(ctx, "job.retry", "job_id", j.ID, "job_type", string(j.Type), "attempt", attempt, "run_at", runAt, "err", msg)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.logger.ErrorContext(ctx, "job.reschedule_error", "job_id", j.ID, "err", err)
	}
	return observability.JobRetry
}

func (w *Worker) observe(j jobs.Job, result string, elapsed time.Duration) {
	w.metrics.Record(string(j.Type), result, elapsed)

	if w.prom == nil {
		return
	}
	w.prom.JobDuration.WithLabelValues(string(j.Type), result).Observe(elapsed.Seconds())
	w.prom.JobResults.WithLabelValues(string(j.Type), result).Inc()
}
