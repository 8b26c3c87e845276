package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (jobs.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// Handler executes one job of a given type. A returned error schedules a retry.
type Handler func(ctx context.Context, j jobs.Job) error

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	JobTimeout    time.Duration
	LockTTL       time.Duration
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	handlers map[jobs.Type]Handler
	logger   *slog.Logger
	metrics  *observability.JobMetrics
	prom     *observability.Prom
	pinger   Pinger

	// backoff is swapped in tests to make retries deterministic
	backoff func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, logger *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		handlers: make(map[jobs.Type]Handler),
		logger:   logger,
		metrics:  observability.NewJobMetrics(),
		prom:     prom,
		backoff:  ExponentialBackoff,
	}
}

// Handle registers the handler for a job type.
func (w *Worker) Handle(t jobs.Type, h Handler) {
	w.handlers[t] = h
}

// WithReadiness makes /readyz also ping the given dependency.
func (w *Worker) WithReadiness(p Pinger) *Worker {
	w.pinger = p
	return w
}

func (w *Worker) Metrics() observability.JobMetricsSnapShot {
	return w.metrics.Snapshot()
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) isReady() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls for jobs with cfg.Concurrency loops until ctx is cancelled.
// Jobs already executing get cfg.ShutdownGrace to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	// jobs keep running on a context that outlives ctx by the shutdown grace
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	go func() {
		<-ctx.Done()
		w.setReady(false)
		w.logger.Info("worker.shutdown_requested")
		time.AfterFunc(w.cfg.ShutdownGrace, cancelRun)
	}()

	g := new(errgroup.Group)

	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			w.loop(ctx, runCtx)
			return nil
		})
	}

	g.Go(func() error {
		w.reaper(ctx)
		return nil
	})

	return g.Wait()
}

func (w *Worker) loop(ctx, runCtx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// drain without waiting for the next tick while work is available
		for ctx.Err() == nil {
			processed, err := w.ProcessOne(runCtx)
			if err != nil {
				w.logger.Error("worker.process_error", "worker_id", w.cfg.WorkerID, "err", err)
				break
			}
			if !processed {
				break
			}
		}
	}
}

// reaper returns jobs left in processing by a crashed worker to the queue.
// The sweep runs on a cron schedule of one lock TTL.
func (w *Worker) reaper(ctx context.Context) {
	c := cron.New()

	_, err := c.AddFunc("@every "+w.cfg.LockTTL.String(), func() {
		n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Error("worker.requeue_stale_error", "err", err)
			}
			return
		}
		if n > 0 {
			w.logger.Warn("worker.requeued_stale", "count", n)
		}
	})
	if err != nil {
		w.logger.Error("worker.reaper_schedule_error", "err", err)
		return
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}
