package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/jobs/runtime"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/realtime"
	"github.com/tracevine/tracevine-backend/internal/repos"
)

const (
	pollInterval      = 1 * time.Second
	staleRunning      = 30 * time.Minute
	heartbeatInterval = 5 * time.Minute
)

// Worker runs one polling pool per registered stage so a slow stage cannot
// starve the others.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	cfg      *config.Store
	repo     repos.JobRunRepo
	registry *runtime.Registry
	bus      realtime.Bus
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, cfg *config.Store, repo repos.JobRunRepo, registry *runtime.Registry, bus realtime.Bus) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		cfg:      cfg,
		repo:     repo,
		registry: registry,
		bus:      bus,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := w.cfg.Current().Pipeline.StageConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	stages := w.registry.Types()
	w.log.Info("Starting stage worker pools", "stages", stages, "concurrency", concurrency)

	for _, stage := range stages {
		for i := 0; i < concurrency; i++ {
			workerID := i + 1
			go w.runLoop(ctx, stage, workerID)
		}
	}
}

func (w *Worker) runLoop(ctx context.Context, stage string, workerID int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "stage", stage, "worker_id", workerID)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(ctx, w.db, stage, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "stage", stage, "worker_id", workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}

			backoffBase := w.cfg.Current().Pipeline.BackoffBase
			h, ok := w.registry.Get(job.JobType)
			jc := runtime.NewContext(ctx, w.db, job, w.repo, w.bus, backoffBase)

			if !ok {
				w.log.Warn("No handler registered for job_type",
					"stage", stage,
					"worker_id", workerID,
					"job_id", job.ID,
				)
				jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
				continue
			}

			// Keep heartbeat_at moving while the handler runs so the stale
			// reclaim arm only revives jobs whose worker actually died.
			hbCtx, stopHeartbeat := context.WithCancel(ctx)
			go w.keepAlive(hbCtx, job.ID, heartbeatInterval)

			func() {
				defer stopHeartbeat()
				defer func() {
					if r := recover(); r != nil {
						w.log.Error("Job handler panic",
							"stage", stage,
							"worker_id", workerID,
							"job_id", job.ID,
							"panic", r,
						)
						jc.Fail("panic", errFromRecover(r))
					}
				}()

				if runErr := h.Run(jc); runErr != nil {
					// Handlers usually call jc.Fail themselves; this is a safety net.
					jc.Fail("run", runErr)
				}
			}()
		}
	}
}

func (w *Worker) keepAlive(ctx context.Context, jobID uuid.UUID, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.Heartbeat(ctx, w.db, jobID); err != nil {
				w.log.Warn("Heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return "panic: unexpected error" }
