package importing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/metrics"
)

type TaskRunner interface {
	RunTask(ctx context.Context, task domain.Task) error
	TaskSucceeded(ctx context.Context, task domain.Task) error
	TaskFailed(ctx context.Context, task domain.Task, reason string) error
	Sweep(ctx context.Context) error
}

type WorkerConfig struct {
	Workers           int
	PollInterval      time.Duration
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	// SweepInterval paces the loop that fails expired last attempts and
	// settles imports left open by a dead worker.
	SweepInterval time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = c.LeaseDuration / 2
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = c.LeaseDuration
	}
	return c
}

// Worker consumes import tasks. Each loop claims a task under a lease, keeps
// the lease alive while the task runs, and requeues failures until the task
// runs out of attempts.
type Worker struct {
	queue  domain.TaskQueue
	runner TaskRunner
	cfg    WorkerConfig
	log    *zap.SugaredLogger

	once sync.Once
	wg   sync.WaitGroup
}

func NewWorker(queue domain.TaskQueue, runner TaskRunner, cfg WorkerConfig, log *zap.SugaredLogger) *Worker {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Worker{queue: queue, runner: runner, cfg: cfg, log: log}
}

func (w *Worker) Start(ctx context.Context) {
	w.once.Do(func() {
		w.wg.Add(w.cfg.Workers + 1)
		for i := 0; i < w.cfg.Workers; i++ {
			go func() {
				defer w.wg.Done()
				w.workerLoop(ctx)
			}()
		}
		go func() {
			defer w.wg.Done()
			w.sweepLoop(ctx)
		}()
	})
}

// Wait blocks until every loop has returned after ctx was cancelled.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) workerLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if w.runOnce(ctx) {
			continue
		}
		if !pause(ctx, w.cfg.PollInterval) {
			return
		}
	}
}

func (w *Worker) sweepLoop(ctx context.Context) {
	for pause(ctx, w.cfg.SweepInterval) {
		w.Sweep(ctx)
	}
}

// Sweep fails tasks that expired on their last attempt, then lets the runner
// settle the imports those tasks leave open.
func (w *Worker) Sweep(ctx context.Context) {
	reaped, err := w.queue.ReapExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("reaping expired import tasks failed", "error", err)
		}
		return
	}
	if reaped > 0 {
		w.log.Warnw("failed import tasks with an expired last attempt", "count", reaped)
	}
	if err := w.runner.Sweep(ctx); err != nil && ctx.Err() == nil {
		w.log.Errorw("settling stalled imports failed", "error", err)
	}
}

// runOnce claims and runs at most one task. It reports false when the loop
// should back off before polling again.
func (w *Worker) runOnce(ctx context.Context) bool {
	task, err := w.queue.ClaimNext(ctx, w.cfg.LeaseDuration)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			w.log.Errorw("claiming import task failed", "error", err)
		}
		return false
	case task == nil:
		return false
	}

	if err := w.ProcessTask(ctx, *task); err != nil {
		w.log.Warnw("import task failed",
			"task_id", task.ID,
			"import_id", task.ImportID,
			"kind", task.Kind,
			"attempt", task.Attempts,
			"error", err,
		)
	}
	return true
}

// ProcessTask runs a claimed task and records its outcome. The outcome is
// stored even when ctx is cancelled mid-run; a run cut short by cancellation
// goes back to the queue without spending an attempt.
func (w *Worker) ProcessTask(ctx context.Context, task domain.Task) error {
	done := metrics.TrackTask(string(task.Kind))
	settle := context.WithoutCancel(ctx)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(hbCtx, task)

	err := w.runner.RunTask(ctx, task)
	stopHeartbeat()
	if err != nil {
		done("error")
		if ctx.Err() != nil {
			if relErr := w.queue.Release(settle, task.ID); relErr != nil {
				return fmt.Errorf("%v; release task: %w", err, relErr)
			}
			return err
		}
		return w.giveUpOrRetry(settle, task, err)
	}

	if err := w.queue.Complete(settle, task.ID); err != nil {
		done("error")
		return fmt.Errorf("complete task: %w", err)
	}
	done("ok")

	if err := w.runner.TaskSucceeded(settle, task); err != nil {
		return fmt.Errorf("after task: %w", err)
	}
	return nil
}

// heartbeat extends the task lease until ctx is done.
func (w *Worker) heartbeat(ctx context.Context, task domain.Task) {
	for pause(ctx, w.cfg.HeartbeatInterval) {
		if err := w.queue.Heartbeat(ctx, task.ID, w.cfg.LeaseDuration); err != nil && ctx.Err() == nil {
			w.log.Warnw("extending task lease failed", "task_id", task.ID, "error", err)
		}
	}
}

// giveUpOrRetry requeues a retryable task that has attempts left. Otherwise
// the task and its import are failed.
func (w *Worker) giveUpOrRetry(ctx context.Context, task domain.Task, cause error) error {
	reason := truncateReason(cause.Error())
	if retryable(cause) && task.Attempts < task.MaxAttempts {
		if err := w.queue.Requeue(ctx, task.ID, reason); err != nil {
			return fmt.Errorf("%v; requeue task: %w", cause, err)
		}
		return cause
	}

	if err := w.queue.Fail(ctx, task.ID, reason); err != nil {
		return fmt.Errorf("%v; fail task: %w", cause, err)
	}
	if err := w.runner.TaskFailed(ctx, task, reason); err != nil {
		return fmt.Errorf("%v; fail import: %w", cause, err)
	}
	return cause
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
