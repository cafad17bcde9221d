package importing

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, imp *Import) error
	Get(ctx context.Context, id string) (*Import, error)
	// Transition persists imp only if its stored status is still from, and
	// enqueues tasks in the same transaction. Terminal statuses discard the
	// import's queued tasks.
	Transition(ctx context.Context, imp *Import, from Status, tasks []Task) error
	// CompleteIfDrained moves a PROCESSING import to COMPLETED once none of its
	// batch tasks is queued, running or failed.
	CompleteIfDrained(ctx context.Context, id string, now time.Time) (bool, error)
	// Stalled lists ANALYZING and PROCESSING imports that have tasks but none
	// left to run.
	Stalled(ctx context.Context) ([]StalledImport, error)
	Status(ctx context.Context, id string) (Status, error)
	RecordRow(ctx context.Context, outcome RowOutcome) error
	UpdateRowCounts(ctx context.Context, id string, total, lastRow int) error
	ResetAnalysis(ctx context.Context, id string) error
	SaveResults(ctx context.Context, id string, results []AnalysisResult) error
	AddErrors(ctx context.Context, errs []ImportError) error
	Results(ctx context.Context, id string) ([]AnalysisResult, error)
	Errors(ctx context.Context, id string, limit, offset int) ([]ImportError, error)
	CountErrorRows(ctx context.Context, id string, phase Phase) (int, error)
}

type TaskQueue interface {
	ClaimNext(ctx context.Context, leaseDuration time.Duration) (*Task, error)
	Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error
	Complete(ctx context.Context, taskID string) error
	Requeue(ctx context.Context, taskID string, reason string) error
	Fail(ctx context.Context, taskID string, reason string) error
	// Release hands a task interrupted by shutdown back to the queue without
	// spending an attempt.
	Release(ctx context.Context, taskID string) error
	// ReapExpired fails running tasks whose lease expired on their last
	// attempt; ClaimNext never picks those up again.
	ReapExpired(ctx context.Context) (int, error)
}

type StalledImport struct {
	ID          string
	Status      Status
	FailedTasks int
	LastError   string
}
