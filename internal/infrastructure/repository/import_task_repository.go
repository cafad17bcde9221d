package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

// ImportTaskRepository is the worker side of the import_tasks outbox. Tasks
// are claimed with SKIP LOCKED under a lease; a task whose lease expired is
// claimable again.
type ImportTaskRepository struct {
	pool *pgxpool.Pool
}

func NewImportTaskRepository(pool *pgxpool.Pool) *ImportTaskRepository {
	return &ImportTaskRepository{pool: pool}
}

func (r *ImportTaskRepository) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.Task, error) {
	var task domain.Task
	var kind string
	err := r.pool.QueryRow(ctx, `
WITH next_task AS (
    SELECT id
    FROM import_tasks
    WHERE (status = $1 OR (status = $2 AND lease_expires_at < NOW()))
      AND attempts < max_attempts
    ORDER BY created_at, start_row
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE import_tasks t
SET status = $2,
    attempts = t.attempts + 1,
    heartbeat_at = NOW(),
    lease_expires_at = NOW() + make_interval(secs => $3),
    updated_at = NOW()
FROM next_task
WHERE t.id = next_task.id
RETURNING t.id, t.import_id, t.kind, t.start_row, t.end_row, t.next_row, t.attempts, t.max_attempts
`, taskQueued, taskRunning, leaseDuration.Seconds()).Scan(
		&task.ID, &task.ImportID, &kind, &task.StartRow, &task.EndRow, &task.NextRow, &task.Attempts, &task.MaxAttempts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim import task: %w", err)
	}
	task.Kind = domain.TaskKind(kind)
	return &task, nil
}

func (r *ImportTaskRepository) Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE import_tasks
SET heartbeat_at = NOW(),
    lease_expires_at = NOW() + make_interval(secs => $2),
    updated_at = NOW()
WHERE id = $1 AND status = $3
`, taskID, leaseDuration.Seconds(), taskRunning)
	if err != nil {
		return fmt.Errorf("heartbeat import task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("heartbeat import task %s: not running", taskID)
	}
	return nil
}

func (r *ImportTaskRepository) Complete(ctx context.Context, taskID string) error {
	return r.finish(ctx, taskID, taskSucceeded, nil)
}

func (r *ImportTaskRepository) Requeue(ctx context.Context, taskID string, reason string) error {
	return r.finish(ctx, taskID, taskQueued, &reason)
}

func (r *ImportTaskRepository) Fail(ctx context.Context, taskID string, reason string) error {
	return r.finish(ctx, taskID, taskFailed, &reason)
}

// Release puts a running task back in the queue and returns the attempt its
// claim took.
func (r *ImportTaskRepository) Release(ctx context.Context, taskID string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE import_tasks
SET status = $2,
    attempts = GREATEST(attempts - 1, 0),
    heartbeat_at = NULL,
    lease_expires_at = NULL,
    updated_at = NOW()
WHERE id = $1 AND status = $3
`, taskID, taskQueued, taskRunning)
	if err != nil {
		return fmt.Errorf("release import task: %w", err)
	}
	return nil
}

// ReapExpired fails tasks whose worker died during their last attempt.
func (r *ImportTaskRepository) ReapExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE import_tasks
SET status = $1,
    error_message = 'lease expired on the last attempt',
    heartbeat_at = NULL,
    lease_expires_at = NULL,
    updated_at = NOW()
WHERE status = $2
  AND lease_expires_at < NOW()
  AND attempts >= max_attempts
`, taskFailed, taskRunning)
	if err != nil {
		return 0, fmt.Errorf("reap expired import tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ImportTaskRepository) finish(ctx context.Context, taskID, status string, reason *string) error {
	// A task discarded while it was running stays discarded.
	_, err := r.pool.Exec(ctx, `
UPDATE import_tasks
SET status = $2,
    error_message = COALESCE($3, error_message),
    heartbeat_at = NULL,
    lease_expires_at = NULL,
    updated_at = NOW()
WHERE id = $1 AND status <> $4
`, taskID, status, reason, taskDiscarded)
	if err != nil {
		return fmt.Errorf("mark import task %s: %w", status, err)
	}
	return nil
}
