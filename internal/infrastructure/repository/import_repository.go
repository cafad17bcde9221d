package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/infrastructure/db/models"
)

const (
	taskQueued    = "queued"
	taskRunning   = "running"
	taskSucceeded = "succeeded"
	taskFailed    = "failed"
	taskDiscarded = "discarded"
)

type ImportRepository struct {
	db          *gorm.DB
	maxAttempts int
}

func NewImportRepository(db *gorm.DB, maxAttempts int) *ImportRepository {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &ImportRepository{db: db, maxAttempts: maxAttempts}
}

func (r *ImportRepository) Create(ctx context.Context, imp *domain.Import) error {
	row := toImportModel(imp)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create import: %w", err)
	}
	imp.ID = row.ID
	imp.CreatedAt = row.CreatedAt
	return nil
}

func (r *ImportRepository) Get(ctx context.Context, id string) (*domain.Import, error) {
	var row models.Import
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrImportNotFound
		}
		return nil, fmt.Errorf("get import: %w", err)
	}
	return toImportDomain(row), nil
}

func (r *ImportRepository) Status(ctx context.Context, id string) (domain.Status, error) {
	var status string
	err := r.db.WithContext(ctx).
		Model(&models.Import{}).
		Select("status").
		Where("id = ?", id).
		Take(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrImportNotFound
		}
		return "", fmt.Errorf("get import status: %w", err)
	}
	return domain.Status(status), nil
}

// Transition leaves the progress counters alone; batches increment them
// concurrently.
func (r *ImportRepository) Transition(ctx context.Context, imp *domain.Import, from domain.Status, tasks []domain.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Import{}).
			Where("id = ? AND status = ?", imp.ID, string(from)).
			Updates(map[string]any{
				"status":        string(imp.Status),
				"total_rows":    imp.TotalRows,
				"error_message": nullableString(imp.ErrorMessage),
				"started_at":    imp.StartedAt,
				"completed_at":  imp.CompletedAt,
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("update import status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			if _, err := r.statusTx(tx, imp.ID); err != nil {
				return err
			}
			return fmt.Errorf("%w: import %s is no longer %s", domain.ErrConcurrentTransition, imp.ID, from)
		}

		if imp.Status.IsTerminal() {
			if err := tx.Model(&models.ImportTask{}).
				Where("import_id = ? AND status = ?", imp.ID, taskQueued).
				Updates(map[string]any{"status": taskDiscarded, "updated_at": time.Now()}).Error; err != nil {
				return fmt.Errorf("discard queued tasks: %w", err)
			}
		}

		if len(tasks) == 0 {
			return nil
		}
		rows := make([]models.ImportTask, 0, len(tasks))
		for _, t := range tasks {
			maxAttempts := t.MaxAttempts
			if maxAttempts <= 0 {
				maxAttempts = r.maxAttempts
			}
			rows = append(rows, models.ImportTask{
				ImportID:    imp.ID,
				Kind:        string(t.Kind),
				StartRow:    t.StartRow,
				EndRow:      t.EndRow,
				Status:      taskQueued,
				MaxAttempts: maxAttempts,
			})
		}
		if err := tx.CreateInBatches(&rows, 500).Error; err != nil {
			return fmt.Errorf("enqueue import tasks: %w", err)
		}
		return nil
	})
}

func (r *ImportRepository) statusTx(tx *gorm.DB, id string) (string, error) {
	var status string
	err := tx.Model(&models.Import{}).Select("status").Where("id = ?", id).Take(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrImportNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get import status: %w", err)
	}
	return status, nil
}

// CompleteIfDrained leaves an import with a failed batch to the failure
// path.
func (r *ImportRepository) CompleteIfDrained(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
UPDATE imports
SET status = ?, completed_at = ?, updated_at = ?
WHERE id = ?
  AND status = ?
  AND NOT EXISTS (
    SELECT 1 FROM import_tasks
    WHERE import_id = imports.id
      AND kind = ?
      AND status IN (?, ?, ?)
  )`,
		string(domain.StatusCompleted), now, now,
		id,
		string(domain.StatusProcessing),
		string(domain.TaskProcessBatch),
		taskQueued, taskRunning, taskFailed,
	)
	if res.Error != nil {
		return false, fmt.Errorf("complete drained import: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

type stalledRow struct {
	ID          string
	Status      string
	FailedTasks int
	LastError   *string
}

func (r *ImportRepository) Stalled(ctx context.Context) ([]domain.StalledImport, error) {
	var rows []stalledRow
	err := r.db.WithContext(ctx).Raw(`
SELECT i.id, i.status,
       COUNT(*) FILTER (WHERE t.status = ?) AS failed_tasks,
       MAX(t.error_message) FILTER (WHERE t.status = ?) AS last_error
FROM imports i
JOIN import_tasks t ON t.import_id = i.id
WHERE i.status IN (?, ?)
GROUP BY i.id, i.status
HAVING COUNT(*) FILTER (WHERE t.status IN (?, ?)) = 0
ORDER BY i.id`,
		taskFailed, taskFailed,
		string(domain.StatusAnalyzing), string(domain.StatusProcessing),
		taskQueued, taskRunning,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list stalled imports: %w", err)
	}

	out := make([]domain.StalledImport, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StalledImport{
			ID:          row.ID,
			Status:      domain.Status(row.Status),
			FailedTasks: row.FailedTasks,
			LastError:   derefString(row.LastError),
		})
	}
	return out, nil
}

// RecordRow stores a processed row together with its task cursor. A row
// behind the cursor was recorded by an earlier attempt of the task and is
// ignored.
func (r *ImportRepository) RecordRow(ctx context.Context, outcome domain.RowOutcome) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if outcome.TaskID != "" {
			res := tx.Model(&models.ImportTask{}).
				Where("id = ? AND next_row <= ?", outcome.TaskID, outcome.Row).
				Updates(map[string]any{"next_row": outcome.Row + 1, "updated_at": time.Now()})
			if res.Error != nil {
				return fmt.Errorf("advance task cursor: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil
			}
		}

		if outcome.Error != nil {
			if err := insertErrors(tx, []domain.ImportError{*outcome.Error}); err != nil {
				return err
			}
		}

		counter := "error_rows"
		if outcome.Success {
			counter = "success_rows"
		}
		err := tx.Model(&models.Import{}).
			Where("id = ?", outcome.ImportID).
			Updates(map[string]any{
				"processed_rows": gorm.Expr("processed_rows + 1"),
				counter:          gorm.Expr(counter + " + 1"),
				"updated_at":     time.Now(),
			}).Error
		if err != nil {
			return fmt.Errorf("increment import progress: %w", err)
		}
		return nil
	})
}

// UpdateRowCounts stores the number of data rows and the last sheet row
// holding one.
func (r *ImportRepository) UpdateRowCounts(ctx context.Context, id string, total, lastRow int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Import{}).
		Where("id = ?", id).
		Updates(map[string]any{"total_rows": total, "last_row": lastRow, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("update row counts: %w", err)
	}
	return nil
}

func (r *ImportRepository) ResetAnalysis(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", id).Delete(&models.ImportAnalysisResult{}).Error; err != nil {
			return fmt.Errorf("delete analysis results: %w", err)
		}
		if err := tx.Where("import_id = ? AND phase = ?", id, string(domain.PhaseAnalysis)).Delete(&models.ImportError{}).Error; err != nil {
			return fmt.Errorf("delete analysis errors: %w", err)
		}
		return nil
	})
}

func (r *ImportRepository) SaveResults(ctx context.Context, id string, results []domain.AnalysisResult) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]models.ImportAnalysisResult, 0, len(results))
	for _, res := range results {
		details, err := json.Marshal(res.Details)
		if err != nil {
			return fmt.Errorf("encode change details: %w", err)
		}
		rows = append(rows, models.ImportAnalysisResult{
			ImportID:   id,
			Operation:  string(res.Operation),
			EntityType: string(res.EntityType),
			Count:      res.Count,
			Details:    datatypes.JSON(details),
		})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("save analysis results: %w", err)
	}
	return nil
}

func (r *ImportRepository) AddErrors(ctx context.Context, errs []domain.ImportError) error {
	return insertErrors(r.db.WithContext(ctx), errs)
}

func insertErrors(db *gorm.DB, errs []domain.ImportError) error {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]models.ImportError, 0, len(errs))
	for _, e := range errs {
		raw, err := json.Marshal(e.RawData)
		if err != nil {
			return fmt.Errorf("encode raw row: %w", err)
		}
		rows = append(rows, models.ImportError{
			ImportID:  e.ImportID,
			Phase:     string(e.Phase),
			RowNumber: e.Row,
			Severity:  string(e.Severity),
			Message:   e.Message,
			Field:     nullableString(e.Field),
			RawData:   datatypes.JSON(raw),
			CreatedAt: e.CreatedAt,
		})
	}
	if err := db.CreateInBatches(&rows, 200).Error; err != nil {
		return fmt.Errorf("save import errors: %w", err)
	}
	return nil
}

func (r *ImportRepository) Results(ctx context.Context, id string) ([]domain.AnalysisResult, error) {
	var rows []models.ImportAnalysisResult
	if err := r.db.WithContext(ctx).Where("import_id = ?", id).Order("created_at, operation, entity_type").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list analysis results: %w", err)
	}
	results := make([]domain.AnalysisResult, 0, len(rows))
	for _, row := range rows {
		var details []domain.ChangeRecord
		if len(row.Details) > 0 {
			if err := json.Unmarshal(row.Details, &details); err != nil {
				return nil, fmt.Errorf("decode change details: %w", err)
			}
		}
		results = append(results, domain.AnalysisResult{
			ID:         row.ID,
			ImportID:   row.ImportID,
			Operation:  domain.Operation(row.Operation),
			EntityType: domain.EntityType(row.EntityType),
			Count:      row.Count,
			Details:    details,
		})
	}
	return results, nil
}

func (r *ImportRepository) Errors(ctx context.Context, id string, limit, offset int) ([]domain.ImportError, error) {
	var rows []models.ImportError
	err := r.db.WithContext(ctx).
		Where("import_id = ?", id).
		Order("row_number, created_at").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list import errors: %w", err)
	}
	out := make([]domain.ImportError, 0, len(rows))
	for _, row := range rows {
		var raw map[string]any
		if len(row.RawData) > 0 {
			if err := json.Unmarshal(row.RawData, &raw); err != nil {
				return nil, fmt.Errorf("decode raw row: %w", err)
			}
		}
		out = append(out, domain.ImportError{
			ID:        row.ID,
			ImportID:  row.ImportID,
			Phase:     domain.Phase(row.Phase),
			Row:       row.RowNumber,
			Severity:  domain.Severity(row.Severity),
			Message:   row.Message,
			Field:     derefString(row.Field),
			RawData:   raw,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// CountErrorRows counts rows with at least one ERROR; warnings do not count.
func (r *ImportRepository) CountErrorRows(ctx context.Context, id string, phase domain.Phase) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ImportError{}).
		Where("import_id = ? AND phase = ? AND severity = ?", id, string(phase), string(domain.SeverityError)).
		Distinct("row_number").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count error rows: %w", err)
	}
	return int(count), nil
}

func toImportModel(imp *domain.Import) models.Import {
	return models.Import{
		ID:               imp.ID,
		OriginalFilename: imp.OriginalFilename,
		StoredFilename:   imp.StoredFilename,
		Kind:             string(imp.Kind),
		Status:           string(imp.Status),
		TotalRows:        imp.TotalRows,
		LastRow:          imp.LastRow,
		ProcessedRows:    imp.ProcessedRows,
		SuccessRows:      imp.SuccessRows,
		ErrorRows:        imp.ErrorRows,
		OwnerID:          imp.OwnerID,
		ErrorMessage:     nullableString(imp.ErrorMessage),
		StartedAt:        imp.StartedAt,
		CompletedAt:      imp.CompletedAt,
		CreatedAt:        imp.CreatedAt,
	}
}

func toImportDomain(row models.Import) *domain.Import {
	return &domain.Import{
		ID:               row.ID,
		OriginalFilename: row.OriginalFilename,
		StoredFilename:   row.StoredFilename,
		Kind:             domain.Kind(row.Kind),
		Status:           domain.Status(row.Status),
		TotalRows:        row.TotalRows,
		LastRow:          row.LastRow,
		ProcessedRows:    row.ProcessedRows,
		SuccessRows:      row.SuccessRows,
		ErrorRows:        row.ErrorRows,
		OwnerID:          row.OwnerID,
		ErrorMessage:     derefString(row.ErrorMessage),
		CreatedAt:        row.CreatedAt,
		StartedAt:        row.StartedAt,
		CompletedAt:      row.CompletedAt,
	}
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
