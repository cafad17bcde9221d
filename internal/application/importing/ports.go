package importing

import (
	"context"
	"io"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

// SpreadsheetReader reads the first sheet of a workbook. Row 1 is the header.
type SpreadsheetReader interface {
	Headers(ctx context.Context, path string) ([]string, error)
	CountRows(ctx context.Context, path string) (domain.RowCount, error)
	ReadRowsInBatches(ctx context.Context, path string, batchSize int, fn func(batch []domain.SheetRow) error) error
	ReadRange(ctx context.Context, path string, startRow, endRow int, fn func(row domain.SheetRow) error) error
}

type FileStorage interface {
	Store(ctx context.Context, originalName string, content io.Reader) (domain.FileInfo, error)
	Path(storedName string) string
	Delete(ctx context.Context, storedName string) error
}

// Notifier sends best-effort emails; callers log and drop its errors.
type Notifier interface {
	AnalysisCompleted(ctx context.Context, imp *domain.Import, impact domain.AnalysisImpact) error
	ProcessingCompleted(ctx context.Context, imp *domain.Import) error
	ImportFailed(ctx context.Context, imp *domain.Import) error
	ImportCancelled(ctx context.Context, imp *domain.Import) error
}
