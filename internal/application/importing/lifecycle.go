package importing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/metrics"
)

const DefaultBatchSize = 100

var allowedExtensions = []interface{}{".xlsx", ".xlsm", ".xltx", ".xltm"}

type UploadInput struct {
	OriginalName string
	Content      io.Reader
	Kind         string
	OwnerID      string
}

type Report struct {
	Import  *domain.Import
	Impact  domain.AnalysisImpact
	Results []domain.AnalysisResult
}

// ImportService is what the HTTP layer drives.
type ImportService interface {
	Upload(ctx context.Context, in UploadInput) (*domain.Import, error)
	StartAnalysis(ctx context.Context, id string) (*domain.Import, error)
	ConfirmAndProcess(ctx context.Context, id string) (*domain.Import, error)
	Cancel(ctx context.Context, id string) (*domain.Import, error)
	Report(ctx context.Context, id string) (Report, error)
	Errors(ctx context.Context, id string, limit, offset int) ([]domain.ImportError, error)
}

type batchRunner interface {
	ProcessBatch(ctx context.Context, imp *domain.Import, task domain.Task) (BatchResult, error)
}

type impactAnalyzer interface {
	Analyze(ctx context.Context, imp *domain.Import) (domain.AnalysisImpact, error)
}

// Service owns the import state machine. Every transition is stored together
// with the tasks it enqueues; workers pick those tasks up and report back
// through RunTask, TaskSucceeded and TaskFailed.
type Service struct {
	store     domain.Repository
	files     FileStorage
	notifier  Notifier
	analyzer  impactAnalyzer
	processor batchRunner
	batchSize int
	log       *zap.SugaredLogger
	now       func() time.Time
}

type ServiceConfig struct {
	BatchSize int
	Now       func() time.Time
}

func NewService(store domain.Repository, files FileStorage, notifier Notifier, analyzer impactAnalyzer, processor batchRunner, cfg ServiceConfig, log *zap.SugaredLogger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		store:     store,
		files:     files,
		notifier:  notifier,
		analyzer:  analyzer,
		processor: processor,
		batchSize: cfg.BatchSize,
		log:       log,
		now:       cfg.Now,
	}
}

// Upload stores the file and creates the import in PENDING.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*domain.Import, error) {
	ext := strings.ToLower(filepath.Ext(in.OriginalName))
	err := validation.Errors{
		"file":     validation.Validate(ext, validation.Required, validation.In(allowedExtensions...)),
		"kind":     validation.Validate(in.Kind, validation.Required),
		"owner_id": validation.Validate(in.OwnerID, validation.Required),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	kind, err := domain.ParseKind(in.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	info, err := s.files.Store(ctx, in.OriginalName, in.Content)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	imp := domain.NewImport(info, kind, in.OwnerID, s.now())
	if err := s.store.Create(ctx, imp); err != nil {
		if delErr := s.files.Delete(ctx, info.StoredName); delErr != nil {
			s.log.Warnw("failed to remove orphan upload", "stored_filename", info.StoredName, "error", delErr)
		}
		return nil, fmt.Errorf("create import: %w", err)
	}

	metrics.RecordTransition(string(imp.Status))
	s.log.Infow("import created",
		"import_id", imp.ID,
		"kind", imp.Kind,
		"file", imp.OriginalFilename,
		"stored_path", info.StoredPath,
		"mime_type", info.MimeType,
		"size", info.Size,
	)
	return imp, nil
}

func (s *Service) StartAnalysis(ctx context.Context, id string) (*domain.Import, error) {
	imp, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := imp.Status
	if err := imp.StartAnalysis(s.now()); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, imp, from, []domain.Task{domain.AnalyzeTask(imp.ID)}); err != nil {
		return nil, err
	}
	return imp, nil
}

// ConfirmAndProcess enqueues one task per row window. An import without rows
// completes immediately.
func (s *Service) ConfirmAndProcess(ctx context.Context, id string) (*domain.Import, error) {
	imp, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := imp.Status
	now := s.now()
	if err := imp.ConfirmProcessing(now); err != nil {
		return nil, err
	}

	windows := imp.BatchWindows(s.batchSize)
	if len(windows) == 0 {
		if err := imp.Complete(now); err != nil {
			return nil, err
		}
		if err := s.transition(ctx, imp, from, nil); err != nil {
			return nil, err
		}
		s.notify("processing completed", imp, func() error { return s.notifier.ProcessingCompleted(ctx, imp) })
		return imp, nil
	}

	tasks := make([]domain.Task, 0, len(windows))
	for _, w := range windows {
		tasks = append(tasks, domain.BatchTask(imp.ID, w))
	}
	if err := s.transition(ctx, imp, from, tasks); err != nil {
		return nil, err
	}
	s.log.Infow("import processing scheduled", "import_id", imp.ID, "batches", len(tasks), "total_rows", imp.TotalRows)
	return imp, nil
}

// Cancel succeeds even when the stored file cannot be removed or the mail
// cannot be sent.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Import, error) {
	imp, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := imp.Status
	if err := imp.Cancel(s.now()); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, imp, from, nil); err != nil {
		return nil, err
	}

	if err := s.files.Delete(ctx, imp.StoredFilename); err != nil {
		s.log.Warnw("failed to delete cancelled import file", "import_id", imp.ID, "stored_filename", imp.StoredFilename, "error", err)
	}
	s.notify("cancellation", imp, func() error { return s.notifier.ImportCancelled(ctx, imp) })
	return imp, nil
}

func (s *Service) Report(ctx context.Context, id string) (Report, error) {
	imp, err := s.store.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	results, err := s.store.Results(ctx, id)
	if err != nil {
		return Report{}, fmt.Errorf("load analysis results: %w", err)
	}
	errorRows, err := s.store.CountErrorRows(ctx, id, domain.PhaseAnalysis)
	if err != nil {
		return Report{}, fmt.Errorf("count analysis errors: %w", err)
	}
	return Report{
		Import:  imp,
		Impact:  domain.ImpactFromResults(results, imp.TotalRows, errorRows),
		Results: results,
	}, nil
}

func (s *Service) Errors(ctx context.Context, id string, limit, offset int) ([]domain.ImportError, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Errors(ctx, id, limit, offset)
}

// RunTask executes one queued task. Tasks of an import that moved on (for
// instance cancelled) are dropped.
func (s *Service) RunTask(ctx context.Context, task domain.Task) error {
	imp, err := s.store.Get(ctx, task.ImportID)
	if err != nil {
		return err
	}

	switch task.Kind {
	case domain.TaskAnalyze:
		if imp.Status != domain.StatusAnalyzing {
			s.log.Infow("dropping analysis task", "import_id", imp.ID, "status", imp.Status)
			return nil
		}
		return s.runAnalysis(ctx, imp)
	case domain.TaskProcessBatch:
		if imp.Status != domain.StatusProcessing {
			s.log.Infow("dropping batch task", "import_id", imp.ID, "status", imp.Status, "start_row", task.StartRow)
			return nil
		}
		_, err := s.processor.ProcessBatch(ctx, imp, task)
		return err
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

func (s *Service) runAnalysis(ctx context.Context, imp *domain.Import) error {
	impact, err := s.analyzer.Analyze(ctx, imp)
	if err != nil {
		return err
	}

	if err := imp.FinishAnalysis(impact.TotalRows()); err != nil {
		return err
	}
	if err := s.transition(ctx, imp, domain.StatusAnalyzing, nil); err != nil {
		if errors.Is(err, domain.ErrConcurrentTransition) {
			s.log.Infow("import changed during analysis, result kept as data only", "import_id", imp.ID)
			return nil
		}
		return err
	}
	s.notify("analysis completed", imp, func() error { return s.notifier.AnalysisCompleted(ctx, imp, impact) })
	return nil
}

// TaskSucceeded completes the import once its last batch is done.
func (s *Service) TaskSucceeded(ctx context.Context, task domain.Task) error {
	if task.Kind != domain.TaskProcessBatch {
		return nil
	}
	return s.completeDrained(ctx, task.ImportID)
}

// TaskFailed marks the import FAILED after a task gave up.
func (s *Service) TaskFailed(ctx context.Context, task domain.Task, reason string) error {
	return s.failImport(ctx, task.ImportID, reason)
}

// Sweep settles imports whose tasks all ended while the import stayed open,
// which happens when a worker dies between finishing a task and updating the
// import. Such an import completes if every batch succeeded and fails
// otherwise.
func (s *Service) Sweep(ctx context.Context) error {
	stalled, err := s.store.Stalled(ctx)
	if err != nil {
		return err
	}
	for _, st := range stalled {
		if st.Status == domain.StatusProcessing && st.FailedTasks == 0 {
			err = s.completeDrained(ctx, st.ID)
		} else {
			reason := st.LastError
			if reason == "" {
				reason = "import tasks ended without finishing the import"
			}
			err = s.failImport(ctx, st.ID, reason)
		}
		if err != nil && !errors.Is(err, domain.ErrConcurrentTransition) {
			s.log.Errorw("settling stalled import failed", "import_id", st.ID, "status", st.Status, "error", err)
			continue
		}
		s.log.Infow("stalled import settled", "import_id", st.ID, "status", st.Status, "failed_tasks", st.FailedTasks)
	}
	return nil
}

func (s *Service) completeDrained(ctx context.Context, id string) error {
	done, err := s.store.CompleteIfDrained(ctx, id, s.now())
	if err != nil {
		return fmt.Errorf("complete import: %w", err)
	}
	if !done {
		return nil
	}

	imp, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	metrics.RecordTransition(string(imp.Status))
	s.log.Infow("import completed", "import_id", imp.ID, "processed", imp.ProcessedRows, "succeeded", imp.SuccessRows, "failed", imp.ErrorRows)
	s.notify("processing completed", imp, func() error { return s.notifier.ProcessingCompleted(ctx, imp) })
	return nil
}

func (s *Service) failImport(ctx context.Context, id, reason string) error {
	imp, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if imp.Status.IsTerminal() {
		return nil
	}
	from := imp.Status
	if err := imp.Fail(s.now(), reason); err != nil {
		return err
	}
	if err := s.transition(ctx, imp, from, nil); err != nil {
		return err
	}
	s.notify("failure", imp, func() error { return s.notifier.ImportFailed(ctx, imp) })
	return nil
}

func (s *Service) transition(ctx context.Context, imp *domain.Import, from domain.Status, tasks []domain.Task) error {
	if err := s.store.Transition(ctx, imp, from, tasks); err != nil {
		return fmt.Errorf("store %s transition: %w", imp.Status, err)
	}
	metrics.RecordTransition(string(imp.Status))
	s.log.Infow("import transition", "import_id", imp.ID, "from", from, "to", imp.Status, "tasks", len(tasks))
	return nil
}

func (s *Service) notify(what string, imp *domain.Import, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		s.log.Warnw("notification failed", "notification", what, "import_id", imp.ID, "error", err)
	}
}
