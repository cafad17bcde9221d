package importing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/metrics"
)

const maxChangeRecords = 50

type analysisStore interface {
	UpdateRowCounts(ctx context.Context, id string, total, lastRow int) error
	ResetAnalysis(ctx context.Context, id string) error
	AddErrors(ctx context.Context, errs []domain.ImportError) error
	SaveResults(ctx context.Context, id string, results []domain.AnalysisResult) error
}

// Analyzer is the dry run: it reads every row, matches it and counts what
// processing would do, without touching CRM records.
type Analyzer struct {
	store      analysisStore
	crm        crm.Reader
	reader     SpreadsheetReader
	files      FileStorage
	normalizer *Normalizer
	batchSize  int
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewAnalyzer(store analysisStore, crmReader crm.Reader, reader SpreadsheetReader, files FileStorage, normalizer *Normalizer, batchSize int, log *zap.SugaredLogger) *Analyzer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Analyzer{
		store:      store,
		crm:        crmReader,
		reader:     reader,
		files:      files,
		normalizer: normalizer,
		batchSize:  batchSize,
		log:        log,
		now:        time.Now,
	}
}

type tally struct {
	counts    map[domain.Operation]map[domain.EntityType]int
	details   map[domain.EntityType][]domain.ChangeRecord
	rows      int
	errorRows int
	pending   []domain.ImportError
}

func newTally() *tally {
	return &tally{
		counts: map[domain.Operation]map[domain.EntityType]int{
			domain.OperationCreate: {},
			domain.OperationUpdate: {},
			domain.OperationSkip:   {},
		},
		details: map[domain.EntityType][]domain.ChangeRecord{},
	}
}

type rowOutcome struct {
	entity    domain.EntityType
	operation domain.Operation
	change    *domain.ChangeRecord
}

func (a *Analyzer) Analyze(ctx context.Context, imp *domain.Import) (domain.AnalysisImpact, error) {
	log := a.log.With("import_id", imp.ID)
	path := a.files.Path(imp.StoredFilename)

	headers, err := a.reader.Headers(ctx, path)
	if err != nil {
		return domain.AnalysisImpact{}, fmt.Errorf("%w: %v", ErrReadFile, err)
	}
	if err := ValidateHeaders(headers); err != nil {
		return domain.AnalysisImpact{}, err
	}

	count, err := a.reader.CountRows(ctx, path)
	if err != nil {
		return domain.AnalysisImpact{}, fmt.Errorf("%w: %v", ErrReadFile, err)
	}
	if err := a.store.UpdateRowCounts(ctx, imp.ID, count.Data, count.LastRow); err != nil {
		return domain.AnalysisImpact{}, fmt.Errorf("store row counts: %w", err)
	}
	if err := a.store.ResetAnalysis(ctx, imp.ID); err != nil {
		return domain.AnalysisImpact{}, fmt.Errorf("reset previous analysis: %w", err)
	}

	t := newTally()
	var stepErr error
	err = a.reader.ReadRowsInBatches(ctx, path, a.batchSize, func(batch []domain.SheetRow) error {
		for _, row := range batch {
			if stepErr = ctx.Err(); stepErr != nil {
				return stepErr
			}
			a.analyzeRow(ctx, imp, row, t)
		}
		stepErr = a.flush(ctx, t)
		return stepErr
	})
	if stepErr != nil {
		return domain.AnalysisImpact{}, stepErr
	}
	if err != nil {
		return domain.AnalysisImpact{}, fmt.Errorf("%w: %v", ErrReadFile, err)
	}
	if err := a.flush(ctx, t); err != nil {
		return domain.AnalysisImpact{}, err
	}

	// A row whose only values sit under blank headers is not a data row. The
	// total is frozen from this count when analysis finishes.
	total := t.rows

	results := t.results(imp.ID)
	if err := a.store.SaveResults(ctx, imp.ID, results); err != nil {
		return domain.AnalysisImpact{}, fmt.Errorf("save analysis results: %w", err)
	}

	impact := domain.NewAnalysisImpact(
		t.counts[domain.OperationCreate],
		t.counts[domain.OperationUpdate],
		t.counts[domain.OperationSkip],
		total,
		t.errorRows,
	)
	log.Infow("import analysed",
		"total_rows", total,
		"creations", impact.TotalCreations(),
		"updates", impact.TotalUpdates(),
		"skips", impact.TotalSkips(),
		"error_rows", impact.ErrorRows(),
	)
	return impact, nil
}

func (a *Analyzer) analyzeRow(ctx context.Context, imp *domain.Import, row domain.SheetRow, t *tally) {
	fields := a.normalizer.Normalize(row.Cells)
	if fields.IsEmpty() {
		return
	}
	t.rows++

	if err := validateRequired(fields); err != nil {
		t.fail(imp.ID, row.Number, fields, err, a.now())
		metrics.RecordRow(string(domain.PhaseAnalysis), "invalid")
		return
	}

	var outcomes []rowOutcome
	err := guardRow(func() error {
		var err error
		outcomes, err = a.classify(ctx, imp, row.Number, fields)
		return err
	})
	if err != nil {
		t.fail(imp.ID, row.Number, fields, err, a.now())
		metrics.RecordRow(string(domain.PhaseAnalysis), "error")
		return
	}

	for _, o := range outcomes {
		t.counts[o.operation][o.entity]++
		if o.change != nil && len(t.details[o.entity]) < maxChangeRecords {
			t.details[o.entity] = append(t.details[o.entity], *o.change)
		}
	}
	for _, w := range validateOptional(fields) {
		t.pending = append(t.pending, domain.ImportError{
			ImportID:  imp.ID,
			Phase:     domain.PhaseAnalysis,
			Row:       row.Number,
			Severity:  domain.SeverityWarning,
			Message:   w.Message,
			Field:     w.Field,
			CreatedAt: a.now(),
		})
	}
	metrics.RecordRow(string(domain.PhaseAnalysis), "ok")
}

func (a *Analyzer) classify(ctx context.Context, imp *domain.Import, rowNumber int, fields Fields) ([]rowOutcome, error) {
	matcher := NewMatcher(a.crm)
	outcomes := make([]rowOutcome, 0, 3)

	customer, err := matcher.Customer(ctx, fields)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		outcomes = append(outcomes, rowOutcome{entity: domain.EntityCustomer, operation: domain.OperationCreate})
	} else {
		outcomes = append(outcomes, classifyExisting(domain.EntityCustomer, rowNumber, customer.Name, CustomerChanges(*customer, fields)))
	}

	if fields.HasContactData() {
		contact, err := matcher.Contact(ctx, customer, fields)
		if err != nil {
			return nil, err
		}
		if contact == nil {
			outcomes = append(outcomes, rowOutcome{entity: domain.EntityContact, operation: domain.OperationCreate})
		} else {
			outcomes = append(outcomes, classifyExisting(domain.EntityContact, rowNumber, contact.DisplayName(), ContactChanges(*contact, fields)))
		}
	}

	if imp.Kind == domain.KindFull && fields.HasEnergyData() {
		energy, err := matcher.Energy(ctx, customer, fields)
		if err != nil {
			return nil, err
		}
		if energy == nil {
			outcomes = append(outcomes, rowOutcome{entity: domain.EntityEnergy, operation: domain.OperationCreate})
		} else {
			label := string(energy.Type) + " " + energy.Code
			outcomes = append(outcomes, classifyExisting(domain.EntityEnergy, rowNumber, label, EnergyChanges(*energy, fields)))
		}
	}

	return outcomes, nil
}

func classifyExisting(entity domain.EntityType, rowNumber int, label string, changes ChangeSet) rowOutcome {
	if !changes.HasChanges() {
		return rowOutcome{entity: entity, operation: domain.OperationSkip}
	}
	return rowOutcome{
		entity:    entity,
		operation: domain.OperationUpdate,
		change:    &domain.ChangeRecord{Row: rowNumber, Label: label, Changes: changes},
	}
}

func (a *Analyzer) flush(ctx context.Context, t *tally) error {
	if len(t.pending) == 0 {
		return nil
	}
	if err := a.store.AddErrors(ctx, t.pending); err != nil {
		return fmt.Errorf("store row errors: %w", err)
	}
	t.pending = nil
	return nil
}

func (t *tally) fail(importID string, rowNumber int, fields Fields, err error, now time.Time) {
	t.errorRows++
	t.pending = append(t.pending, rowErrorRecord(importID, domain.PhaseAnalysis, rowNumber, fields, err, now))
}

func (t *tally) results(importID string) []domain.AnalysisResult {
	var results []domain.AnalysisResult
	for _, op := range []domain.Operation{domain.OperationCreate, domain.OperationUpdate, domain.OperationSkip} {
		for _, entity := range domain.EntityTypes {
			count := t.counts[op][entity]
			if count == 0 {
				continue
			}
			result := domain.AnalysisResult{ImportID: importID, Operation: op, EntityType: entity, Count: count}
			if op == domain.OperationUpdate {
				result.Details = t.details[entity]
			}
			results = append(results, result)
		}
	}
	return results
}
