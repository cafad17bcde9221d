package importing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
	"github.com/mohammadpnp/energy-crm/internal/metrics"
)

const maxConflictRetries = 3

type processingStore interface {
	Status(ctx context.Context, id string) (domain.Status, error)
	RecordRow(ctx context.Context, outcome domain.RowOutcome) error
}

type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
	Stopped   bool
}

// Processor applies rows to CRM records. Every row is its own transaction: a
// failing row is rolled back and recorded, and the batch moves on.
type Processor struct {
	store      processingStore
	crm        crm.Store
	reader     SpreadsheetReader
	files      FileStorage
	normalizer *Normalizer
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewProcessor(store processingStore, crmStore crm.Store, reader SpreadsheetReader, files FileStorage, normalizer *Normalizer, log *zap.SugaredLogger) *Processor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Processor{
		store:      store,
		crm:        crmStore,
		reader:     reader,
		files:      files,
		normalizer: normalizer,
		log:        log,
		now:        time.Now,
	}
}

// ProcessBatch handles the task's spreadsheet rows, resuming after the last
// row an earlier attempt recorded. It stops early, without error, once the
// import leaves PROCESSING.
func (p *Processor) ProcessBatch(ctx context.Context, imp *domain.Import, task domain.Task) (BatchResult, error) {
	startRow := task.ResumeRow()
	log := p.log.With("import_id", imp.ID, "task_id", task.ID, "start_row", startRow, "end_row", task.EndRow)
	if startRow > task.StartRow {
		log.Infow("resuming batch", "window_start", task.StartRow)
	}
	path := p.files.Path(imp.StoredFilename)

	var result BatchResult
	var stepErr error
	err := p.reader.ReadRange(ctx, path, startRow, task.EndRow, func(row domain.SheetRow) error {
		if stepErr = ctx.Err(); stepErr != nil {
			return stepErr
		}
		status, err := p.store.Status(ctx, imp.ID)
		if err != nil {
			stepErr = fmt.Errorf("read import status: %w", err)
			return stepErr
		}
		if status != domain.StatusProcessing {
			result.Stopped = true
			return errBatchStopped
		}

		stepErr = p.handleRow(ctx, imp, task.ID, row, &result)
		return stepErr
	})
	if result.Stopped {
		log.Infow("batch stopped, import is no longer processing", "processed", result.Processed)
		return result, nil
	}
	if stepErr != nil {
		return result, stepErr
	}
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrReadFile, err)
	}

	log.Infow("batch processed", "processed", result.Processed, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// handleRow returns an error only for infrastructure failures that must abort
// the batch; row failures are recorded and swallowed.
func (p *Processor) handleRow(ctx context.Context, imp *domain.Import, taskID string, row domain.SheetRow, result *BatchResult) error {
	fields := p.normalizer.Normalize(row.Cells)
	if fields.IsEmpty() {
		return nil
	}

	rowErr := validateRequired(fields)
	if rowErr == nil {
		rowErr = guardRow(func() error {
			return p.applyWithRetry(ctx, imp, fields)
		})
	}

	outcome := domain.RowOutcome{ImportID: imp.ID, TaskID: taskID, Row: row.Number, Success: rowErr == nil}
	if rowErr != nil {
		p.log.Debugw("row failed", "import_id", imp.ID, "row", row.Number, "error", rowErr)
		record := rowErrorRecord(imp.ID, domain.PhaseProcessing, row.Number, fields, rowErr, p.now())
		outcome.Error = &record
	}
	if err := p.store.RecordRow(ctx, outcome); err != nil {
		return fmt.Errorf("record row %d: %w", row.Number, err)
	}

	result.Processed++
	if rowErr != nil {
		result.Failed++
		metrics.RecordRow(string(domain.PhaseProcessing), "error")
	} else {
		result.Succeeded++
		metrics.RecordRow(string(domain.PhaseProcessing), "ok")
	}
	return nil
}

// applyWithRetry reruns a row that lost a natural-key race: the second
// attempt matches the record the other writer created.
func (p *Processor) applyWithRetry(ctx context.Context, imp *domain.Import, fields Fields) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = p.crm.WithinTx(ctx, func(tx crm.Writer) error {
			return p.applyRow(ctx, tx, imp, fields)
		})
		if !errors.Is(err, crm.ErrDuplicateKey) {
			return err
		}
	}
	return err
}

func (p *Processor) applyRow(ctx context.Context, tx crm.Writer, imp *domain.Import, fields Fields) error {
	matcher := NewMatcher(tx)

	customer, err := p.upsertCustomer(ctx, tx, matcher, fields)
	if err != nil {
		return err
	}

	if fields.HasContactData() {
		if err := p.upsertContact(ctx, tx, matcher, customer, fields); err != nil {
			return err
		}
	}

	if content := fields.Comment(); content != "" {
		exists, err := tx.HasComment(ctx, customer.ID, content)
		if err != nil {
			return fmt.Errorf("check comment: %w", err)
		}
		if !exists {
			if err := tx.AddComment(ctx, &crm.Comment{CustomerID: customer.ID, Content: content, CreatedAt: p.now()}); err != nil {
				return fmt.Errorf("add comment: %w", err)
			}
		}
	}

	if imp.Kind == domain.KindFull && fields.HasEnergyData() {
		if err := p.upsertEnergy(ctx, tx, matcher, customer, fields); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) upsertCustomer(ctx context.Context, tx crm.Writer, matcher Matcher, fields Fields) (*crm.Customer, error) {
	customer, err := matcher.Customer(ctx, fields)
	if err != nil {
		return nil, err
	}

	if customer == nil {
		customer = &crm.Customer{
			Name:       fields.CustomerName(),
			Siret:      fields.Siret(),
			LeadOrigin: fields.LeadOrigin(),
		}
		if customer.LeadOrigin == "" {
			customer.LeadOrigin = crm.DefaultLeadOrigin
		}
	} else {
		customer.Name = fields.CustomerName()
		if customer.Siret == "" {
			customer.Siret = fields.Siret()
		}
		if customer.LeadOrigin == "" {
			customer.LeadOrigin = fields.LeadOrigin()
		}
	}

	if email := fields.Commercial(); email != "" {
		user, err := tx.FindUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("find commercial user: %w", err)
		}
		if user != nil {
			customer.UserID = &user.ID
		} else {
			p.log.Debugw("commercial not found, customer left as is", "email", email)
		}
	}

	if err := tx.SaveCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}
	return customer, nil
}

func (p *Processor) upsertContact(ctx context.Context, tx crm.Writer, matcher Matcher, customer *crm.Customer, fields Fields) error {
	contact, err := matcher.Contact(ctx, customer, fields)
	if err != nil {
		return err
	}

	if contact == nil {
		first, last := fields.ContactNames()
		contact = &crm.Contact{
			CustomerID: customer.ID,
			FirstName:  first,
			LastName:   last,
			Email:      fields.Email(),
			Phone:      fields.Phone(),
			Mobile:     fields.Mobile(),
		}
	} else {
		changed := false
		fill := func(dst *string, v string) {
			if *dst == "" && v != "" {
				*dst = v
				changed = true
			}
		}
		fill(&contact.Email, fields.Email())
		fill(&contact.Phone, fields.Phone())
		fill(&contact.Mobile, fields.Mobile())
		if !changed {
			return nil
		}
	}

	if err := tx.SaveContact(ctx, contact); err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

// upsertEnergy never overwrites a meter code and only moves the contract end
// forward, so an old file cannot undo a renewal.
func (p *Processor) upsertEnergy(ctx context.Context, tx crm.Writer, matcher Matcher, customer *crm.Customer, fields Fields) error {
	energy, err := matcher.Energy(ctx, customer, fields)
	if err != nil {
		return err
	}
	if energy == nil {
		energy = &crm.Energy{Type: fields.EnergyType()}
	}

	if code := fields.MeterCode(); code != "" && energy.Code == "" {
		energy.Code = code
	}
	if name := fields.Provider(); name != "" {
		provider, err := tx.EnsureProvider(ctx, name)
		if err != nil {
			return fmt.Errorf("ensure provider: %w", err)
		}
		energy.ProviderID = &provider.ID
		energy.Provider = provider
	}
	if energy.CustomerID != customer.ID {
		energy.CustomerID = customer.ID
	}
	if end := fields.ContractEnd(); end != nil && (energy.ContractEnd == nil || end.After(*energy.ContractEnd)) {
		energy.ContractEnd = end
	}

	if err := tx.SaveEnergy(ctx, energy); err != nil {
		return fmt.Errorf("save energy: %w", err)
	}
	return nil
}
