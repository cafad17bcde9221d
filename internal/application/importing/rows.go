package importing

import (
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

// guardRow turns a panic on malformed row data into a row error.
func guardRow(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected row data: %v", r)
		}
	}()
	return fn()
}

func rowErrorRecord(importID string, phase domain.Phase, rowNumber int, fields Fields, err error, now time.Time) domain.ImportError {
	record := domain.ImportError{
		ImportID:  importID,
		Phase:     phase,
		Row:       rowNumber,
		Severity:  domain.SeverityError,
		Message:   truncateReason(err.Error()),
		RawData:   fields.Snapshot(),
		CreatedAt: now,
	}
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		record.Field = rowErr.Field
		record.Message = rowErr.Message
	}
	return record
}
