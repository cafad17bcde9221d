package importing

import (
	"errors"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

var (
	ErrInvalidUpload  = errors.New("invalid import upload")
	ErrReadFile       = errors.New("failed to read import file")
	ErrImportNotFound = domain.ErrImportNotFound
	ErrInvalidState   = domain.ErrInvalidTransition
	ErrConflict       = domain.ErrConcurrentTransition
	errBatchStopped   = errors.New("batch stopped")
)

// retryable reports whether a failed task may run again.
func retryable(err error) bool {
	var headerErr *HeaderValidationError
	return !errors.As(err, &headerErr)
}
