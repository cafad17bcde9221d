package importing

import "errors"

var (
	ErrImportNotFound       = errors.New("import not found")
	ErrInvalidTransition    = errors.New("invalid import transition")
	ErrConcurrentTransition = errors.New("import was modified concurrently")
	ErrInvalidKind          = errors.New("invalid import kind")
)
