package importing

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending              Status = "PENDING"
	StatusAnalyzing            Status = "ANALYZING"
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusProcessing           Status = "PROCESSING"
	StatusCompleted            Status = "COMPLETED"
	StatusFailed               Status = "FAILED"
	StatusCancelled            Status = "CANCELLED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Kind string

const (
	KindCustomer Kind = "CUSTOMER"
	KindEnergy   Kind = "ENERGY"
	KindContact  Kind = "CONTACT"
	KindFull     Kind = "FULL"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(raw))); k {
	case KindCustomer, KindEnergy, KindContact, KindFull:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}

type Import struct {
	ID               string
	OriginalFilename string
	StoredFilename   string
	Kind             Kind
	Status           Status
	TotalRows        int
	LastRow          int
	ProcessedRows    int
	SuccessRows      int
	ErrorRows        int
	OwnerID          string
	ErrorMessage     string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// NewImport returns an import in its entry state.
func NewImport(file FileInfo, kind Kind, ownerID string, now time.Time) *Import {
	return &Import{
		OriginalFilename: file.OriginalName,
		StoredFilename:   file.StoredName,
		Kind:             kind,
		Status:           StatusPending,
		OwnerID:          ownerID,
		CreatedAt:        now,
	}
}

func (i *Import) StartAnalysis(now time.Time) error {
	if i.Status != StatusPending {
		return i.transitionError("start analysis")
	}
	i.Status = StatusAnalyzing
	i.markStarted(now)
	return nil
}

// FinishAnalysis freezes the row count; it does not change afterwards.
func (i *Import) FinishAnalysis(totalRows int) error {
	if i.Status != StatusAnalyzing {
		return i.transitionError("finish analysis")
	}
	i.TotalRows = totalRows
	i.Status = StatusAwaitingConfirmation
	return nil
}

func (i *Import) ConfirmProcessing(now time.Time) error {
	if i.Status != StatusAwaitingConfirmation {
		return i.transitionError("confirm processing")
	}
	i.Status = StatusProcessing
	i.markStarted(now)
	return nil
}

func (i *Import) Complete(now time.Time) error {
	if i.Status != StatusProcessing {
		return i.transitionError("complete")
	}
	i.Status = StatusCompleted
	i.CompletedAt = &now
	return nil
}

func (i *Import) Fail(now time.Time, reason string) error {
	if i.Status.IsTerminal() {
		return i.transitionError("fail")
	}
	i.Status = StatusFailed
	i.ErrorMessage = reason
	i.CompletedAt = &now
	return nil
}

func (i *Import) CanCancel() bool {
	return !i.Status.IsTerminal()
}

func (i *Import) Cancel(now time.Time) error {
	if !i.CanCancel() {
		return i.transitionError("cancel")
	}
	i.Status = StatusCancelled
	i.CompletedAt = &now
	return nil
}

func (i *Import) markStarted(now time.Time) {
	if i.StartedAt == nil {
		i.StartedAt = &now
	}
}

func (i *Import) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s import %s in status %s", ErrInvalidTransition, action, i.ID, i.Status)
}

// BatchWindows splits the sheet rows 2..LastRow (row 1 being the header)
// into inclusive windows of at most size rows. Blank rows inside a window
// are skipped by the reader.
func (i *Import) BatchWindows(size int) []RowWindow {
	if size <= 0 || i.LastRow < 2 {
		return nil
	}
	last := i.LastRow
	windows := make([]RowWindow, 0, (last-1+size-1)/size)
	for start := 2; start <= last; start += size {
		end := start + size - 1
		if end > last {
			end = last
		}
		windows = append(windows, RowWindow{Start: start, End: end})
	}
	return windows
}

type RowWindow struct {
	Start int
	End   int
}
