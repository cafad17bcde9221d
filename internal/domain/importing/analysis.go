package importing

import "time"

type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationSkip   Operation = "SKIP"
)

type EntityType string

const (
	EntityCustomer EntityType = "customer"
	EntityContact  EntityType = "contact"
	EntityEnergy   EntityType = "energy"
)

var EntityTypes = []EntityType{EntityCustomer, EntityContact, EntityEnergy}

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Phase tells which pass recorded a row error.
type Phase string

const (
	PhaseAnalysis   Phase = "analysis"
	PhaseProcessing Phase = "processing"
)

type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

type ChangeRecord struct {
	Row     int                    `json:"row"`
	Label   string                 `json:"label"`
	Changes map[string]FieldChange `json:"changes"`
}

type AnalysisResult struct {
	ID         string
	ImportID   string
	Operation  Operation
	EntityType EntityType
	Count      int
	Details    []ChangeRecord
}

type ImportError struct {
	ID        string
	ImportID  string
	Phase     Phase
	Row       int
	Severity  Severity
	Message   string
	Field     string
	RawData   map[string]any
	CreatedAt time.Time
}

// AnalysisImpact is the projected effect of one analysis pass.
type AnalysisImpact struct {
	creations map[EntityType]int
	updates   map[EntityType]int
	skips     map[EntityType]int
	totalRows int
	errorRows int
}

func NewAnalysisImpact(creations, updates, skips map[EntityType]int, totalRows, errorRows int) AnalysisImpact {
	return AnalysisImpact{
		creations: copyCounts(creations),
		updates:   copyCounts(updates),
		skips:     copyCounts(skips),
		totalRows: totalRows,
		errorRows: errorRows,
	}
}

// ImpactFromResults rebuilds an impact from persisted analysis results.
func ImpactFromResults(results []AnalysisResult, totalRows, errorRows int) AnalysisImpact {
	creations := map[EntityType]int{}
	updates := map[EntityType]int{}
	skips := map[EntityType]int{}
	for _, r := range results {
		switch r.Operation {
		case OperationCreate:
			creations[r.EntityType] += r.Count
		case OperationUpdate:
			updates[r.EntityType] += r.Count
		case OperationSkip:
			skips[r.EntityType] += r.Count
		}
	}
	return AnalysisImpact{creations: creations, updates: updates, skips: skips, totalRows: totalRows, errorRows: errorRows}
}

func (a AnalysisImpact) Creations() map[EntityType]int { return copyCounts(a.creations) }
func (a AnalysisImpact) Updates() map[EntityType]int   { return copyCounts(a.updates) }
func (a AnalysisImpact) Skips() map[EntityType]int     { return copyCounts(a.skips) }
func (a AnalysisImpact) TotalRows() int                { return a.totalRows }
func (a AnalysisImpact) ErrorRows() int                { return a.errorRows }

func (a AnalysisImpact) TotalCreations() int { return sumCounts(a.creations) }
func (a AnalysisImpact) TotalUpdates() int   { return sumCounts(a.updates) }
func (a AnalysisImpact) TotalSkips() int     { return sumCounts(a.skips) }

func (a AnalysisImpact) SuccessRate() float64 {
	if a.totalRows == 0 {
		return 100.0
	}
	return float64(a.totalRows-a.errorRows) / float64(a.totalRows) * 100
}

func copyCounts(in map[EntityType]int) map[EntityType]int {
	out := make(map[EntityType]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sumCounts(in map[EntityType]int) int {
	total := 0
	for _, v := range in {
		total += v
	}
	return total
}
