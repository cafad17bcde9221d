package importing

// Cell is one raw spreadsheet value under its column header. Rows keep cells
// in column order because the same header may appear twice.
type Cell struct {
	Header string
	Value  any
}

type SheetRow struct {
	Number int
	Cells  []Cell
}

// RowCount describes the data rows of a sheet: how many hold a value, and the
// number of the last one (0 when there is none).
type RowCount struct {
	Data    int
	LastRow int
}
