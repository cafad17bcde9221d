package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

var (
	ErrNoSheet  = errors.New("workbook has no sheet")
	ErrNoHeader = errors.New("sheet has no header row")

	errStop = errors.New("stop reading")
)

// ExcelReader streams the first sheet of a workbook. Values are raw cell
// values: dates come through as serial numbers and are converted by the
// caller.
type ExcelReader struct{}

func NewExcelReader() *ExcelReader {
	return &ExcelReader{}
}

func (r *ExcelReader) Headers(ctx context.Context, path string) ([]string, error) {
	var headers []string
	err := r.scan(ctx, path, func(number int, values []string) error {
		headers = make([]string, len(values))
		for i, v := range values {
			headers[i] = strings.TrimSpace(v)
		}
		return errStop
	})
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, ErrNoHeader
	}
	return headers, nil
}

// CountRows skips blank rows wherever they are in the sheet.
func (r *ExcelReader) CountRows(ctx context.Context, path string) (domain.RowCount, error) {
	var count domain.RowCount
	err := r.scan(ctx, path, func(number int, values []string) error {
		if number > 1 && !blankRow(values) {
			count.Data++
			count.LastRow = number
		}
		return nil
	})
	if err != nil {
		return domain.RowCount{}, err
	}
	return count, nil
}

func (r *ExcelReader) ReadRowsInBatches(ctx context.Context, path string, batchSize int, fn func(batch []domain.SheetRow) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}

	var headers []string
	batch := make([]domain.SheetRow, 0, batchSize)
	err := r.scan(ctx, path, func(number int, values []string) error {
		if number == 1 {
			headers = values
			return nil
		}
		if blankRow(values) {
			return nil
		}
		batch = append(batch, toSheetRow(number, headers, values))
		if len(batch) < batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]domain.SheetRow, 0, batchSize)
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// ReadRange calls fn for each non-blank row numbered startRow..endRow.
func (r *ExcelReader) ReadRange(ctx context.Context, path string, startRow, endRow int, fn func(row domain.SheetRow) error) error {
	if startRow < 2 {
		startRow = 2
	}

	var headers []string
	return r.scan(ctx, path, func(number int, values []string) error {
		if number == 1 {
			headers = values
			return nil
		}
		if number > endRow {
			return errStop
		}
		if number < startRow || blankRow(values) {
			return nil
		}
		return fn(toSheetRow(number, headers, values))
	})
}

func (r *ExcelReader) scan(ctx context.Context, path string, fn func(number int, values []string) error) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open excel file %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return fmt.Errorf("%w: %s", ErrNoSheet, path)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	number := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		number++
		values, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("read row %d: %w", number, err)
		}
		if err := fn(number, values); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("iterate sheet %s: %w", sheet, err)
	}
	return nil
}

func toSheetRow(number int, headers, values []string) domain.SheetRow {
	cells := make([]domain.Cell, len(headers))
	for i, header := range headers {
		cells[i] = domain.Cell{Header: strings.TrimSpace(header)}
		if i < len(values) {
			cells[i].Value = cellValue(values[i])
		}
	}
	return domain.SheetRow{Number: number, Cells: cells}
}

// cellValue keeps text as is; numbers stored in scientific notation (long
// SIRETs and meter codes) are written back out in full.
func cellValue(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if strings.ContainsAny(raw, "eE") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return raw
}

func blankRow(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
