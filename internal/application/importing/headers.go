package importing

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type HeaderCollision struct {
	Field   string
	Columns []string
}

// HeaderValidationError rejects a whole file. It is never retried.
type HeaderValidationError struct {
	Collisions []HeaderCollision
}

func (e *HeaderValidationError) Error() string {
	parts := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		parts = append(parts, fmt.Sprintf("field %q is mapped by columns %s", c.Field, strings.Join(c.Columns, ", ")))
	}
	return "duplicate columns in header row: " + strings.Join(parts, "; ")
}

// ValidateHeaders fails when two columns resolve to the same field. Two
// "name" columns are fine: the second one is the contact last name.
func ValidateHeaders(headers []string) error {
	keys := ResolveKeys(headers)

	columns := make(map[string][]int, len(keys))
	order := make([]string, 0, len(keys))
	for i, key := range keys {
		if key == "" {
			continue
		}
		if _, seen := columns[key]; !seen {
			order = append(order, key)
		}
		columns[key] = append(columns[key], i+1)
	}

	var collisions []HeaderCollision
	for _, key := range order {
		idx := columns[key]
		if len(idx) < 2 {
			continue
		}
		letters := make([]string, 0, len(idx))
		for _, n := range idx {
			letters = append(letters, columnName(n))
		}
		collisions = append(collisions, HeaderCollision{Field: key, Columns: letters})
	}
	if len(collisions) > 0 {
		return &HeaderValidationError{Collisions: collisions}
	}
	return nil
}

func columnName(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return fmt.Sprintf("#%d", n)
	}
	return name
}
