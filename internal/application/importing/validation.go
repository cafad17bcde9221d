package importing

import (
	"errors"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const maxCustomerNameLength = 255

// RowError is a problem confined to one row.
type RowError struct {
	Field   string
	Message string
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// validateRequired checks the fields a row cannot be imported without.
func validateRequired(f Fields) error {
	raw := f[FieldName]
	if raw == nil {
		return &RowError{Field: FieldName, Message: "customer name is required"}
	}
	name, ok := raw.(string)
	if !ok {
		return &RowError{Field: FieldName, Message: "customer name must be text"}
	}

	err := validation.Validate(name,
		validation.Required.Error("customer name is required"),
		validation.By(func(value interface{}) error {
			if utf8.RuneCountInString(value.(string)) > maxCustomerNameLength {
				return errors.New("customer name must be at most 255 characters")
			}
			return nil
		}),
	)
	if err != nil {
		return &RowError{Field: FieldName, Message: err.Error()}
	}
	return nil
}

// validateOptional reports suspicious but importable values as warnings.
func validateOptional(f Fields) []RowError {
	var warnings []RowError
	if email := f.Email(); email != "" {
		if err := validation.Validate(email, is.EmailFormat); err != nil {
			warnings = append(warnings, RowError{Field: FieldEmail, Message: "email looks invalid: " + err.Error()})
		}
	}
	return warnings
}
