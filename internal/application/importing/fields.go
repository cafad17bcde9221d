package importing

import (
	"strconv"
	"strings"
	"time"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
)

// Fields is one normalized row: canonical field key to string, float64,
// time.Time or nil. Keys of columns present in the file are kept even when
// the cell is empty.
type Fields map[string]any

func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f Fields) String(key string) string {
	return stringValue(f[key])
}

func (f Fields) Date(key string) *time.Time {
	if t, ok := f[key].(time.Time); ok {
		return &t
	}
	return nil
}

func (f Fields) IsEmpty() bool {
	for _, v := range f {
		if !isBlank(v) {
			return false
		}
	}
	return true
}

func (f Fields) CustomerName() string { return f.String(FieldName) }
func (f Fields) Siret() string        { return f.String(FieldSiret) }
func (f Fields) LeadOrigin() string   { return f.String(FieldLeadOrigin) }
func (f Fields) Email() string        { return f.String(FieldEmail) }
func (f Fields) Phone() string        { return f.String(FieldPhone) }
func (f Fields) Mobile() string       { return f.String(FieldMobile) }
func (f Fields) MeterCode() string    { return f.String(FieldMeterCode) }
func (f Fields) Provider() string     { return f.String(FieldProvider) }
func (f Fields) Commercial() string   { return f.String(FieldCommercial) }
func (f Fields) Comment() string      { return f.String(FieldComment) }

func (f Fields) ContractEnd() *time.Time { return f.Date(FieldContractEnd) }

func (f Fields) EnergyType() crm.EnergyType {
	return crm.ParseEnergyType(f.String(FieldEnergyType))
}

// ContactNames returns first and last name, splitting a combined contact
// column on its first space when no separate columns are filled.
func (f Fields) ContactNames() (string, string) {
	first, last := f.String(FieldContactFirstName), f.String(FieldContactLastName)
	if first != "" || last != "" {
		return first, last
	}
	parts := strings.Fields(f.String(FieldContact))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func (f Fields) ContactDisplayName() string {
	if combined := f.String(FieldContact); combined != "" {
		return strings.Join(strings.Fields(combined), " ")
	}
	first, last := f.ContactNames()
	return strings.TrimSpace(first + " " + last)
}

func (f Fields) HasContactData() bool {
	return f.ContactDisplayName() != "" || f.Email() != "" || f.Phone() != "" || f.Mobile() != ""
}

// HasEnergyData is true when a meter column exists (even empty) or a provider
// or energy type is given.
func (f Fields) HasEnergyData() bool {
	return f.Has(FieldMeterCode) || f.Provider() != "" || f.String(FieldEnergyType) != ""
}

func (f Fields) ContactQuery(customerID string) crm.ContactQuery {
	return crm.ContactQuery{
		CustomerID:  customerID,
		DisplayName: f.ContactDisplayName(),
		Email:       f.Email(),
		Phone:       f.Phone(),
		Mobile:      f.Mobile(),
	}
}

// Snapshot renders the row as JSON-friendly values for error reports.
func (f Fields) Snapshot() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		if t, ok := v.(time.Time); ok {
			out[k] = t.Format("2006-01-02")
			continue
		}
		out[k] = v
	}
	return out
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return ""
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
