package crm

import (
	"strings"
	"time"
)

const DefaultLeadOrigin = "Import Excel"

type EnergyType string

const (
	EnergyElec EnergyType = "ELEC"
	EnergyGas  EnergyType = "GAS"
)

// ParseEnergyType maps free-form spreadsheet values to an energy type.
// Anything unrecognized is electricity.
func ParseEnergyType(raw string) EnergyType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "GAZ", "GAS", "G":
		return EnergyGas
	default:
		return EnergyElec
	}
}

type User struct {
	ID    string
	Email string
	Name  string
}

type Customer struct {
	ID         string
	Name       string
	Siret      string
	LeadOrigin string
	UserID     *string
}

type Contact struct {
	ID         string
	CustomerID string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Mobile     string
}

func (c Contact) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// PhoneNumber returns the landline when set, the mobile otherwise.
func (c Contact) PhoneNumber() string {
	if c.Phone != "" {
		return c.Phone
	}
	return c.Mobile
}

type Provider struct {
	ID   string
	Name string
}

type Energy struct {
	ID          string
	CustomerID  string
	Type        EnergyType
	Code        string
	ProviderID  *string
	Provider    *Provider
	ContractEnd *time.Time
}

func (e Energy) ProviderName() string {
	if e.Provider == nil {
		return ""
	}
	return e.Provider.Name
}

type Comment struct {
	ID         string
	CustomerID string
	Content    string
	CreatedAt  time.Time
}

// ContactQuery describes the natural key used to recognise an existing contact.
type ContactQuery struct {
	CustomerID  string
	DisplayName string
	Email       string
	Phone       string
	Mobile      string
}

// Matches applies the contact identity rule: same customer, same display name
// and the same email, or a phone or mobile found among the contact's numbers.
// Comparison is case-insensitive. A query with no email, phone or mobile
// matches on the name alone.
func (q ContactQuery) Matches(c Contact) bool {
	if c.CustomerID != q.CustomerID {
		return false
	}
	if !strings.EqualFold(c.DisplayName(), strings.TrimSpace(q.DisplayName)) {
		return false
	}
	if q.Email == "" && q.Phone == "" && q.Mobile == "" {
		return true
	}
	if q.Email != "" && strings.EqualFold(c.Email, q.Email) {
		return true
	}
	for _, number := range []string{q.Phone, q.Mobile} {
		if number != "" && (c.Phone == number || c.Mobile == number) {
			return true
		}
	}
	return false
}
