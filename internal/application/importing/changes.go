package importing

import (
	"strings"
	"time"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

// ChangeSet lists, per field, what a row would change on an existing record.
// It reports differences only; the processor decides separately what is safe
// to write.
type ChangeSet map[string]domain.FieldChange

func (c ChangeSet) HasChanges() bool {
	return len(c) > 0
}

func (c ChangeSet) add(field string, from, to any) {
	c[field] = domain.FieldChange{Old: from, New: to}
}

// CustomerChanges: the name is always eligible; SIRET and lead origin only
// count when nothing is stored yet.
func CustomerChanges(existing crm.Customer, f Fields) ChangeSet {
	changes := ChangeSet{}
	if name := f.CustomerName(); name != "" && !strings.EqualFold(name, existing.Name) {
		changes.add("name", existing.Name, name)
	}
	if siret := f.Siret(); siret != "" && existing.Siret == "" {
		changes.add("siret", nil, siret)
	}
	if origin := f.LeadOrigin(); origin != "" && existing.LeadOrigin == "" {
		changes.add("lead_origin", nil, origin)
	}
	return changes
}

func ContactChanges(existing crm.Contact, f Fields) ChangeSet {
	changes := ChangeSet{}
	first, last := f.ContactNames()
	if first != "" && !strings.EqualFold(first, existing.FirstName) {
		changes.add("firstname", existing.FirstName, first)
	}
	if last != "" && !strings.EqualFold(last, existing.LastName) {
		changes.add("lastname", existing.LastName, last)
	}
	if email := f.Email(); email != "" && !strings.EqualFold(email, existing.Email) {
		changes.add("email", existing.Email, email)
	}
	if phone := f.Phone(); phone != "" && phone != existing.PhoneNumber() {
		changes.add("phone", existing.PhoneNumber(), phone)
	}
	return changes
}

// EnergyChanges flags any contract end difference, including a move
// backwards that the processor will refuse to write.
func EnergyChanges(existing crm.Energy, f Fields) ChangeSet {
	changes := ChangeSet{}
	if code := f.MeterCode(); code != "" && code != existing.Code {
		changes.add("code", existing.Code, code)
	}
	if provider := f.Provider(); provider != "" && (existing.Provider == nil || !strings.EqualFold(provider, existing.ProviderName())) {
		changes.add("provider", nullable(existing.ProviderName()), provider)
	}
	if end := f.ContractEnd(); end != nil {
		switch {
		case existing.ContractEnd == nil:
			changes.add("contract_end", nil, end.Format("2006-01-02"))
		case !sameDay(*existing.ContractEnd, *end):
			changes.add("contract_end", existing.ContractEnd.Format("2006-01-02"), end.Format("2006-01-02"))
		}
	}
	return changes
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
