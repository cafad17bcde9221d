package importing

import (
	"context"
	"fmt"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
)

// Matcher finds the existing records a row refers to. It only reads.
type Matcher struct {
	crm crm.Reader
}

func NewMatcher(r crm.Reader) Matcher {
	return Matcher{crm: r}
}

// Customer matches by SIRET first, then by exact name.
func (m Matcher) Customer(ctx context.Context, f Fields) (*crm.Customer, error) {
	if siret := f.Siret(); siret != "" {
		c, err := m.crm.FindCustomerBySiret(ctx, siret)
		if err != nil {
			return nil, fmt.Errorf("find customer by siret: %w", err)
		}
		if c != nil {
			return c, nil
		}
	}

	name := f.CustomerName()
	if name == "" {
		return nil, nil
	}
	c, err := m.crm.FindCustomerByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find customer by name: %w", err)
	}
	return c, nil
}

// Contact needs an already resolved customer.
func (m Matcher) Contact(ctx context.Context, customer *crm.Customer, f Fields) (*crm.Contact, error) {
	if customer == nil || customer.ID == "" || !f.HasContactData() {
		return nil, nil
	}
	c, err := m.crm.FindContact(ctx, f.ContactQuery(customer.ID))
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return c, nil
}

// Energy matches by meter code across all customers, then falls back to the
// customer's single energy of the row's type. With a provider or without one
// the fallback is the same rule. A row carrying an unknown meter code only
// falls back onto an energy that has no code yet.
func (m Matcher) Energy(ctx context.Context, customer *crm.Customer, f Fields) (*crm.Energy, error) {
	energyType := f.EnergyType()
	code := f.MeterCode()

	if code != "" {
		e, err := m.crm.FindEnergyByCode(ctx, code, energyType)
		if err != nil {
			return nil, fmt.Errorf("find energy by code: %w", err)
		}
		if e != nil {
			return e, nil
		}
	}

	if customer == nil || customer.ID == "" {
		return nil, nil
	}
	energies, err := m.crm.ListCustomerEnergies(ctx, customer.ID, energyType)
	if err != nil {
		return nil, fmt.Errorf("list customer energies: %w", err)
	}
	if len(energies) != 1 {
		return nil, nil
	}
	only := energies[0]
	if code != "" && only.Code != "" {
		return nil, nil
	}
	return &only, nil
}
