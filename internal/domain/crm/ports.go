package crm

import "context"

// Finders return (nil, nil) when nothing matches.
type Reader interface {
	FindCustomerBySiret(ctx context.Context, siret string) (*Customer, error)
	FindCustomerByName(ctx context.Context, name string) (*Customer, error)
	FindContact(ctx context.Context, q ContactQuery) (*Contact, error)
	FindEnergyByCode(ctx context.Context, code string, energyType EnergyType) (*Energy, error)
	ListCustomerEnergies(ctx context.Context, customerID string, energyType EnergyType) ([]Energy, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

// Writer persists entities. Save methods create when ID is empty and return
// ErrDuplicateKey when a natural-key unique index rejects the write.
type Writer interface {
	Reader
	SaveCustomer(ctx context.Context, c *Customer) error
	SaveContact(ctx context.Context, c *Contact) error
	SaveEnergy(ctx context.Context, e *Energy) error
	EnsureProvider(ctx context.Context, name string) (*Provider, error)
	HasComment(ctx context.Context, customerID, content string) (bool, error)
	AddComment(ctx context.Context, c *Comment) error
}

// Store runs fn inside one transaction; an error from fn rolls it back.
type Store interface {
	Writer
	WithinTx(ctx context.Context, fn func(tx Writer) error) error
}
