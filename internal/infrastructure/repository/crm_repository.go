package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	"github.com/mohammadpnp/energy-crm/internal/infrastructure/db/models"
)

const uniqueViolation = "23505"

// CRMRepository reads and writes customers, contacts and energies. Inside
// WithinTx the same type runs on the transaction handle.
type CRMRepository struct {
	db *gorm.DB
}

func NewCRMRepository(db *gorm.DB) *CRMRepository {
	return &CRMRepository{db: db}
}

func (r *CRMRepository) WithinTx(ctx context.Context, fn func(tx crm.Writer) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&CRMRepository{db: tx})
	})
}

func (r *CRMRepository) FindCustomerBySiret(ctx context.Context, siret string) (*crm.Customer, error) {
	var row models.Customer
	err := r.db.WithContext(ctx).Where("siret = ?", siret).Order("created_at").Take(&row).Error
	if err != nil {
		return nil, notFoundAsNil("find customer by siret", err)
	}
	return toCustomerDomain(row), nil
}

func (r *CRMRepository) FindCustomerByName(ctx context.Context, name string) (*crm.Customer, error) {
	var row models.Customer
	err := r.db.WithContext(ctx).Where("name = ?", name).Order("created_at").Take(&row).Error
	if err != nil {
		return nil, notFoundAsNil("find customer by name", err)
	}
	return toCustomerDomain(row), nil
}

func (r *CRMRepository) FindContact(ctx context.Context, q crm.ContactQuery) (*crm.Contact, error) {
	var rows []models.Contact
	if err := r.db.WithContext(ctx).Where("customer_id = ?", q.CustomerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list customer contacts: %w", err)
	}
	for _, row := range rows {
		c := toContactDomain(row)
		if q.Matches(c) {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *CRMRepository) FindEnergyByCode(ctx context.Context, code string, energyType crm.EnergyType) (*crm.Energy, error) {
	var row models.Energy
	err := r.db.WithContext(ctx).
		Preload("Provider").
		Where("code = ? AND type = ?", code, string(energyType)).
		Take(&row).Error
	if err != nil {
		return nil, notFoundAsNil("find energy by code", err)
	}
	e := toEnergyDomain(row)
	return &e, nil
}

func (r *CRMRepository) ListCustomerEnergies(ctx context.Context, customerID string, energyType crm.EnergyType) ([]crm.Energy, error) {
	var rows []models.Energy
	err := r.db.WithContext(ctx).
		Preload("Provider").
		Where("customer_id = ? AND type = ?", customerID, string(energyType)).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list customer energies: %w", err)
	}
	out := make([]crm.Energy, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEnergyDomain(row))
	}
	return out, nil
}

func (r *CRMRepository) FindUserByEmail(ctx context.Context, email string) (*crm.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).Take(&row).Error
	if err != nil {
		return nil, notFoundAsNil("find user by email", err)
	}
	return &crm.User{ID: row.ID, Email: row.Email, Name: row.Name}, nil
}

func (r *CRMRepository) FindUserByID(ctx context.Context, id string) (*crm.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		return nil, notFoundAsNil("find user by id", err)
	}
	return &crm.User{ID: row.ID, Email: row.Email, Name: row.Name}, nil
}

func (r *CRMRepository) SaveCustomer(ctx context.Context, c *crm.Customer) error {
	row := models.Customer{
		ID:         c.ID,
		Name:       c.Name,
		Siret:      nullableString(c.Siret),
		LeadOrigin: c.LeadOrigin,
		UserID:     c.UserID,
	}
	if err := r.save(ctx, &row, c.ID == ""); err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	c.ID = row.ID
	return nil
}

func (r *CRMRepository) SaveContact(ctx context.Context, c *crm.Contact) error {
	row := models.Contact{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		Mobile:     c.Mobile,
	}
	if err := r.save(ctx, &row, c.ID == ""); err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	c.ID = row.ID
	return nil
}

func (r *CRMRepository) SaveEnergy(ctx context.Context, e *crm.Energy) error {
	row := models.Energy{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		Type:        string(e.Type),
		Code:        nullableString(e.Code),
		ProviderID:  e.ProviderID,
		ContractEnd: e.ContractEnd,
	}
	if err := r.save(ctx, &row, e.ID == ""); err != nil {
		return fmt.Errorf("save energy: %w", err)
	}
	e.ID = row.ID
	return nil
}

// EnsureProvider looks providers up case-insensitively and creates missing
// ones. A concurrent insert of the same name is absorbed by the unique index.
func (r *CRMRepository) EnsureProvider(ctx context.Context, name string) (*crm.Provider, error) {
	name = strings.TrimSpace(name)
	var row models.Provider
	err := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).Take(&row).Error
	if err == nil {
		return &crm.Provider{ID: row.ID, Name: row.Name}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find provider: %w", err)
	}

	row = models.Provider{Name: name}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("create provider: %w", translateDuplicate(res.Error))
	}
	if res.RowsAffected == 0 {
		if err := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name)).Take(&row).Error; err != nil {
			return nil, fmt.Errorf("reload provider: %w", err)
		}
	}
	return &crm.Provider{ID: row.ID, Name: row.Name}, nil
}

func (r *CRMRepository) HasComment(ctx context.Context, customerID, content string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("customer_id = ? AND content = ?", customerID, content).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check comment: %w", err)
	}
	return count > 0, nil
}

func (r *CRMRepository) AddComment(ctx context.Context, c *crm.Comment) error {
	row := models.Comment{CustomerID: c.CustomerID, Content: c.Content, CreatedAt: c.CreatedAt}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("add comment: %w", translateDuplicate(err))
	}
	c.ID = row.ID
	return nil
}

func (r *CRMRepository) save(ctx context.Context, row any, create bool) error {
	db := r.db.WithContext(ctx)
	var err error
	if create {
		err = db.Omit(clause.Associations).Create(row).Error
	} else {
		err = db.Omit("created_at", clause.Associations).Save(row).Error
	}
	return translateDuplicate(err)
}

func translateDuplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", crm.ErrDuplicateKey, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", crm.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

func notFoundAsNil(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toCustomerDomain(row models.Customer) *crm.Customer {
	return &crm.Customer{
		ID:         row.ID,
		Name:       row.Name,
		Siret:      derefString(row.Siret),
		LeadOrigin: row.LeadOrigin,
		UserID:     row.UserID,
	}
}

func toContactDomain(row models.Contact) crm.Contact {
	return crm.Contact{
		ID:         row.ID,
		CustomerID: row.CustomerID,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Email:      row.Email,
		Phone:      row.Phone,
		Mobile:     row.Mobile,
	}
}

func toEnergyDomain(row models.Energy) crm.Energy {
	e := crm.Energy{
		ID:          row.ID,
		CustomerID:  row.CustomerID,
		Type:        crm.EnergyType(row.Type),
		Code:        derefString(row.Code),
		ProviderID:  row.ProviderID,
		ContractEnd: row.ContractEnd,
	}
	if row.Provider != nil {
		e.Provider = &crm.Provider{ID: row.Provider.ID, Name: row.Provider.Name}
	}
	return e
}
