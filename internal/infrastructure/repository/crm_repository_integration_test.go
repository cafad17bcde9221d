package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	"github.com/mohammadpnp/energy-crm/internal/infrastructure/repository"
)

func TestCRMRepositoryCustomerLookupsIntegration(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	repo := repository.NewCRMRepository(db)

	customer := &crm.Customer{Name: "ACME Energie", Siret: "12345678900011", LeadOrigin: crm.DefaultLeadOrigin}
	require.NoError(t, repo.SaveCustomer(ctx, customer))
	require.NotEmpty(t, customer.ID)

	bySiret, err := repo.FindCustomerBySiret(ctx, "12345678900011")
	require.NoError(t, err)
	require.NotNil(t, bySiret)
	assert.Equal(t, customer.ID, bySiret.ID)

	byName, err := repo.FindCustomerByName(ctx, "ACME Energie")
	require.NoError(t, err)
	require.NotNil(t, byName)

	missing, err := repo.FindCustomerBySiret(ctx, "000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	dup := &crm.Customer{Name: "Other", Siret: "12345678900011"}
	err = repo.SaveCustomer(ctx, dup)
	require.ErrorIs(t, err, crm.ErrDuplicateKey)
}

func TestCRMRepositoryWithinTxRollsBackIntegration(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	repo := repository.NewCRMRepository(db)

	err := repo.WithinTx(ctx, func(tx crm.Writer) error {
		c := &crm.Customer{Name: "Rolled Back"}
		if err := tx.SaveCustomer(ctx, c); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	found, err := repo.FindCustomerByName(ctx, "Rolled Back")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCRMRepositoryContactsEnergiesAndCommentsIntegration(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	repo := repository.NewCRMRepository(db)

	customer := &crm.Customer{Name: "Boulangerie Martin"}
	require.NoError(t, repo.SaveCustomer(ctx, customer))

	contact := &crm.Contact{CustomerID: customer.ID, FirstName: "Jean", LastName: "Martin", Email: "jean@martin.fr"}
	require.NoError(t, repo.SaveContact(ctx, contact))

	found, err := repo.FindContact(ctx, crm.ContactQuery{CustomerID: customer.ID, DisplayName: "jean martin", Email: "JEAN@martin.fr"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, contact.ID, found.ID)

	provider, err := repo.EnsureProvider(ctx, "EDF")
	require.NoError(t, err)
	again, err := repo.EnsureProvider(ctx, "edf")
	require.NoError(t, err)
	assert.Equal(t, provider.ID, again.ID)

	end := time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)
	energy := &crm.Energy{CustomerID: customer.ID, Type: crm.EnergyElec, Code: "12345678901234", ProviderID: &provider.ID, ContractEnd: &end}
	require.NoError(t, repo.SaveEnergy(ctx, energy))

	byCode, err := repo.FindEnergyByCode(ctx, "12345678901234", crm.EnergyElec)
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, "EDF", byCode.ProviderName())

	otherType, err := repo.FindEnergyByCode(ctx, "12345678901234", crm.EnergyGas)
	require.NoError(t, err)
	assert.Nil(t, otherType)

	list, err := repo.ListCustomerEnergies(ctx, customer.ID, crm.EnergyElec)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	has, err := repo.HasComment(ctx, customer.ID, "Client fidèle")
	require.NoError(t, err)
	assert.False(t, has)
	require.NoError(t, repo.AddComment(ctx, &crm.Comment{CustomerID: customer.ID, Content: "Client fidèle", CreatedAt: time.Now()}))
	has, err = repo.HasComment(ctx, customer.ID, "Client fidèle")
	require.NoError(t, err)
	assert.True(t, has)
}
