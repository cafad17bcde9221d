package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

type fakeUsers struct {
	users map[string]*crm.User
}

func (f fakeUsers) FindUserByID(ctx context.Context, id string) (*crm.User, error) {
	return f.users[id], nil
}

type sentMail struct {
	addr string
	from string
	to   []string
	body string
}

func newTestNotifier(users map[string]*crm.User) (*SMTPNotifier, *[]sentMail) {
	var sent []sentMail
	n := NewSMTPNotifier(SMTPConfig{Addr: "mail.local:25", From: "imports@crm.local"}, fakeUsers{users: users}, nil)
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, body: string(msg)})
		return nil
	}
	return n, &sent
}

func TestSMTPNotifierSendsAnalysisSummaryToOwner(t *testing.T) {
	ownerID := "5f0c7a52-8d0e-4c4e-9a55-0d6f1e7c2b11"
	n, sent := newTestNotifier(map[string]*crm.User{ownerID: {ID: ownerID, Email: "owner@crm.local"}})

	imp := &domain.Import{ID: "imp-1", OriginalFilename: "clients.xlsx", OwnerID: ownerID}
	impact := domain.NewAnalysisImpact(
		map[domain.EntityType]int{domain.EntityCustomer: 2},
		map[domain.EntityType]int{domain.EntityContact: 1},
		nil, 4, 1,
	)

	require.NoError(t, n.AnalysisCompleted(context.Background(), imp, impact))
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "mail.local:25", mail.addr)
	assert.Equal(t, []string{"owner@crm.local"}, mail.to)
	assert.Contains(t, mail.body, "Subject: Import analysed: clients.xlsx")
	assert.Contains(t, mail.body, "Success rate: 75.0%")
	assert.Contains(t, mail.body, "To create: customer=2 contact=0 energy=0")
	assert.True(t, strings.Contains(mail.body, "\r\n\r\n"))
}

func TestSMTPNotifierAcceptsEmailOwner(t *testing.T) {
	n, sent := newTestNotifier(nil)

	imp := &domain.Import{ID: "imp-2", OriginalFilename: "a.xlsx", OwnerID: "boss@crm.local", ErrorMessage: "boom"}
	require.NoError(t, n.ImportFailed(context.Background(), imp))

	require.Len(t, *sent, 1)
	assert.Equal(t, []string{"boss@crm.local"}, (*sent)[0].to)
	assert.Contains(t, (*sent)[0].body, "Reason: boom")
}

func TestSMTPNotifierWithoutRecipient(t *testing.T) {
	n, sent := newTestNotifier(nil)

	err := n.ImportCancelled(context.Background(), &domain.Import{ID: "imp-3", OwnerID: "not-a-user"})
	require.ErrorIs(t, err, ErrNoRecipient)

	err = n.ProcessingCompleted(context.Background(), &domain.Import{ID: "imp-4", OwnerID: "5f0c7a52-8d0e-4c4e-9a55-0d6f1e7c2b11"})
	require.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, *sent)
}
