package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammadpnp/energy-crm/internal/domain/crm"
	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

var ErrNoRecipient = errors.New("import owner has no email address")

type userFinder interface {
	FindUserByID(ctx context.Context, id string) (*crm.User, error)
}

type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// SMTPNotifier mails the import owner.
type SMTPNotifier struct {
	cfg   SMTPConfig
	users userFinder
	log   *zap.SugaredLogger
	send  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig, users userFinder, log *zap.SugaredLogger) *SMTPNotifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SMTPNotifier{cfg: cfg, users: users, log: log, send: smtp.SendMail}
}

func (n *SMTPNotifier) AnalysisCompleted(ctx context.Context, imp *domain.Import, impact domain.AnalysisImpact) error {
	return n.deliver(ctx, imp, analysisMessage(imp, impact))
}

func (n *SMTPNotifier) ProcessingCompleted(ctx context.Context, imp *domain.Import) error {
	return n.deliver(ctx, imp, completedMessage(imp))
}

func (n *SMTPNotifier) ImportFailed(ctx context.Context, imp *domain.Import) error {
	return n.deliver(ctx, imp, failedMessage(imp))
}

func (n *SMTPNotifier) ImportCancelled(ctx context.Context, imp *domain.Import) error {
	return n.deliver(ctx, imp, cancelledMessage(imp))
}

func (n *SMTPNotifier) deliver(ctx context.Context, imp *domain.Import, msg message) error {
	to, err := n.recipient(ctx, imp.OwnerID)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host, _, err := net.SplitHostPort(n.cfg.Addr)
		if err != nil {
			return fmt.Errorf("parse smtp address: %w", err)
		}
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	if err := n.send(n.cfg.Addr, auth, n.cfg.From, []string{to}, n.compose(to, msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	n.log.Infow("notification sent", "import_id", imp.ID, "subject", msg.Subject)
	return nil
}

func (n *SMTPNotifier) recipient(ctx context.Context, ownerID string) (string, error) {
	if strings.Contains(ownerID, "@") {
		return ownerID, nil
	}
	if _, err := uuid.Parse(ownerID); err != nil {
		return "", fmt.Errorf("%w: owner %q", ErrNoRecipient, ownerID)
	}
	user, err := n.users.FindUserByID(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("find import owner: %w", err)
	}
	if user == nil || user.Email == "" {
		return "", fmt.Errorf("%w: owner %s", ErrNoRecipient, ownerID)
	}
	return user.Email, nil
}

func (n *SMTPNotifier) compose(to string, msg message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
