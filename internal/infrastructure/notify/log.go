package notify

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

// LogNotifier writes notifications to the log. It is used when no SMTP server
// is configured.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AnalysisCompleted(ctx context.Context, imp *domain.Import, impact domain.AnalysisImpact) error {
	n.write(imp, analysisMessage(imp, impact))
	return nil
}

func (n *LogNotifier) ProcessingCompleted(ctx context.Context, imp *domain.Import) error {
	n.write(imp, completedMessage(imp))
	return nil
}

func (n *LogNotifier) ImportFailed(ctx context.Context, imp *domain.Import) error {
	n.write(imp, failedMessage(imp))
	return nil
}

func (n *LogNotifier) ImportCancelled(ctx context.Context, imp *domain.Import) error {
	n.write(imp, cancelledMessage(imp))
	return nil
}

func (n *LogNotifier) write(imp *domain.Import, msg message) {
	n.log.Infow("import notification", "import_id", imp.ID, "owner_id", imp.OwnerID, "subject", msg.Subject, "body", msg.Body)
}
