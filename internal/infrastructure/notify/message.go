package notify

import (
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/energy-crm/internal/domain/importing"
)

type message struct {
	Subject string
	Body    string
}

func analysisMessage(imp *domain.Import, impact domain.AnalysisImpact) message {
	var b strings.Builder
	fmt.Fprintf(&b, "The analysis of %s is ready for review.\n\n", imp.OriginalFilename)
	fmt.Fprintf(&b, "Rows: %d\n", impact.TotalRows())
	fmt.Fprintf(&b, "Rows with errors: %d\n", impact.ErrorRows())
	fmt.Fprintf(&b, "Success rate: %.1f%%\n\n", impact.SuccessRate())
	writeCounts(&b, "To create", impact.Creations())
	writeCounts(&b, "To update", impact.Updates())
	writeCounts(&b, "Unchanged", impact.Skips())
	b.WriteString("\nConfirm the import to apply these changes.\n")
	return message{Subject: "Import analysed: " + imp.OriginalFilename, Body: b.String()}
}

func completedMessage(imp *domain.Import) message {
	body := fmt.Sprintf("The import of %s is complete.\n\nProcessed rows: %d\nSucceeded: %d\nFailed: %d\n",
		imp.OriginalFilename, imp.ProcessedRows, imp.SuccessRows, imp.ErrorRows)
	return message{Subject: "Import completed: " + imp.OriginalFilename, Body: body}
}

func failedMessage(imp *domain.Import) message {
	body := fmt.Sprintf("The import of %s failed.\n\nReason: %s\n", imp.OriginalFilename, imp.ErrorMessage)
	return message{Subject: "Import failed: " + imp.OriginalFilename, Body: body}
}

func cancelledMessage(imp *domain.Import) message {
	body := fmt.Sprintf("The import of %s was cancelled. No further rows will be applied.\n", imp.OriginalFilename)
	return message{Subject: "Import cancelled: " + imp.OriginalFilename, Body: body}
}

func writeCounts(b *strings.Builder, label string, counts map[domain.EntityType]int) {
	fmt.Fprintf(b, "%s:", label)
	for _, entity := range domain.EntityTypes {
		fmt.Fprintf(b, " %s=%d", entity, counts[entity])
	}
	b.WriteString("\n")
}
