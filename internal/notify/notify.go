// Package notify announces committed invoices to interested consumers.
// Fire-and-forget: the invoice is durable before any notification is sent,
// so delivery failures are logged and dropped, never propagated.
package notify

import (
	"context"
	"log/slog"

	"github.com/belegwerk/einvoice/internal/entity"
	queue "github.com/belegwerk/einvoice/internal/queue/nats"
)

// Notifier is called by the orchestrator after the persistence transaction
// commits.
type Notifier interface {
	InvoicePersisted(ctx context.Context, inv *entity.Invoice)
}

// QueueNotifier publishes persisted-invoice events on the message queue.
type QueueNotifier struct {
	publisher persistedPublisher
	log       *slog.Logger
}

type persistedPublisher interface {
	PublishPersisted(ctx context.Context, ev queue.PersistedEvent) error
}

func NewQueueNotifier(publisher persistedPublisher, logger *slog.Logger) *QueueNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueNotifier{publisher: publisher, log: logger}
}

func (n *QueueNotifier) InvoicePersisted(ctx context.Context, inv *entity.Invoice) {
	ev := queue.PersistedEvent{
		InvoiceID:        inv.ID,
		TenantID:         inv.TenantID,
		InvoiceNumber:    inv.InvoiceNumber,
		ValidationStatus: string(inv.ValidationState),
	}
	if err := n.publisher.PublishPersisted(ctx, ev); err != nil {
		n.log.Warn("notify.persisted.failed", "invoice_id", inv.ID, "error", err)
	}
}

// Noop is used by the batch CLI, which reports outcomes directly.
type Noop struct{}

func (Noop) InvoicePersisted(context.Context, *entity.Invoice) {}
