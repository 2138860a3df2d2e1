package ports

import (
	"context"

	"github.com/google/uuid"
)

// Notifier is the external notification service boundary. Calls are
// fire-and-forget: failures are logged, never propagated to settlement.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, title, body string) error
}

// WebhookDispatcher is the external webhook delivery service boundary.
// It signs and retries independently of the core.
type WebhookDispatcher interface {
	Deliver(ctx context.Context, ownerID uuid.UUID, eventType string, payload any) error
}
