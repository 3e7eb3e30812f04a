package cmd

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/equipment-approvals/internal/core/events"
)

// subscribeAudit writes every lifecycle event to the audit log.
func subscribeAudit(bus *events.EventBus, lg *slog.Logger) {
	audit := lg.With("component", "audit")

	handler := func(ctx context.Context, event events.Event) error {
		audit.InfoContext(ctx, "event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}

	bus.SubscribeAll(handler, append(events.RequestEventTypes(), events.EventTypeOverrideUpdated)...)
}
