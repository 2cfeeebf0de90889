package refund

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/refund-management/internal/core/events"
)

// EventHandler writes an audit line for every refund transition and payment
// reconciliation published on the bus.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger.With("component", "refund_audit")}
}

func (h *EventHandler) HandleRefundTransitioned(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.RefundTransitionedEvent)
	if !ok {
		h.logger.Error("invalid event type for refund transition handler", "event_type", event.EventType())
		return fmt.Errorf("expected RefundTransitionedEvent, got %T", event)
	}

	from := e.From
	if from == "" {
		from = "NONE"
	}
	h.logger.InfoContext(ctx, "audit: refund transition",
		"event_id", e.EventID(),
		"refund_id", e.RefundID,
		"payment_id", e.PaymentID,
		"from", from,
		"to", e.To,
		"actor", e.Actor,
		"amount", e.Amount,
		"occurred_at", e.OccurredAt())
	return nil
}

func (h *EventHandler) HandlePaymentReconciled(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentReconciledEvent)
	if !ok {
		h.logger.Error("invalid event type for payment reconciled handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentReconciledEvent, got %T", event)
	}

	h.logger.InfoContext(ctx, "audit: payment reconciled",
		"event_id", e.EventID(),
		"payment_id", e.PaymentID,
		"refund_id", e.RefundID,
		"status", e.Status,
		"refunded_total", e.RefundedTotal,
		"payment_total", e.PaymentTotal,
		"occurred_at", e.OccurredAt())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeRefundTransitioned, h.HandleRefundTransitioned)
	eventBus.Subscribe(events.EventTypePaymentReconciled, h.HandlePaymentReconciled)

	h.logger.Info("refund event handlers registered",
		"handlers", []string{events.EventTypeRefundTransitioned, events.EventTypePaymentReconciled})
}
