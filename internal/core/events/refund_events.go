package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRefundTransitioned = "refund.transitioned"
	EventTypePaymentReconciled  = "payment.reconciled"
)

type RefundTransitionedEvent struct {
	BaseEvent
	RefundID  int64  `json:"refund_id"`
	PaymentID int64  `json:"payment_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Actor     string `json:"actor"`
	Amount    string `json:"amount"`
}

// NewRefundTransitionedEvent records a status change. From is empty for creation.
func NewRefundTransitionedEvent(refundID, paymentID int64, from, to, actor, amount string) *RefundTransitionedEvent {
	return &RefundTransitionedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRefundTransitioned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"refund_id":  refundID,
				"payment_id": paymentID,
				"from":       from,
				"to":         to,
				"actor":      actor,
				"amount":     amount,
			},
		},
		RefundID:  refundID,
		PaymentID: paymentID,
		From:      from,
		To:        to,
		Actor:     actor,
		Amount:    amount,
	}
}

type PaymentReconciledEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	RefundID      int64  `json:"refund_id"`
	Status        string `json:"status"`
	RefundedTotal string `json:"refunded_total"`
	PaymentTotal  string `json:"payment_total"`
}

func NewPaymentReconciledEvent(paymentID, refundID int64, status, refundedTotal, paymentTotal string) *PaymentReconciledEvent {
	return &PaymentReconciledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentReconciled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"refund_id":      refundID,
				"status":         status,
				"refunded_total": refundedTotal,
				"payment_total":  paymentTotal,
			},
		},
		PaymentID:     paymentID,
		RefundID:      refundID,
		Status:        status,
		RefundedTotal: refundedTotal,
		PaymentTotal:  paymentTotal,
	}
}
