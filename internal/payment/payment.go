package payment

import (
	"time"

	paymentDatamodel "github.com/frahmantamala/refund-management/internal/core/datamodel/payment"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusPaid              Status = "PAID"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
	StatusRefunded          Status = "REFUNDED"
	StatusFailed            Status = "FAILED"
)

type Payment struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StatusAfterRefunds derives the payment status from the sum of its
// completed refunds.
func StatusAfterRefunds(total, completed decimal.Decimal) Status {
	if completed.GreaterThanOrEqual(total) {
		return StatusRefunded
	}
	return StatusPartiallyRefunded
}

func ToDataModel(p *Payment) *paymentDatamodel.Payment {
	return &paymentDatamodel.Payment{
		ID:          p.ID,
		Reference:   p.Reference,
		TotalAmount: p.Total,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromDataModel(p *paymentDatamodel.Payment) *Payment {
	return &Payment{
		ID:        p.ID,
		Reference: p.Reference,
		Total:     p.TotalAmount,
		Status:    Status(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
