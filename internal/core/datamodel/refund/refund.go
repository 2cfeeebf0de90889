package refund

import (
	"time"

	"github.com/shopspring/decimal"
)

type Refund struct {
	ID           int64           `gorm:"primaryKey"`
	PaymentID    int64           `gorm:"column:payment_id;not null;index"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(15,2);not null"`
	Status       string          `gorm:"column:status;not null;index"`
	Reason       string          `gorm:"column:reason;not null;default:''"`
	Method       string          `gorm:"column:method;not null;default:''"`
	RequestedBy  string          `gorm:"column:requested_by;not null"`
	ApprovedBy   string          `gorm:"column:approved_by;not null;default:''"`
	ProcessedBy  string          `gorm:"column:processed_by;not null;default:''"`
	Notes        string          `gorm:"column:notes;not null;default:''"`
	RequestedAt  time.Time       `gorm:"column:requested_at;not null;index"`
	ApprovedAt   *time.Time      `gorm:"column:approved_at"`
	RejectedAt   *time.Time      `gorm:"column:rejected_at"`
	ProcessedAt  *time.Time      `gorm:"column:processed_at"`
	ReconciledAt *time.Time      `gorm:"column:reconciled_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (Refund) TableName() string {
	return "refunds"
}
