package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment mirrors the payments table owned by the billing side. The refund
// service only reads totals and writes the status column.
type Payment struct {
	ID          int64           `db:"id" gorm:"primaryKey"`
	Reference   string          `db:"reference" gorm:"column:reference;not null;uniqueIndex"`
	TotalAmount decimal.Decimal `db:"total_amount" gorm:"column:total_amount;type:numeric(15,2);not null"`
	Status      string          `db:"status" gorm:"column:status;not null"`
	CreatedAt   time.Time       `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
