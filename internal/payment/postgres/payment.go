package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	paymentDatamodel "github.com/frahmantamala/refund-management/internal/core/datamodel/payment"
	"github.com/frahmantamala/refund-management/internal/payment"
	"github.com/jmoiron/sqlx"
)

// PaymentRepository is the sqlx-backed payment gateway used by the refund
// workflow. Queries are written with '?' and rebound for the driver.
type PaymentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db, now: time.Now}
}

const paymentColumns = "id, reference, total_amount, status, created_at, updated_at"

func (r *PaymentRepository) GetPayment(ctx context.Context, id int64) (*payment.Payment, error) {
	var row paymentDatamodel.Payment
	query := r.db.Rebind("SELECT " + paymentColumns + " FROM payments WHERE id = ?")
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrPaymentNotFound.WithMessage("payment %d not found", id)
		}
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return payment.FromDataModel(&row), nil
}

func (r *PaymentRepository) SetPaymentStatus(ctx context.Context, id int64, status payment.Status) error {
	query := r.db.Rebind("UPDATE payments SET status = ?, updated_at = ? WHERE id = ?")
	res, err := r.db.ExecContext(ctx, query, string(status), r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set payment %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set payment %d status: %w", id, err)
	}
	if n == 0 {
		return internal.ErrPaymentNotFound.WithMessage("payment %d not found", id)
	}
	return nil
}

// Create inserts a payment and fills in its generated id. It backs the seed
// command and tests; production payments are written by the billing side.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	row := payment.ToDataModel(p)
	query := r.db.Rebind(`INSERT INTO payments (reference, total_amount, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := r.db.GetContext(ctx, &p.ID, query, row.Reference, row.TotalAmount, row.Status, row.CreatedAt, row.UpdatedAt); err != nil {
		return fmt.Errorf("create payment %s: %w", p.Reference, err)
	}
	return nil
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	var row paymentDatamodel.Payment
	query := r.db.Rebind("SELECT " + paymentColumns + " FROM payments WHERE reference = ?")
	if err := r.db.GetContext(ctx, &row, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrPaymentNotFound.WithMessage("payment %s not found", reference)
		}
		return nil, fmt.Errorf("get payment %s: %w", reference, err)
	}
	return payment.FromDataModel(&row), nil
}
