package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	refundDatamodel "github.com/frahmantamala/refund-management/internal/core/datamodel/refund"
	"github.com/frahmantamala/refund-management/internal/refund"
	"gorm.io/gorm"
)

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) refund.RepositoryAPI {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, rec *refundDatamodel.Refund) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Update writes every mutable column of rec, but only while the stored row
// is still in expectedStatus.
func (r *RefundRepository) Update(ctx context.Context, rec *refundDatamodel.Refund, expectedStatus string) error {
	updates := map[string]interface{}{
		"status":        rec.Status,
		"approved_by":   rec.ApprovedBy,
		"processed_by":  rec.ProcessedBy,
		"notes":         rec.Notes,
		"approved_at":   rec.ApprovedAt,
		"rejected_at":   rec.RejectedAt,
		"processed_at":  rec.ProcessedAt,
		"reconciled_at": rec.ReconciledAt,
		"updated_at":    rec.UpdatedAt,
	}

	res := r.db.WithContext(ctx).
		Model(&refundDatamodel.Refund{}).
		Where("id = ? AND status = ?", rec.ID, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&refundDatamodel.Refund{}).Where("id = ?", rec.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return internal.ErrRefundNotFound
	}
	return internal.ErrConcurrentUpdate
}

func (r *RefundRepository) GetByID(ctx context.Context, id int64) (*refundDatamodel.Refund, error) {
	var rec refundDatamodel.Refund
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrRefundNotFound
		}
		return nil, fmt.Errorf("get refund %d: %w", id, err)
	}
	return &rec, nil
}

func (r *RefundRepository) ListByStatus(ctx context.Context, status string) ([]*refundDatamodel.Refund, error) {
	var recs []*refundDatamodel.Refund
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("requested_at ASC, id ASC").Find(&recs).Error
	return recs, err
}

func (r *RefundRepository) ListAll(ctx context.Context) ([]*refundDatamodel.Refund, error) {
	var recs []*refundDatamodel.Refund
	err := r.db.WithContext(ctx).Order("requested_at ASC, id ASC").Find(&recs).Error
	return recs, err
}

func (r *RefundRepository) ListByPayment(ctx context.Context, paymentID int64) ([]*refundDatamodel.Refund, error) {
	var recs []*refundDatamodel.Refund
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("id ASC").Find(&recs).Error
	return recs, err
}

func (r *RefundRepository) ListRequestedBetween(ctx context.Context, start, end time.Time) ([]*refundDatamodel.Refund, error) {
	var recs []*refundDatamodel.Refund
	err := r.db.WithContext(ctx).
		Where("requested_at >= ? AND requested_at < ?", start.UTC(), end.UTC()).
		Order("requested_at ASC, id ASC").
		Find(&recs).Error
	return recs, err
}

func (r *RefundRepository) ListUnreconciled(ctx context.Context, limit int) ([]*refundDatamodel.Refund, error) {
	var recs []*refundDatamodel.Refund
	q := r.db.WithContext(ctx).
		Where("status = ? AND reconciled_at IS NULL", string(refund.StatusCompleted)).
		Order("processed_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}
