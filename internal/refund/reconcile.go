package refund

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/core/events"
	"github.com/frahmantamala/refund-management/internal/payment"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

func (s *Service) backoff() retry.Backoff {
	b := retry.NewExponential(s.opts.ReconcileInitialBackoff)
	b = retry.WithCappedDuration(s.opts.ReconcileMaxBackoff, b)
	return retry.WithMaxRetries(s.opts.ReconcileMaxRetries, b)
}

// reconcileLocked recomputes the payment status from its completed refunds
// and writes it through the gateway, retrying transient failures. The caller
// must hold the refund lock for r.
func (s *Service) reconcileLocked(ctx context.Context, r *Refund) error {
	unlock, err := s.locks.Lock(ctx, paymentKey(r.PaymentID))
	if err != nil {
		return err
	}
	defer unlock()

	var (
		status   payment.Status
		total    decimal.Decimal
		refunded decimal.Decimal
		attempts int
	)
	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempts++
		p, err := s.payments.GetPayment(ctx, r.PaymentID)
		if err != nil {
			return retryable(err)
		}
		rows, err := s.repo.ListByPayment(ctx, r.PaymentID)
		if err != nil {
			return retry.RetryableError(err)
		}
		total = p.Total
		refunded = sumAmounts(fromDataModels(rows), func(st Status) bool { return st == StatusCompleted })
		status = payment.StatusAfterRefunds(total, refunded)

		if err := s.payments.SetPaymentStatus(ctx, r.PaymentID, status); err != nil {
			s.log(ctx).Warn("payment status write failed",
				"payment_id", r.PaymentID,
				"refund_id", r.ID,
				"attempt", attempts,
				"error", err)
			return retryable(err)
		}
		return nil
	})
	if err != nil {
		s.log(ctx).Error("payment reconciliation failed",
			"payment_id", r.PaymentID,
			"refund_id", r.ID,
			"attempts", attempts,
			"error", err)
		if errors.Is(err, internal.ErrPaymentNotFound) {
			return err
		}
		return internal.ErrPortUnavailable.
			WithMessage("refund %d completed; reconciliation of payment %d is pending", r.ID, r.PaymentID).
			WithCause(err)
	}

	now := s.now()
	reconciled := *r
	reconciled.ReconciledAt = &now
	reconciled.UpdatedAt = now
	if err := s.persist(ctx, &reconciled, StatusCompleted); err != nil {
		s.log(ctx).Error("payment reconciled but refund not marked",
			"payment_id", r.PaymentID,
			"refund_id", r.ID,
			"error", err)
		return internal.ErrReconcilePending.
			WithMessage("payment %d was updated but refund %d is not yet marked reconciled; the reconciliation sweep will finish it", r.PaymentID, r.ID).
			WithCause(err)
	}
	*r = reconciled

	s.log(ctx).Info("payment reconciled",
		"payment_id", r.PaymentID,
		"refund_id", r.ID,
		"status", status,
		"refunded_total", refunded.String(),
		"payment_total", total.String())
	s.publish(ctx, events.NewPaymentReconciledEvent(r.PaymentID, r.ID, string(status), refunded.String(), total.String()))

	return nil
}

func retryable(err error) error {
	if errors.Is(err, internal.ErrPaymentNotFound) {
		return err
	}
	return retry.RetryableError(err)
}

// RetryReconciliation finishes reconciliation for a completed refund whose
// payment write previously failed. Already reconciled refunds are returned as is.
func (s *Service) RetryReconciliation(ctx context.Context, id int64) (*Refund, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, refundKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusCompleted {
		return nil, internal.ErrIllegalTransition.WithMessage("refund %d is %s; only completed refunds are reconciled", id, r.Status)
	}
	if r.ReconciledAt != nil {
		return r, nil
	}

	if err := s.reconcileLocked(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ReconcilePending retries up to limit refunds awaiting reconciliation and
// reports how many were reconciled.
func (s *Service) ReconcilePending(ctx context.Context, limit int) (int, error) {
	rows, err := s.repo.ListUnreconciled(ctx, limit)
	if err != nil {
		return 0, storeError("list unreconciled refunds", err)
	}

	reconciled := 0
	var errs []error
	for _, row := range rows {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.RetryReconciliation(ctx, row.ID); err != nil {
			errs = append(errs, fmt.Errorf("refund %d: %w", row.ID, err))
			continue
		}
		reconciled++
	}

	if len(rows) > 0 {
		s.log(ctx).Info("reconciliation sweep finished",
			"candidates", len(rows),
			"reconciled", reconciled,
			"failed", len(errs))
	}
	return reconciled, errors.Join(errs...)
}
