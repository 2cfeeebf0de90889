package refund

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	refundDatamodel "github.com/frahmantamala/refund-management/internal/core/datamodel/refund"
	"github.com/frahmantamala/refund-management/internal/core/events"
	"github.com/frahmantamala/refund-management/internal/payment"
	"github.com/frahmantamala/refund-management/pkg/logger"
	"github.com/shopspring/decimal"
)

// RepositoryAPI is the refund record store. GetByID and Update report a
// missing row as internal.ErrRefundNotFound; Update reports a status that no
// longer matches expectedStatus as internal.ErrConcurrentUpdate.
type RepositoryAPI interface {
	Create(ctx context.Context, refund *refundDatamodel.Refund) error
	Update(ctx context.Context, refund *refundDatamodel.Refund, expectedStatus string) error
	GetByID(ctx context.Context, id int64) (*refundDatamodel.Refund, error)
	ListByStatus(ctx context.Context, status string) ([]*refundDatamodel.Refund, error)
	ListAll(ctx context.Context) ([]*refundDatamodel.Refund, error)
	ListByPayment(ctx context.Context, paymentID int64) ([]*refundDatamodel.Refund, error)
	ListRequestedBetween(ctx context.Context, start, end time.Time) ([]*refundDatamodel.Refund, error)
	ListUnreconciled(ctx context.Context, limit int) ([]*refundDatamodel.Refund, error)
}

// PaymentGateway resolves payments and records their refund status.
// An unknown payment is reported as internal.ErrPaymentNotFound.
type PaymentGateway interface {
	GetPayment(ctx context.Context, id int64) (*payment.Payment, error)
	SetPaymentStatus(ctx context.Context, id int64, status payment.Status) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Options struct {
	OperationTimeout        time.Duration
	ReconcileMaxRetries     uint64
	ReconcileInitialBackoff time.Duration
	ReconcileMaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = 5 * time.Second
	}
	if o.ReconcileMaxRetries == 0 {
		o.ReconcileMaxRetries = 3
	}
	if o.ReconcileInitialBackoff <= 0 {
		o.ReconcileInitialBackoff = 100 * time.Millisecond
	}
	if o.ReconcileMaxBackoff < o.ReconcileInitialBackoff {
		o.ReconcileMaxBackoff = o.ReconcileInitialBackoff
	}
	return o
}

// Service is the refund workflow engine. Every mutation of a refund runs
// under that refund's lock and is persisted with a conditional update on the
// status it was read in. Work that depends on a payment's balance also holds
// the payment's lock, always acquired after the refund lock.
type Service struct {
	repo      RepositoryAPI
	payments  PaymentGateway
	publisher Publisher
	locks     *KeyLocker
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

func NewService(repo RepositoryAPI, payments PaymentGateway, publisher Publisher, logger *slog.Logger, opts Options) *Service {
	return &Service{
		repo:      repo,
		payments:  payments,
		publisher: publisher,
		locks:     NewKeyLocker(),
		logger:    logger,
		opts:      opts.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Readings are normalised to UTC.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = func() time.Time { return now().UTC() }
	return s
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.OrDefault(ctx, s.logger)
}

type CreateRefundRequest struct {
	PaymentID   int64
	Amount      decimal.Decimal
	Reason      string
	Method      Method
	RequestedBy string
	Note        string
}

func (s *Service) Create(ctx context.Context, req CreateRefundRequest) (*Refund, error) {
	if err := ValidateActor(req.RequestedBy); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, internal.ErrInvalidAmount.WithMessage("refund amount must be positive, got %s", req.Amount.String())
	}
	if err := ValidateRequestFields(req.Amount, req.Reason, req.Method, req.Note); err != nil {
		return nil, err
	}

	ctx, cancel := internal.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, paymentKey(req.PaymentID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.checkRefundable(ctx, req.PaymentID, 0, req.Amount); err != nil {
		s.log(ctx).Warn("refund request rejected",
			"payment_id", req.PaymentID,
			"amount", req.Amount.String(),
			"error", err)
		return nil, err
	}

	r := NewRefund(req.PaymentID, req.Amount, req.Reason, req.Method, req.RequestedBy, s.now())
	r.AppendNote(req.Note)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := ToDataModel(r)
	if err := s.repo.Create(ctx, row); err != nil {
		s.log(ctx).Error("failed to create refund", "error", err, "payment_id", req.PaymentID)
		return nil, storeError("create refund", err)
	}
	r.ID = row.ID

	s.log(ctx).Info("refund requested",
		"refund_id", r.ID,
		"payment_id", r.PaymentID,
		"amount", r.Amount.String(),
		"requested_by", r.RequestedBy)
	s.publish(ctx, events.NewRefundTransitionedEvent(r.ID, r.PaymentID, "", string(r.Status), r.RequestedBy, r.Amount.String()))

	return r, nil
}

func (s *Service) Approve(ctx context.Context, id int64, approvedBy, note string) (*Refund, error) {
	if err := ValidateActor(approvedBy); err != nil {
		return nil, err
	}
	if err := ValidateNote(note); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{
		target:      StatusApproved,
		actor:       approvedBy,
		note:        note,
		lockPayment: true,
		// the amount must still fit beside refunds committed since the request
		check: func(ctx context.Context, r *Refund) error {
			return s.checkRefundable(ctx, r.PaymentID, r.ID, r.Amount)
		},
		apply: func(r *Refund, now time.Time) {
			r.ApprovedBy = approvedBy
			r.ApprovedAt = &now
		},
	})
}

func (s *Service) Reject(ctx context.Context, id int64, processedBy, reason string) (*Refund, error) {
	if err := ValidateActor(processedBy); err != nil {
		return nil, err
	}
	if err := ValidateNote(reason); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{
		target: StatusRejected,
		actor:  processedBy,
		note:   reason,
		apply: func(r *Refund, now time.Time) {
			r.ProcessedBy = processedBy
			r.ProcessedAt = &now
			r.RejectedAt = &now
		},
	})
}

func (s *Service) Cancel(ctx context.Context, id int64, actor, note string) (*Refund, error) {
	if err := ValidateActor(actor); err != nil {
		return nil, err
	}
	if err := ValidateNote(note); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{
		target: StatusCancelled,
		actor:  actor,
		note:   note,
		apply: func(r *Refund, now time.Time) {
			r.ProcessedAt = &now
			r.AppendNote("Cancelled by " + actor)
		},
	})
}

func (s *Service) Process(ctx context.Context, id int64, processedBy, note string) (*Refund, error) {
	if err := ValidateActor(processedBy); err != nil {
		return nil, err
	}
	if err := ValidateNote(note); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{
		target: StatusProcessing,
		actor:  processedBy,
		note:   note,
		apply: func(r *Refund, now time.Time) {
			r.ProcessedBy = processedBy
		},
	})
}

// Complete marks a processing refund completed and reconciles its payment.
// The refund is persisted as COMPLETED before the payment is written; if the
// gateway stays unavailable the caller gets ErrPortUnavailable and the refund
// remains awaiting reconciliation until RetryReconciliation succeeds.
func (s *Service) Complete(ctx context.Context, id int64, note string) (*Refund, error) {
	if err := ValidateNote(note); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, step{
		target: StatusCompleted,
		note:   note,
		apply: func(r *Refund, now time.Time) {
			r.ProcessedAt = &now
			r.ReconciledAt = nil
		},
		after: s.reconcileLocked,
	})
}

func (s *Service) GetRefund(ctx context.Context, id int64) (*Refund, error) {
	return s.load(ctx, id)
}

// ListRefunds returns every refund, or only those in status when it is set.
func (s *Service) ListRefunds(ctx context.Context, status Status) ([]*Refund, error) {
	var (
		rows []*refundDatamodel.Refund
		err  error
	)
	if status == "" {
		rows, err = s.repo.ListAll(ctx)
	} else {
		rows, err = s.repo.ListByStatus(ctx, string(status))
	}
	if err != nil {
		s.log(ctx).Error("failed to list refunds", "error", err, "status", status)
		return nil, storeError("list refunds", err)
	}
	return fromDataModels(rows), nil
}

type step struct {
	target      Status
	actor       string
	note        string
	lockPayment bool
	check       func(ctx context.Context, r *Refund) error
	apply       func(r *Refund, now time.Time)
	after       func(ctx context.Context, r *Refund) error
}

func (s *Service) transition(ctx context.Context, id int64, st step) (*Refund, error) {
	ctx, cancel := internal.WithTimeout(ctx, s.opts.OperationTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, refundKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(current.Status, st.target); err != nil {
		s.log(ctx).Warn("illegal refund transition",
			"refund_id", id,
			"current_status", current.Status,
			"target_status", st.target)
		return nil, err
	}

	if st.lockPayment {
		unlockPayment, err := s.locks.Lock(ctx, paymentKey(current.PaymentID))
		if err != nil {
			return nil, err
		}
		defer unlockPayment()
	}

	if st.check != nil {
		if err := st.check(ctx, current); err != nil {
			s.log(ctx).Warn("refund transition check failed",
				"refund_id", id,
				"target_status", st.target,
				"error", err)
			return nil, err
		}
	}

	now := s.now()
	next := *current
	next.Status = st.target
	next.UpdatedAt = now
	st.apply(&next, now)
	next.AppendNote(st.note)
	if err := validateNotesTotal(next.Notes); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, &next, current.Status); err != nil {
		return nil, err
	}

	actor := st.actor
	if actor == "" {
		actor = next.ProcessedBy
	}
	s.log(ctx).Info("refund status changed",
		"refund_id", id,
		"payment_id", next.PaymentID,
		"from", current.Status,
		"to", next.Status,
		"actor", actor)
	s.publish(ctx, events.NewRefundTransitionedEvent(next.ID, next.PaymentID, string(current.Status), string(next.Status), actor, next.Amount.String()))

	if st.after != nil {
		if err := st.after(ctx, &next); err != nil {
			return nil, err
		}
	}

	return &next, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Refund, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrRefundNotFound) {
			return nil, internal.ErrRefundNotFound.WithMessage("refund %d not found", id)
		}
		s.log(ctx).Error("failed to load refund", "error", err, "refund_id", id)
		return nil, storeError("load refund", err)
	}
	return FromDataModel(row), nil
}

// persist writes r only if the stored status still equals expected. A
// context that is already done aborts before anything is written.
func (s *Service) persist(ctx context.Context, r *Refund, expected Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, ToDataModel(r), string(expected)); err != nil {
		if errors.Is(err, internal.ErrConcurrentUpdate) {
			s.log(ctx).Warn("refund modified concurrently", "refund_id", r.ID, "expected_status", expected)
			return internal.ErrConcurrentUpdate.WithMessage("refund %d is no longer %s", r.ID, expected)
		}
		s.log(ctx).Error("failed to update refund", "error", err, "refund_id", r.ID)
		return storeError("update refund", err)
	}
	return nil
}

// checkRefundable verifies amount fits in the payment's remaining balance,
// ignoring the refund identified by excludeID.
func (s *Service) checkRefundable(ctx context.Context, paymentID, excludeID int64, amount decimal.Decimal) error {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return portError(err)
	}

	rows, err := s.repo.ListByPayment(ctx, paymentID)
	if err != nil {
		return storeError("list payment refunds", err)
	}
	var others []*Refund
	for _, r := range fromDataModels(rows) {
		if r.ID != excludeID {
			others = append(others, r)
		}
	}
	committed := sumAmounts(others, func(st Status) bool { return committedStatuses[st] })

	return ValidateCreation(p.Total, committed, amount)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx).Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func storeError(op string, err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return internal.NewInternalError("failed to "+op, err)
}

func portError(err error) error {
	if errors.Is(err, internal.ErrPaymentNotFound) {
		return err
	}
	return internal.ErrPortUnavailable.WithCause(err)
}
