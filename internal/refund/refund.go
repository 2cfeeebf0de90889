package refund

import (
	"fmt"
	"strings"
	"time"

	refundDatamodel "github.com/frahmantamala/refund-management/internal/core/datamodel/refund"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusProcessing,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
}

// transitions is the complete set of legal moves. A PROCESSING refund can
// only complete; it cannot be cancelled.
var transitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted},
}

// committedStatuses count against the refundable balance of a payment.
var committedStatuses = map[Status]bool{
	StatusApproved:   true,
	StatusProcessing: true,
	StatusCompleted:  true,
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown refund status %q", raw)
	}
	return s, nil
}

type Method string

const (
	MethodOriginalPayment Method = "ORIGINAL_PAYMENT_METHOD"
	MethodCash            Method = "CASH"
	MethodVoucher         Method = "VOUCHER"
	MethodBankTransfer    Method = "BANK_TRANSFER"
)

var allMethods = []string{
	string(MethodOriginalPayment),
	string(MethodCash),
	string(MethodVoucher),
	string(MethodBankTransfer),
}

type Refund struct {
	ID           int64           `json:"id"`
	PaymentID    int64           `json:"payment_id"`
	Amount       decimal.Decimal `json:"amount"`
	Status       Status          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Method       Method          `json:"method,omitempty"`
	RequestedBy  string          `json:"requested_by"`
	ApprovedBy   string          `json:"approved_by,omitempty"`
	ProcessedBy  string          `json:"processed_by,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	RequestedAt  time.Time       `json:"requested_at"`
	ApprovedAt   *time.Time      `json:"approved_at,omitempty"`
	RejectedAt   *time.Time      `json:"rejected_at,omitempty"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	ReconciledAt *time.Time      `json:"reconciled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AppendNote adds a line to the notes trail. Blank notes are ignored.
func (r *Refund) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes = r.Notes + "\n" + note
}

// AwaitingReconciliation reports a completed refund whose payment status
// write has not been confirmed yet.
func (r *Refund) AwaitingReconciliation() bool {
	return r.Status == StatusCompleted && r.ReconciledAt == nil
}

func NewRefund(paymentID int64, amount decimal.Decimal, reason string, method Method, requestedBy string, now time.Time) *Refund {
	return &Refund{
		PaymentID:   paymentID,
		Amount:      amount,
		Status:      StatusPending,
		Reason:      strings.TrimSpace(reason),
		Method:      method,
		RequestedBy: strings.TrimSpace(requestedBy),
		RequestedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ToDataModel(r *Refund) *refundDatamodel.Refund {
	return &refundDatamodel.Refund{
		ID:           r.ID,
		PaymentID:    r.PaymentID,
		Amount:       r.Amount,
		Status:       string(r.Status),
		Reason:       r.Reason,
		Method:       string(r.Method),
		RequestedBy:  r.RequestedBy,
		ApprovedBy:   r.ApprovedBy,
		ProcessedBy:  r.ProcessedBy,
		Notes:        r.Notes,
		RequestedAt:  r.RequestedAt,
		ApprovedAt:   r.ApprovedAt,
		RejectedAt:   r.RejectedAt,
		ProcessedAt:  r.ProcessedAt,
		ReconciledAt: r.ReconciledAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func FromDataModel(r *refundDatamodel.Refund) *Refund {
	return &Refund{
		ID:           r.ID,
		PaymentID:    r.PaymentID,
		Amount:       r.Amount,
		Status:       Status(r.Status),
		Reason:       r.Reason,
		Method:       Method(r.Method),
		RequestedBy:  r.RequestedBy,
		ApprovedBy:   r.ApprovedBy,
		ProcessedBy:  r.ProcessedBy,
		Notes:        r.Notes,
		RequestedAt:  r.RequestedAt,
		ApprovedAt:   r.ApprovedAt,
		RejectedAt:   r.RejectedAt,
		ProcessedAt:  r.ProcessedAt,
		ReconciledAt: r.ReconciledAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromDataModels(rows []*refundDatamodel.Refund) []*Refund {
	out := make([]*Refund, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out
}

// sumAmounts totals the refunds whose status passes keep.
func sumAmounts(refunds []*Refund, keep func(Status) bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range refunds {
		if keep(r.Status) {
			total = total.Add(r.Amount)
		}
	}
	return total
}
