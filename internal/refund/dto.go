package refund

import (
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/shopspring/decimal"
)

// CreateRefundDTO is the request body of POST /refunds. RequestedBy may be
// omitted when the caller identity is carried by the request headers; with a
// verified token it must match the token's name.
type CreateRefundDTO struct {
	PaymentID   int64           `json:"payment_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	Method      string          `json:"method,omitempty"`
	RequestedBy string          `json:"requested_by,omitempty"`
	Note        string          `json:"note,omitempty"`
}

func (dto CreateRefundDTO) Validate() error {
	if dto.PaymentID <= 0 {
		return internal.NewValidationFieldError("payment_id", "payment_id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func (dto CreateRefundDTO) ToRequest(actor string) CreateRefundRequest {
	return CreateRefundRequest{
		PaymentID:   dto.PaymentID,
		Amount:      dto.Amount,
		Reason:      dto.Reason,
		Method:      Method(dto.Method),
		RequestedBy: actor,
		Note:        dto.Note,
	}
}

// TransitionDTO is the optional body of the approve, reject, cancel and
// process endpoints. Actor overrides an unverified header identity and must
// match a verified token's name.
type TransitionDTO struct {
	Actor  string `json:"actor,omitempty"`
	Note   string `json:"note,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RefundsResponse struct {
	Refunds []*Refund `json:"refunds"`
	Count   int       `json:"count"`
}

func NewRefundsResponse(refunds []*Refund) RefundsResponse {
	if refunds == nil {
		refunds = []*Refund{}
	}
	return RefundsResponse{Refunds: refunds, Count: len(refunds)}
}

type RangeResponse struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Refunds []*Refund `json:"refunds"`
	Count   int       `json:"count"`
}
