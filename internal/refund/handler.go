package refund

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, req CreateRefundRequest) (*Refund, error)
	Approve(ctx context.Context, id int64, approvedBy, note string) (*Refund, error)
	Reject(ctx context.Context, id int64, processedBy, reason string) (*Refund, error)
	Cancel(ctx context.Context, id int64, actor, note string) (*Refund, error)
	Process(ctx context.Context, id int64, processedBy, note string) (*Refund, error)
	Complete(ctx context.Context, id int64, note string) (*Refund, error)
	RetryReconciliation(ctx context.Context, id int64) (*Refund, error)
	GetRefund(ctx context.Context, id int64) (*Refund, error)
	ListRefunds(ctx context.Context, status Status) ([]*Refund, error)
}

type StatsAPI interface {
	Summary(ctx context.Context) (*Summary, error)
	InRange(ctx context.Context, start, end time.Time) ([]*Refund, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Stats   StatsAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, stats StatsAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Stats:       stats,
	}
}

func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var dto CreateRefundDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Warn("CreateRefund: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actor, err := resolveActor(r.Context(), dto.RequestedBy)
	if err != nil {
		h.Logger.Warn("CreateRefund: actor mismatch", "error", err, "requested_by", dto.RequestedBy)
		h.HandleServiceError(w, err)
		return
	}

	refund, err := h.Service.Create(r.Context(), dto.ToRequest(actor))
	if err != nil {
		h.Logger.Warn("CreateRefund: service error", "error", err, "payment_id", dto.PaymentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, refund)
}

func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	var status Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := ParseStatus(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	refunds, err := h.Service.ListRefunds(r.Context(), status)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewRefundsResponse(refunds))
}

func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	refund, err := h.Service.GetRefund(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, refund)
}

func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ApproveRefund", func(ctx context.Context, id int64, actor string, dto TransitionDTO) (*Refund, error) {
		return h.Service.Approve(ctx, id, actor, dto.Note)
	})
}

func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "RejectRefund", func(ctx context.Context, id int64, actor string, dto TransitionDTO) (*Refund, error) {
		reason := dto.Reason
		if reason == "" {
			reason = dto.Note
		}
		return h.Service.Reject(ctx, id, actor, reason)
	})
}

func (h *Handler) CancelRefund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "CancelRefund", func(ctx context.Context, id int64, actor string, dto TransitionDTO) (*Refund, error) {
		return h.Service.Cancel(ctx, id, actor, dto.Note)
	})
}

func (h *Handler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ProcessRefund", func(ctx context.Context, id int64, actor string, dto TransitionDTO) (*Refund, error) {
		return h.Service.Process(ctx, id, actor, dto.Note)
	})
}

func (h *Handler) CompleteRefund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "CompleteRefund", func(ctx context.Context, id int64, _ string, dto TransitionDTO) (*Refund, error) {
		return h.Service.Complete(ctx, id, dto.Note)
	})
}

func (h *Handler) ReconcileRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	refund, err := h.Service.RetryReconciliation(r.Context(), id)
	if err != nil {
		h.Logger.Warn("ReconcileRefund: service error", "error", err, "refund_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, refund)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Stats.Summary(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

// GetRange lists refunds requested in [start, end). Both bounds are RFC 3339.
func (h *Handler) GetRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}

	refunds, err := h.Stats.InRange(r.Context(), start.UTC(), end.UTC())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, RangeResponse{
		Start:   start.UTC(),
		End:     end.UTC(),
		Refunds: refunds,
		Count:   len(refunds),
	})
}

type transitionFunc func(ctx context.Context, id int64, actor string, dto TransitionDTO) (*Refund, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn transitionFunc) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	var dto TransitionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		h.Logger.Warn(op+": invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor, err := resolveActor(r.Context(), dto.Actor)
	if err != nil {
		h.Logger.Warn(op+": actor mismatch", "error", err, "refund_id", id, "claimed", dto.Actor)
		h.HandleServiceError(w, err)
		return
	}

	refund, err := fn(r.Context(), id, actor, dto)
	if err != nil {
		h.Logger.Warn(op+": service error", "error", err, "refund_id", id, "actor", actor)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info(op+": refund updated", "refund_id", id, "status", refund.Status, "actor", actor)
	h.WriteJSON(w, http.StatusOK, refund)
}

// resolveActor picks the identity an operation runs as. A verified token
// identity cannot be replaced by a name in the request body.
func resolveActor(ctx context.Context, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	fromContext := internal.ActorFromContext(ctx)
	if internal.ActorVerified(ctx) {
		if claimed != "" && claimed != fromContext {
			return "", internal.ErrActorMismatch.WithDetails(map[string]string{"claimed": claimed, "verified": fromContext})
		}
		return fromContext, nil
	}
	if claimed != "" {
		return claimed, nil
	}
	return fromContext, nil
}

func (h *Handler) refundID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid refund ID")
		return 0, false
	}
	return id, true
}
