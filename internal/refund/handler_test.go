package refund_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/refund"
	"github.com/frahmantamala/refund-management/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Refund Handler", func() {
	var (
		repo    *MockRepository
		gateway *MockPaymentGateway
		service *refund.Service
		router  *chi.Mux
	)

	BeforeEach(func() {
		repo = NewMockRepository()
		gateway = NewMockPaymentGateway()
		gateway.AddPayment(123, "150")
		service = refund.NewService(repo, gateway, &RecordingPublisher{}, testLogger(), testOptions)
		stats := refund.NewStatsService(repo, testLogger())
		handler := refund.NewHandler(&transport.BaseHandler{Logger: testLogger()}, service, stats)

		router = chi.NewRouter()
		router.Route("/refunds", func(r chi.Router) {
			r.Post("/", handler.CreateRefund)
			r.Get("/", handler.ListRefunds)
			r.Get("/stats", handler.GetStats)
			r.Get("/range", handler.GetRange)
			r.Get("/{id}", handler.GetRefund)
			r.Patch("/{id}/approve", handler.ApproveRefund)
			r.Patch("/{id}/reject", handler.RejectRefund)
			r.Patch("/{id}/cancel", handler.CancelRefund)
			r.Patch("/{id}/process", handler.ProcessRefund)
			r.Patch("/{id}/complete", handler.CompleteRefund)
			r.Post("/{id}/reconcile", handler.ReconcileRefund)
		})
	})

	do := func(method, path, actor, body string) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body == "" {
			reader = bytes.NewReader(nil)
		} else {
			reader = bytes.NewReader([]byte(body))
		}
		req := httptest.NewRequest(method, path, reader)
		if actor != "" {
			req = req.WithContext(internal.ContextWithActor(req.Context(), actor))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeRefund := func(w *httptest.ResponseRecorder) *refund.Refund {
		var r refund.Refund
		Expect(json.NewDecoder(w.Body).Decode(&r)).To(Succeed())
		return &r
	}

	decodeError := func(w *httptest.ResponseRecorder) errorBody {
		var e errorBody
		Expect(json.NewDecoder(w.Body).Decode(&e)).To(Succeed())
		return e
	}

	It("should run a refund through its whole lifecycle", func() {
		w := do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"150","reason":"Guest complaint"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		created := decodeRefund(w)
		Expect(created.Status).To(Equal(refund.StatusPending))
		Expect(created.RequestedBy).To(Equal("Front Desk"))

		w = do(http.MethodPatch, "/refunds/1/approve", "Manager A", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeRefund(w).ApprovedBy).To(Equal("Manager A"))

		w = do(http.MethodPatch, "/refunds/1/process", "", `{"actor":"Officer B"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeRefund(w).ProcessedBy).To(Equal("Officer B"))

		w = do(http.MethodPatch, "/refunds/1/complete", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		completed := decodeRefund(w)
		Expect(completed.Status).To(Equal(refund.StatusCompleted))
		Expect(completed.ReconciledAt).NotTo(BeNil())

		w = do(http.MethodPatch, "/refunds/1/complete", "", "")
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeIllegalTransition)))
	})

	It("should reject an amount above the payment total with 400", func() {
		w := do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":200}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeInvalidAmount)))
	})

	It("should return 404 for an unknown payment and refund", func() {
		w := do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":77,"amount":"1"}`)
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodePaymentNotFound)))

		w = do(http.MethodGet, "/refunds/42", "", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeRefundNotFound)))
	})

	It("should require an actor", func() {
		w := do(http.MethodPost, "/refunds", "", `{"payment_id":123,"amount":"10"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodeMissingActor)))
	})

	It("should reject malformed input", func() {
		Expect(do(http.MethodPost, "/refunds", "Front Desk", `{`).Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodPost, "/refunds", "Front Desk", `{"amount":"10"}`).Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodGet, "/refunds/abc", "", "").Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodGet, "/refunds?status=VOID", "", "").Code).To(Equal(http.StatusBadRequest))
	})

	It("should record the rejection reason", func() {
		do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"10"}`)

		w := do(http.MethodPatch, "/refunds/1/reject", "Manager A", `{"reason":"Outside refund window"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		rejected := decodeRefund(w)
		Expect(rejected.Status).To(Equal(refund.StatusRejected))
		Expect(rejected.Notes).To(ContainSubstring("Outside refund window"))
	})

	It("should answer 503 when the gateway is down", func() {
		do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"10"}`)
		do(http.MethodPatch, "/refunds/1/approve", "Manager A", "")
		do(http.MethodPatch, "/refunds/1/process", "Officer B", "")
		gateway.FailWrites(100)

		w := do(http.MethodPatch, "/refunds/1/complete", "", "")
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(decodeError(w).Error.Code).To(Equal(string(internal.ErrCodePortUnavailable)))

		gateway.FailWrites(0)
		w = do(http.MethodPost, "/refunds/1/reconcile", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeRefund(w).ReconciledAt).NotTo(BeNil())
	})

	It("should list refunds by status", func() {
		do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"10"}`)
		do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"20"}`)
		do(http.MethodPatch, "/refunds/2/cancel", "Front Desk", "")

		w := do(http.MethodGet, "/refunds?status=pending", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp refund.RefundsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Count).To(Equal(1))
		Expect(resp.Refunds[0].ID).To(Equal(int64(1)))
	})

	It("should serve statistics and date ranges", func() {
		do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"10"}`)
		do(http.MethodPost, "/refunds", "Front Desk", `{"payment_id":123,"amount":"20.50"}`)

		w := do(http.MethodGet, "/refunds/stats", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var summary refund.Summary
		Expect(json.NewDecoder(w.Body).Decode(&summary)).To(Succeed())
		Expect(summary.Counts[refund.StatusPending]).To(Equal(2))
		Expect(summary.Totals[refund.StatusPending].String()).To(Equal("30.5"))

		now := time.Now().UTC()
		path := "/refunds/range?start=" + now.Add(-time.Hour).Format(time.RFC3339) + "&end=" + now.Add(time.Hour).Format(time.RFC3339)
		w = do(http.MethodGet, path, "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var rng refund.RangeResponse
		Expect(json.NewDecoder(w.Body).Decode(&rng)).To(Succeed())
		Expect(rng.Count).To(Equal(2))

		w = do(http.MethodGet, "/refunds/range?start=yesterday&end=today", "", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		inverted := "/refunds/range?start=" + now.Format(time.RFC3339) + "&end=" + now.Add(-time.Hour).Format(time.RFC3339)
		Expect(do(http.MethodGet, inverted, "", "").Code).To(Equal(http.StatusBadRequest))
	})

	It("should map a timed out operation to 504", func() {
		base := transport.NewBaseHandler(testLogger())
		w := httptest.NewRecorder()
		base.HandleServiceError(w, context.DeadlineExceeded)
		Expect(w.Code).To(Equal(http.StatusGatewayTimeout))
		Expect(strings.ToLower(w.Body.String())).To(ContainSubstring("timed out"))
	})
})
