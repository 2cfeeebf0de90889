package paymentgateway_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/payment"
	"github.com/frahmantamala/refund-management/internal/paymentgateway"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPaymentGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Gateway Suite")
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		client   *paymentgateway.Client
		mu       sync.Mutex
		statuses map[string]string
		authSeen string
		failing  bool
	)

	BeforeEach(func() {
		statuses = map[string]string{"123": "PAID"}
		failing = false

		r := chi.NewRouter()
		r.Get("/payments/{id}", func(w http.ResponseWriter, req *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			authSeen = req.Header.Get("Authorization")
			status, ok := statuses[chi.URLParam(req, "id")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"id":123,"reference":"INV-123","total_amount":"150.00","status":"` + status + `"}}`))
		})
		r.Patch("/payments/{id}/status", func(w http.ResponseWriter, req *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			if failing {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream down"))
				return
			}
			id := chi.URLParam(req, "id")
			if _, ok := statuses[id]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			statuses[id] = body.Status
			w.WriteHeader(http.StatusNoContent)
		})

		server = httptest.NewServer(r)
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		client = paymentgateway.NewClient(paymentgateway.Config{
			BaseURL: server.URL + "/",
			APIKey:  "gateway-key",
			Timeout: time.Second,
		}, lg)
	})

	AfterEach(func() {
		server.Close()
	})

	It("should fetch a payment", func() {
		p, err := client.GetPayment(context.Background(), 123)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Reference).To(Equal("INV-123"))
		Expect(p.Total.StringFixed(2)).To(Equal("150.00"))
		Expect(p.Status).To(Equal(payment.StatusPaid))

		mu.Lock()
		defer mu.Unlock()
		Expect(authSeen).To(Equal("Bearer gateway-key"))
	})

	It("should report an unknown payment as not found", func() {
		_, err := client.GetPayment(context.Background(), 9)
		Expect(err).To(MatchError(internal.ErrPaymentNotFound))

		err = client.SetPaymentStatus(context.Background(), 9, payment.StatusRefunded)
		Expect(err).To(MatchError(internal.ErrPaymentNotFound))
	})

	It("should record a payment status", func() {
		Expect(client.SetPaymentStatus(context.Background(), 123, payment.StatusPartiallyRefunded)).To(Succeed())

		p, err := client.GetPayment(context.Background(), 123)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(payment.StatusPartiallyRefunded))
	})

	It("should surface upstream failures as plain errors", func() {
		mu.Lock()
		failing = true
		mu.Unlock()

		err := client.SetPaymentStatus(context.Background(), 123, payment.StatusRefunded)
		Expect(err).To(HaveOccurred())
		_, isApp := internal.IsAppError(err)
		Expect(isApp).To(BeFalse())
		Expect(err.Error()).To(ContainSubstring("502"))
	})

	It("should fail when the service is unreachable", func() {
		server.Close()
		_, err := client.GetPayment(context.Background(), 123)
		Expect(err).To(HaveOccurred())
	})
})
