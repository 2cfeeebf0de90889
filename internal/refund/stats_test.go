package refund_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/refund"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stats Service", func() {
	var (
		ctx   context.Context
		repo  *MockRepository
		stats *refund.StatsService
		base  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		stats = refund.NewStatsService(repo, testLogger())
		base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	})

	seed := func(amt string, status refund.Status, requestedAt time.Time) {
		r := refund.NewRefund(1, amount(amt), "", refund.MethodCash, "Clerk", requestedAt)
		r.Status = status
		Expect(repo.Create(ctx, refund.ToDataModel(r))).To(Succeed())
	}

	Context("with no refunds", func() {
		It("should return empty maps", func() {
			counts, err := stats.CountByStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(BeEmpty())

			totals, err := stats.SumAmountByStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(BeEmpty())
		})
	})

	Context("with a mix of statuses", func() {
		BeforeEach(func() {
			seed("10", refund.StatusPending, base)
			seed("20.50", refund.StatusPending, base.Add(time.Hour))
			seed("30", refund.StatusCompleted, base.Add(2*time.Hour))
			seed("5", refund.StatusRejected, base.Add(3*time.Hour))
		})

		It("should count per status and omit empty statuses", func() {
			counts, err := stats.CountByStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(Equal(map[refund.Status]int{
				refund.StatusPending:   2,
				refund.StatusCompleted: 1,
				refund.StatusRejected:  1,
			}))
		})

		It("should sum amounts exactly", func() {
			totals, err := stats.SumAmountByStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(HaveLen(3))
			Expect(totals[refund.StatusPending].Equal(amount("30.50"))).To(BeTrue())
			Expect(totals[refund.StatusCompleted].Equal(amount("30"))).To(BeTrue())
		})

		It("should build a summary from one snapshot", func() {
			summary, err := stats.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Counts[refund.StatusPending]).To(Equal(2))
			Expect(summary.Totals[refund.StatusRejected].Equal(amount("5"))).To(BeTrue())
		})

		It("should return refunds requested in a half-open range", func() {
			refunds, err := stats.InRange(ctx, base, base.Add(2*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(refunds).To(HaveLen(2))
			Expect(refunds[0].RequestedAt.Equal(base)).To(BeTrue())
		})

		It("should return nothing for an empty range", func() {
			refunds, err := stats.InRange(ctx, base, base)
			Expect(err).NotTo(HaveOccurred())
			Expect(refunds).To(BeEmpty())
		})

		It("should reject an inverted range", func() {
			_, err := stats.InRange(ctx, base.Add(time.Hour), base)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
		})
	})

	It("should wrap store failures", func() {
		repo.SetShouldFail(errors.New("connection reset"))
		_, err := stats.Summary(ctx)
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeInternal))
	})
})
