package refund_test

import (
	"errors"
	"strings"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/refund"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Refund validation", func() {
	Describe("ValidateCreation", func() {
		DescribeTable("amount checks",
			func(total, refunded, requested string, ok bool) {
				err := refund.ValidateCreation(amount(total), amount(refunded), amount(requested))
				if ok {
					Expect(err).NotTo(HaveOccurred())
				} else {
					Expect(errors.Is(err, internal.ErrInvalidAmount)).To(BeTrue())
				}
			},
			Entry("full amount", "150", "0", "150", true),
			Entry("more than the total", "150", "0", "200", false),
			Entry("exact remainder", "100", "60", "40", true),
			Entry("over the remainder", "100", "60", "40.01", false),
			Entry("zero", "100", "0", "0", false),
			Entry("negative", "100", "0", "-1", false),
		)
	})

	Describe("ValidateTransition", func() {
		DescribeTable("lifecycle",
			func(from, to refund.Status, ok bool) {
				err := refund.ValidateTransition(from, to)
				if ok {
					Expect(err).NotTo(HaveOccurred())
				} else {
					Expect(errors.Is(err, internal.ErrIllegalTransition)).To(BeTrue())
				}
			},
			Entry("pending to approved", refund.StatusPending, refund.StatusApproved, true),
			Entry("pending to rejected", refund.StatusPending, refund.StatusRejected, true),
			Entry("pending to cancelled", refund.StatusPending, refund.StatusCancelled, true),
			Entry("pending to processing", refund.StatusPending, refund.StatusProcessing, false),
			Entry("approved to processing", refund.StatusApproved, refund.StatusProcessing, true),
			Entry("approved to cancelled", refund.StatusApproved, refund.StatusCancelled, true),
			Entry("approved to completed", refund.StatusApproved, refund.StatusCompleted, false),
			Entry("processing to completed", refund.StatusProcessing, refund.StatusCompleted, true),
			Entry("processing to cancelled", refund.StatusProcessing, refund.StatusCancelled, false),
			Entry("completed to completed", refund.StatusCompleted, refund.StatusCompleted, false),
			Entry("rejected to approved", refund.StatusRejected, refund.StatusApproved, false),
			Entry("cancelled to pending", refund.StatusCancelled, refund.StatusPending, false),
		)

		It("should treat completed, rejected and cancelled as terminal", func() {
			Expect(refund.StatusCompleted.IsTerminal()).To(BeTrue())
			Expect(refund.StatusRejected.IsTerminal()).To(BeTrue())
			Expect(refund.StatusCancelled.IsTerminal()).To(BeTrue())
			Expect(refund.StatusApproved.IsTerminal()).To(BeFalse())
		})
	})

	Describe("ParseStatus", func() {
		It("should accept any case", func() {
			s, err := refund.ParseStatus(" approved ")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(refund.StatusApproved))
		})

		It("should reject unknown statuses", func() {
			_, err := refund.ParseStatus("VOID")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidateRequestFields", func() {
		It("should accept a well formed request", func() {
			Expect(refund.ValidateRequestFields(amount("10.25"), "damaged", refund.MethodVoucher, "")).To(Succeed())
		})

		It("should reject more than two decimal places", func() {
			Expect(refund.ValidateRequestFields(amount("10.255"), "", "", "")).NotTo(Succeed())
		})

		It("should reject an unknown method", func() {
			err := refund.ValidateRequestFields(amount("10"), "", "CHEQUE", "")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.GetDetailedMessage()).To(ContainSubstring("method"))
		})

		It("should reject an oversized reason", func() {
			Expect(refund.ValidateRequestFields(amount("10"), strings.Repeat("a", refund.MaxReasonLength+1), "", "")).NotTo(Succeed())
		})
	})

	Describe("ValidateActor", func() {
		It("should reject blank actors", func() {
			Expect(errors.Is(refund.ValidateActor(" "), internal.ErrMissingActor)).To(BeTrue())
			Expect(refund.ValidateActor("Manager A")).To(Succeed())
		})
	})

	Describe("AppendNote", func() {
		It("should join lines and ignore blanks", func() {
			r := &refund.Refund{}
			r.AppendNote("first")
			r.AppendNote("  ")
			r.AppendNote("second")
			Expect(r.Notes).To(Equal("first\nsecond"))
		})
	})
})
