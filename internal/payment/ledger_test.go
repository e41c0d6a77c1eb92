package payment_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	internalerrors "github.com/jameskipngetich/paymentService/internal"
	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/payment"
)

var _ = Describe("Ledger", func() {
	var (
		repo   *memoryRepo
		ledger *payment.Ledger
	)

	pendingPayment := func(ref, phone string) *paymentmodel.Payment {
		return repo.seed(&paymentmodel.Payment{
			MemberID:       1,
			Category:       payment.CategoryTithe,
			Amount:         decimal.NewFromInt(100),
			PhoneNumber:    phone,
			TransactionRef: ref,
			AccountRef:     "MMUSDA_TITHE",
			Status:         paymentmodel.StatusPending,
		})
	}

	BeforeEach(func() {
		repo = newMemoryRepo()
		ledger = payment.NewLedger(repo, nil, testLogger())
	})

	Describe("Resolve", func() {
		It("prefers the transaction reference when present", func() {
			pendingPayment("PMT-AAA", "254712345678")
			pendingPayment("PMT-BBB", "254712345678")

			p, err := ledger.Resolve("PMT-BBB", "254712345678")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.TransactionRef).To(Equal("PMT-BBB"))
		})

		It("falls back to the oldest pending payment for the phone number", func() {
			older := repo.seed(&paymentmodel.Payment{
				MemberID:       1,
				Amount:         decimal.NewFromInt(50),
				PhoneNumber:    "254712345678",
				TransactionRef: "PMT-OLD",
				Status:         paymentmodel.StatusPending,
				CreatedAt:      time.Now().UTC().Add(-10 * time.Minute),
			})
			repo.seed(&paymentmodel.Payment{
				MemberID:       1,
				Amount:         decimal.NewFromInt(200),
				PhoneNumber:    "254712345678",
				TransactionRef: "PMT-NEW",
				Status:         paymentmodel.StatusPending,
				CreatedAt:      time.Now().UTC().Add(-1 * time.Minute),
			})

			p, err := ledger.Resolve("", "254712345678")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.TransactionRef).To(Equal(older.TransactionRef))
		})

		It("skips finalized payments in the phone fallback", func() {
			repo.seed(&paymentmodel.Payment{
				MemberID:       1,
				PhoneNumber:    "254712345678",
				TransactionRef: "PMT-DONE",
				Status:         paymentmodel.StatusCompleted,
				CreatedAt:      time.Now().UTC().Add(-10 * time.Minute),
			})
			pendingPayment("PMT-OPEN", "254712345678")

			p, err := ledger.Resolve("", "254712345678")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.TransactionRef).To(Equal("PMT-OPEN"))
		})

		It("returns not-found when nothing matches", func() {
			_, err := ledger.Resolve("PMT-GHOST", "")
			Expect(err).To(MatchError(internalerrors.ErrPaymentNotFound))

			_, err = ledger.Resolve("", "254700000000")
			Expect(err).To(MatchError(internalerrors.ErrPaymentNotFound))

			_, err = ledger.Resolve("", "")
			Expect(err).To(MatchError(internalerrors.ErrPaymentNotFound))
		})
	})

	Describe("RecordOutcome", func() {
		It("completes a pending payment and records the receipt", func() {
			pendingPayment("PMT-OK", "254712345678")

			p, err := ledger.RecordOutcome(context.Background(), "PMT-OK", payment.Outcome{
				Success:       true,
				ReceiptNumber: "QGH7SK61SU",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
			Expect(p.ReceiptNumber).ToNot(BeNil())
			Expect(*p.ReceiptNumber).To(Equal("QGH7SK61SU"))
			Expect(p.CompletedAt).ToNot(BeNil())
		})

		It("fails a pending payment and records the reason", func() {
			pendingPayment("PMT-NO", "254712345678")

			p, err := ledger.RecordOutcome(context.Background(), "PMT-NO", payment.Outcome{
				Success:       false,
				FailureReason: "Request cancelled by user",
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentmodel.StatusFailed))
			Expect(p.FailureReason).ToNot(BeNil())
			Expect(*p.FailureReason).To(Equal("Request cancelled by user"))
		})

		It("treats a duplicate outcome as a no-op", func() {
			pendingPayment("PMT-DUP", "254712345678")

			first, err := ledger.RecordOutcome(context.Background(), "PMT-DUP", payment.Outcome{
				Success:       true,
				ReceiptNumber: "RCT-1",
			})
			Expect(err).ToNot(HaveOccurred())

			second, err := ledger.RecordOutcome(context.Background(), "PMT-DUP", payment.Outcome{
				Success:       true,
				ReceiptNumber: "RCT-2",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(second.Status).To(Equal(paymentmodel.StatusCompleted))
			Expect(*second.ReceiptNumber).To(Equal(*first.ReceiptNumber))
		})

		It("reports a conflict for a divergent outcome and keeps the recorded state", func() {
			pendingPayment("PMT-CONFLICT", "254712345678")

			_, err := ledger.RecordOutcome(context.Background(), "PMT-CONFLICT", payment.Outcome{
				Success:       true,
				ReceiptNumber: "RCT-1",
			})
			Expect(err).ToNot(HaveOccurred())

			p, err := ledger.RecordOutcome(context.Background(), "PMT-CONFLICT", payment.Outcome{
				Success:       false,
				FailureReason: "timed out",
			})
			Expect(err).To(HaveOccurred())
			Expect(internalerrors.IsConflict(err)).To(BeTrue())
			Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
			Expect(*p.ReceiptNumber).To(Equal("RCT-1"))
		})

		It("lets exactly one of two concurrent divergent reports win", func() {
			pendingPayment("PMT-RACE", "254712345678")

			var (
				wg         sync.WaitGroup
				successErr error
				failureErr error
			)

			wg.Add(2)
			go func() {
				defer wg.Done()
				_, successErr = ledger.RecordOutcome(context.Background(), "PMT-RACE", payment.Outcome{
					Success:       true,
					ReceiptNumber: "RCT-RACE",
				})
			}()
			go func() {
				defer wg.Done()
				_, failureErr = ledger.RecordOutcome(context.Background(), "PMT-RACE", payment.Outcome{
					Success:       false,
					FailureReason: "timed out",
				})
			}()
			wg.Wait()

			p, err := repo.GetByTransactionRef("PMT-RACE")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.IsTerminal()).To(BeTrue())

			if p.Status == paymentmodel.StatusCompleted {
				Expect(successErr).ToNot(HaveOccurred())
				Expect(internalerrors.IsConflict(failureErr)).To(BeTrue())
			} else {
				Expect(failureErr).ToNot(HaveOccurred())
				Expect(internalerrors.IsConflict(successErr)).To(BeTrue())
			}
		})

		It("returns not-found for an unknown transaction reference", func() {
			_, err := ledger.RecordOutcome(context.Background(), "PMT-GHOST", payment.Outcome{Success: true})
			Expect(err).To(MatchError(internalerrors.ErrPaymentNotFound))
		})
	})

	Describe("Expire", func() {
		It("fails a pending payment with the expiry reason", func() {
			pendingPayment("PMT-STALE", "254712345678")

			expired, err := ledger.Expire(context.Background(), "PMT-STALE", "no callback received within timeout")
			Expect(err).ToNot(HaveOccurred())
			Expect(expired).To(BeTrue())

			p, _ := repo.GetByTransactionRef("PMT-STALE")
			Expect(p.Status).To(Equal(paymentmodel.StatusFailed))
			Expect(*p.FailureReason).To(Equal("no callback received within timeout"))
		})

		It("skips an already-finalized payment without reporting a conflict", func() {
			pendingPayment("PMT-WON", "254712345678")
			_, err := ledger.RecordOutcome(context.Background(), "PMT-WON", payment.Outcome{
				Success:       true,
				ReceiptNumber: "RCT-WON",
			})
			Expect(err).ToNot(HaveOccurred())

			expired, err := ledger.Expire(context.Background(), "PMT-WON", "no callback received within timeout")
			Expect(err).ToNot(HaveOccurred())
			Expect(expired).To(BeFalse())

			p, _ := repo.GetByTransactionRef("PMT-WON")
			Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
		})
	})
})
