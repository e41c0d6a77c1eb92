package payment_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/payment"
)

var _ = Describe("Reconciler", func() {
	var (
		repo       *memoryRepo
		ledger     *payment.Ledger
		reconciler *payment.Reconciler
	)

	seedAged := func(ref, status string, age time.Duration) {
		repo.seed(&paymentmodel.Payment{
			MemberID:       1,
			Category:       payment.CategoryTithe,
			Amount:         decimal.NewFromInt(100),
			PhoneNumber:    "254712345678",
			TransactionRef: ref,
			Status:         status,
			CreatedAt:      time.Now().UTC().Add(-age),
		})
	}

	BeforeEach(func() {
		repo = newMemoryRepo()
		ledger = payment.NewLedger(repo, nil, testLogger())
		reconciler = payment.NewReconciler(ledger, repo, time.Minute, 15*time.Minute, testLogger())
	})

	Describe("Sweep", func() {
		It("expires payments pending beyond the timeout", func() {
			seedAged("PMT-STALE-1", paymentmodel.StatusPending, time.Hour)
			seedAged("PMT-STALE-2", paymentmodel.StatusPending, 20*time.Minute)

			expired, err := reconciler.Sweep(context.Background())
			Expect(err).ToNot(HaveOccurred())
			Expect(expired).To(Equal(2))

			for _, ref := range []string{"PMT-STALE-1", "PMT-STALE-2"} {
				p, _ := repo.GetByTransactionRef(ref)
				Expect(p.Status).To(Equal(paymentmodel.StatusFailed))
				Expect(*p.FailureReason).To(Equal("no callback received within timeout"))
			}
		})

		It("leaves recent pending payments alone", func() {
			seedAged("PMT-FRESH", paymentmodel.StatusPending, time.Minute)

			expired, err := reconciler.Sweep(context.Background())
			Expect(err).ToNot(HaveOccurred())
			Expect(expired).To(BeZero())

			p, _ := repo.GetByTransactionRef("PMT-FRESH")
			Expect(p.Status).To(Equal(paymentmodel.StatusPending))
		})

		It("never touches finalized payments", func() {
			seedAged("PMT-DONE", paymentmodel.StatusCompleted, time.Hour)
			seedAged("PMT-LOST", paymentmodel.StatusFailed, time.Hour)

			expired, err := reconciler.Sweep(context.Background())
			Expect(err).ToNot(HaveOccurred())
			Expect(expired).To(BeZero())

			done, _ := repo.GetByTransactionRef("PMT-DONE")
			Expect(done.Status).To(Equal(paymentmodel.StatusCompleted))
			lost, _ := repo.GetByTransactionRef("PMT-LOST")
			Expect(lost.Status).To(Equal(paymentmodel.StatusFailed))
		})

		It("skips a payment the callback finalized just before the sweep", func() {
			seedAged("PMT-RACED", paymentmodel.StatusPending, time.Hour)

			rows, err := repo.CompletePending("PMT-RACED", "RCT-RACED", time.Now().UTC())
			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(Equal(int64(1)))

			expired, sweepErr := reconciler.Sweep(context.Background())
			Expect(sweepErr).ToNot(HaveOccurred())
			Expect(expired).To(BeZero())

			p, _ := repo.GetByTransactionRef("PMT-RACED")
			Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
		})
	})

	Describe("Start and Stop", func() {
		It("runs sweeps on the interval until stopped", func() {
			seedAged("PMT-TICK", paymentmodel.StatusPending, time.Hour)

			fast := payment.NewReconciler(ledger, repo, 10*time.Millisecond, 15*time.Minute, testLogger())
			fast.Start(context.Background())
			defer fast.Stop()

			Eventually(func() string {
				p, _ := repo.GetByTransactionRef("PMT-TICK")
				return p.Status
			}, time.Second, 10*time.Millisecond).Should(Equal(paymentmodel.StatusFailed))
		})
	})
})
