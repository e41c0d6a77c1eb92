package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	membermodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/member"
	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/payment"
	"github.com/jameskipngetich/paymentService/internal/transport"
)

var _ = Describe("Handler", func() {
	var (
		repo    *memoryRepo
		gateway *mockGateway
		router  *chi.Mux
	)

	BeforeEach(func() {
		repo = newMemoryRepo()
		gateway = &mockGateway{}
		members := newMockMembers(&membermodel.Member{
			ID:          1,
			PhoneNumber: "254712345678",
		})
		service := payment.NewService(repo, gateway, members, "MMUSDA", testLogger())
		handler := payment.NewHandler(transport.NewBaseHandler(testLogger()), service, testLogger())

		router = chi.NewRouter()
		router.Post("/payments", handler.InitiatePayment)
		router.Get("/payments", handler.ListPayments)
		router.Get("/payments/{ref}", handler.GetPayment)
	})

	Describe("InitiatePayment", func() {
		It("returns 202 with the pending payment", func() {
			body := `{"member_id": 1, "amount": "150", "category": "TITHE"}`
			req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusAccepted))

			var resp struct {
				Message string               `json:"message"`
				Payment *payment.PaymentView `json:"payment"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Message).To(ContainSubstring("Check your phone"))
			Expect(resp.Payment.Status).To(Equal(paymentmodel.StatusPending))
			Expect(resp.Payment.TransactionRef).To(HavePrefix("PMT-"))
		})

		It("returns 400 on a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader("{"))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(gateway.callCount()).To(BeZero())
		})

		It("returns 400 on validation failure", func() {
			body := `{"member_id": 1, "amount": "-10", "category": "TITHE"}`
			req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown member", func() {
			body := `{"member_id": 42, "amount": "100", "category": "TITHE"}`
			req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GetPayment", func() {
		It("returns the payment by transaction reference", func() {
			repo.seed(&paymentmodel.Payment{
				MemberID:       1,
				Category:       payment.CategoryTithe,
				Amount:         decimal.NewFromInt(100),
				PhoneNumber:    "254712345678",
				TransactionRef: "PMT-LOOKUP",
			})

			req := httptest.NewRequest(http.MethodGet, "/payments/PMT-LOOKUP", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var view payment.PaymentView
			Expect(json.Unmarshal(rec.Body.Bytes(), &view)).To(Succeed())
			Expect(view.TransactionRef).To(Equal("PMT-LOOKUP"))
			Expect(view.Amount).To(Equal("100"))
		})

		It("returns 404 for an unknown reference", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments/PMT-MISSING", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("ListPayments", func() {
		BeforeEach(func() {
			repo.seed(&paymentmodel.Payment{
				MemberID:       1,
				Category:       payment.CategoryTithe,
				Amount:         decimal.NewFromInt(100),
				PhoneNumber:    "254712345678",
				TransactionRef: "PMT-H1",
			})
			repo.seed(&paymentmodel.Payment{
				MemberID:       2,
				Category:       payment.CategoryOffering,
				Amount:         decimal.NewFromInt(50),
				PhoneNumber:    "254700000000",
				TransactionRef: "PMT-H2",
			})
		})

		It("lists payments with the member filter applied", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments?member_id=2", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Payments []*payment.PaymentView `json:"payments"`
				Count    int                    `json:"count"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(1))
			Expect(resp.Payments[0].TransactionRef).To(Equal("PMT-H2"))
		})

		It("rejects a non-numeric member_id", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments?member_id=abc", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unknown category filter", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments?category=RAFFLE", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed date filter", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments?date_from=01-02-2026", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
