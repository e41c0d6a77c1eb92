package payment_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/payment"
	"github.com/jameskipngetich/paymentService/internal/transport"
)

var _ = Describe("WebhookHandler", func() {
	var (
		repo    *memoryRepo
		ledger  *payment.Ledger
		handler *payment.WebhookHandler
	)

	newHandler := func(callbackToken string) *payment.WebhookHandler {
		return payment.NewWebhookHandler(
			transport.NewBaseHandler(testLogger()),
			ledger,
			nil,
			callbackToken,
			testLogger(),
		)
	}

	post := func(h *payment.WebhookHandler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewReader(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.HandleCallback(rec, req)
		return rec
	}

	expectAck := func(rec *httptest.ResponseRecorder) {
		Expect(rec.Code).To(Equal(http.StatusOK))
		var ack payment.CallbackAck
		Expect(json.Unmarshal(rec.Body.Bytes(), &ack)).To(Succeed())
		Expect(ack.ResultCode).To(BeZero())
	}

	BeforeEach(func() {
		repo = newMemoryRepo()
		ledger = payment.NewLedger(repo, nil, testLogger())
		handler = newHandler("")

		repo.seed(&paymentmodel.Payment{
			MemberID:       1,
			Category:       payment.CategoryTithe,
			Amount:         decimal.NewFromInt(100),
			PhoneNumber:    "254712345678",
			TransactionRef: "PMT-CALLBACK",
			Status:         paymentmodel.StatusPending,
		})
	})

	It("completes the payment on a success callback", func() {
		body, _ := json.Marshal(payment.CallbackPayload{
			ResultCode:         0,
			ResultDesc:         "The service request is processed successfully.",
			PhoneNumber:        "254712345678",
			MpesaReceiptNumber: "QGH7SK61SU",
			TransactionRef:     "PMT-CALLBACK",
		})

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
		Expect(*p.ReceiptNumber).To(Equal("QGH7SK61SU"))
	})

	It("fails the payment on a non-zero result code", func() {
		body, _ := json.Marshal(payment.CallbackPayload{
			ResultCode:     1032,
			ResultDesc:     "Request cancelled by user",
			PhoneNumber:    "254712345678",
			TransactionRef: "PMT-CALLBACK",
		})

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusFailed))
		Expect(*p.FailureReason).To(Equal("Request cancelled by user"))
	})

	It("decodes a payload with unquoted numeric fields", func() {
		body := []byte(`{"ResultCode":0,"ResultDesc":"The service request is processed successfully.","PhoneNumber":254712345678,"Amount":100,"MpesaReceiptNumber":"QGH7SK61SU","TransactionRef":"PMT-CALLBACK"}`)

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
		Expect(*p.ReceiptNumber).To(Equal("QGH7SK61SU"))
	})

	It("correlates an unquoted phone number when the reference is missing", func() {
		body := []byte(`{"ResultCode":0,"PhoneNumber":254712345678,"Amount":100,"MpesaReceiptNumber":"QGH7SK61SU"}`)

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
	})

	It("correlates by phone number when the reference is missing", func() {
		body, _ := json.Marshal(payment.CallbackPayload{
			ResultCode:         0,
			PhoneNumber:        "254712345678",
			MpesaReceiptNumber: "QGH7SK61SU",
		})

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
	})

	It("acknowledges an orphan callback without touching any payment", func() {
		body, _ := json.Marshal(payment.CallbackPayload{
			ResultCode:     0,
			PhoneNumber:    "254799999999",
			TransactionRef: "PMT-UNKNOWN",
		})

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusPending))
	})

	It("acknowledges a malformed body", func() {
		rec := post(handler, []byte(`{"ResultCode": "not-an-int"`), nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusPending))
	})

	It("acknowledges a conflicting outcome without changing the recorded state", func() {
		completedAt := time.Now().UTC()
		rows, err := repo.CompletePending("PMT-CALLBACK", "RCT-FIRST", completedAt)
		Expect(err).ToNot(HaveOccurred())
		Expect(rows).To(Equal(int64(1)))

		body, _ := json.Marshal(payment.CallbackPayload{
			ResultCode:     1037,
			ResultDesc:     "DS timeout",
			PhoneNumber:    "254712345678",
			TransactionRef: "PMT-CALLBACK",
		})

		rec := post(handler, body, nil)
		expectAck(rec)

		p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
		Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
		Expect(*p.ReceiptNumber).To(Equal("RCT-FIRST"))
	})

	Context("with a shared-secret token configured", func() {
		BeforeEach(func() {
			handler = newHandler("s3cret")
		})

		It("drops a callback with a missing or wrong token but still acknowledges", func() {
			body, _ := json.Marshal(payment.CallbackPayload{
				ResultCode:     0,
				TransactionRef: "PMT-CALLBACK",
			})

			rec := post(handler, body, map[string]string{"X-Callback-Token": "wrong"})
			expectAck(rec)

			p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
			Expect(p.Status).To(Equal(paymentmodel.StatusPending))
		})

		It("processes a callback carrying the right token", func() {
			body, _ := json.Marshal(payment.CallbackPayload{
				ResultCode:         0,
				MpesaReceiptNumber: "QGH7SK61SU",
				TransactionRef:     "PMT-CALLBACK",
			})

			rec := post(handler, body, map[string]string{"X-Callback-Token": "s3cret"})
			expectAck(rec)

			p, _ := repo.GetByTransactionRef("PMT-CALLBACK")
			Expect(p.Status).To(Equal(paymentmodel.StatusCompleted))
		})
	})
})
