package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/jameskipngetich/paymentService/internal"
	"github.com/jameskipngetich/paymentService/internal/core/events"
	"github.com/jameskipngetich/paymentService/internal/transport"
)

// WebhookHandler receives asynchronous gateway callbacks. The gateway does
// not retry usefully on a non-2xx reply, so every request is acknowledged
// with 200 no matter what happens internally; failures are logged for
// manual review instead of surfacing.
type WebhookHandler struct {
	*transport.BaseHandler
	ledger        *Ledger
	eventBus      *events.EventBus
	callbackToken string
	logger        *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, ledger *Ledger, eventBus *events.EventBus, callbackToken string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:   baseHandler,
		ledger:        ledger,
		eventBus:      eventBus,
		callbackToken: callbackToken,
		logger:        logger,
	}
}

func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	// Acknowledge unconditionally; the switch below only decides what gets
	// logged and recorded.
	defer h.WriteJSON(w, http.StatusOK, AcceptedAck())

	if h.callbackToken != "" && r.Header.Get("X-Callback-Token") != h.callbackToken {
		h.logger.Error("callback rejected: bad shared-secret token",
			"remote_addr", r.RemoteAddr)
		return
	}

	var payload CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Error("callback body could not be decoded", "error", err)
		return
	}

	h.logger.Info("received payment callback",
		"result_code", payload.ResultCode,
		"transaction_ref", payload.TransactionRef,
		"transaction_id", payload.TransactionID,
		"phone_number", payload.PhoneNumber)

	h.process(r, &payload)
}

func (h *WebhookHandler) process(r *http.Request, payload *CallbackPayload) {
	phone := string(payload.PhoneNumber)

	p, err := h.ledger.Resolve(payload.TransactionRef, phone)
	if err != nil {
		h.logger.Warn("orphan callback: no matching payment",
			"transaction_ref", payload.TransactionRef,
			"transaction_id", payload.TransactionID,
			"phone_number", phone,
			"result_code", payload.ResultCode)
		if h.eventBus != nil {
			h.eventBus.Publish(r.Context(), events.NewCallbackOrphanedEvent(
				payload.TransactionRef, phone, payload.ResultCode))
		}
		return
	}

	outcome := Outcome{
		Success:       payload.Succeeded(),
		ReceiptNumber: payload.MpesaReceiptNumber,
		FailureReason: payload.ResultDesc,
	}
	if !outcome.Success && outcome.FailureReason == "" {
		outcome.FailureReason = "gateway reported failure"
	}

	if _, err := h.ledger.RecordOutcome(r.Context(), p.TransactionRef, outcome); err != nil {
		if errors.IsConflict(err) {
			// Already logged by the ledger; kept out of the response by design.
			return
		}
		h.logger.Error("failed to process payment callback",
			"transaction_ref", p.TransactionRef,
			"error", err)
	}
}
