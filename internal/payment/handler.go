package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	errors "github.com/jameskipngetich/paymentService/internal"
	"github.com/jameskipngetich/paymentService/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
	Logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Logger:      logger,
	}
}

// InitiatePayment handles POST /api/v1/payments
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("InitiatePayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.Service.Initiate(r.Context(), req)
	if err != nil {
		h.Logger.Error("InitiatePayment: service error",
			"error", err,
			"member_id", req.MemberID,
			"category", req.Category)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Payment initiated. Check your phone to complete the transaction.",
		"payment": ToView(p),
	})
}

// GetPayment handles GET /api/v1/payments/{ref}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		h.HandleError(w, errors.NewValidationError("transaction reference is required", errors.ErrCodeValidationFailed))
		return
	}

	p, err := h.Service.GetByTransactionRef(ref)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToView(p))
}

// ListPayments handles GET /api/v1/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	payments, listErr := h.Service.List(filter)
	if listErr != nil {
		h.Logger.Error("ListPayments: service error", "error", listErr)
		h.HandleServiceError(w, listErr)
		return
	}

	views := make([]*PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, ToView(p))
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payments": views,
		"count":    len(views),
	})
}

func parseListFilter(r *http.Request) (ListFilter, *errors.AppError) {
	q := r.URL.Query()
	filter := ListFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
	}

	if raw := q.Get("member_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errors.NewValidationError("invalid member_id", errors.ErrCodeValidationFailed)
		}
		filter.MemberID = id
	}

	if filter.Category != "" && !IsValidCategory(filter.Category) {
		return filter, errors.NewValidationError("unknown category", errors.ErrCodeInvalidCategory)
	}

	for name, dst := range map[string]**time.Time{"date_from": &filter.From, "date_to": &filter.To} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return filter, errors.NewValidationError("invalid "+name+", expected YYYY-MM-DD", errors.ErrCodeValidationFailed)
			}
			*dst = &t
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.NewValidationError("invalid limit", errors.ErrCodeValidationFailed)
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.NewValidationError("invalid offset", errors.ErrCodeValidationFailed)
		}
		filter.Offset = offset
	}

	return filter, nil
}
