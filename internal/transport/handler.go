package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bookstore-be/internal/auth"
	"bookstore-be/internal/checkout"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/metrics"
	"bookstore-be/internal/order"
	"bookstore-be/internal/payment"
	"bookstore-be/internal/reconcile"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	Checkout  checkout.Service
	Reconcile reconcile.Service
	Gateway   payment.Gateway
	Metrics   *metrics.Checkout
	DB        Pinger
	// BreakerState reports the provider circuit state; nil when unused.
	BreakerState func() string

	ClientSuccessURL string
	ClientRetryURL   string
}

type checkoutRequest struct {
	ShippingAddress *string `json:"shippingAddress"`
}

type decisionRequest struct {
	Decision reconcile.Decision `json:"decision"`
}

type outcomeResponse struct {
	OrderID  uint         `json:"orderId"`
	Status   order.Status `json:"status"`
	Replayed bool         `json:"replayed,omitempty"`
}

// POST /checkout/session
func (h *Handler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, payment.MethodCard, http.StatusOK)
}

// POST /checkout/cod
func (h *Handler) CheckoutCOD(w http.ResponseWriter, r *http.Request) {
	h.checkout(w, r, payment.MethodCOD, http.StatusCreated)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, method payment.Method, okStatus int) {
	id, _ := auth.FromContext(r.Context())

	var body checkoutRequest
	if err := decodeBody(r, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	res, err := h.Checkout.Checkout(r.Context(), checkout.Request{
		UserID:          id.UserID,
		Method:          method,
		ShippingAddress: body.ShippingAddress,
	})
	if err != nil {
		h.checkoutError(w, r, res, err)
		return
	}

	respondJSON(w, r, okStatus, res)
}

// POST /checkout/orders/{orderID}/session
func (h *Handler) RetrySession(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	orderID, ok := parseID(chi.URLParam(r, "orderID"))
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_order_id", "orderID must be a positive integer")
		return
	}

	res, err := h.Checkout.RetrySession(r.Context(), id.UserID, orderID)
	if err != nil {
		h.checkoutError(w, r, res, err)
		return
	}

	respondJSON(w, r, http.StatusOK, res)
}

// GET /checkout/callback/success?session=
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, h.Reconcile.HandleSuccess, h.ClientSuccessURL)
}

// GET /checkout/callback/cancel?session=
func (h *Handler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	h.callback(w, r, h.Reconcile.HandleCancel, h.ClientRetryURL)
}

func (h *Handler) callback(
	w http.ResponseWriter,
	r *http.Request,
	leg func(ctx context.Context, sessionID string) (*reconcile.Outcome, error),
	target string,
) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, r, http.StatusBadRequest, "missing_session", "session query parameter is required")
		return
	}

	out, err := leg(r.Context(), sessionID)
	if err != nil {
		log := logger.FromCtx(r.Context()).With(zap.String("session_id", sessionID))
		switch {
		case errors.Is(err, payment.ErrSessionNotFound), errors.Is(err, payment.ErrInvalidCorrelation):
			respondError(w, r, http.StatusNotFound, "session_not_found", "unknown payment session")
		case errors.Is(err, payment.ErrProviderUnavailable):
			respondError(w, r, http.StatusBadGateway, "provider_unavailable", "payment provider unavailable, please try again")
		case out != nil && out.OrderID != 0:
			// the buyer still lands on the retry page; the order keeps its state
			if errors.Is(err, order.ErrOrderNotFound) || errors.Is(err, reconcile.ErrStalePaymentState) {
				log.Error("callback leg failed", zap.Uint("order_id", out.OrderID), zap.Error(err))
			} else {
				log.Warn("callback leg failed", zap.Uint("order_id", out.OrderID), zap.Error(err))
			}
			http.Redirect(w, r, redirectURL(h.ClientRetryURL, out.OrderID, "payment_unconfirmed"), http.StatusSeeOther)
		default:
			log.Error("callback leg failed", zap.Error(err))
			respondError(w, r, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
		}
		return
	}

	http.Redirect(w, r, redirectURL(target, out.OrderID, ""), http.StatusSeeOther)
}

// POST /webhook/payment
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(zap.String("handler", "PaymentWebhook"))

	if err := h.Gateway.VerifySignature(r); err != nil {
		log.Warn("webhook signature rejected", zap.Error(err))
		respondError(w, r, http.StatusUnauthorized, "invalid_signature", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_body", "")
		return
	}

	evt, err := payment.ParseWebhookEvent(body)
	if err != nil {
		log.Warn("malformed webhook", zap.Error(err))
		respondError(w, r, http.StatusBadRequest, "invalid_webhook", "")
		return
	}

	out, err := h.Reconcile.HandleWebhookEvent(r.Context(), evt)
	switch {
	case err == nil:
		respondJSON(w, r, http.StatusOK, map[string]any{"received": true, "duplicate": out.Duplicate})
	case errors.Is(err, reconcile.ErrStalePaymentState),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, payment.ErrSessionNotFound),
		errors.Is(err, payment.ErrInvalidCorrelation):
		// redelivery cannot fix these; acknowledge so the provider stops retrying
		log.Error("webhook acknowledged without effect", zap.String("event_id", evt.ID), zap.Error(err))
		respondJSON(w, r, http.StatusOK, map[string]any{"received": true})
	default:
		log.Error("webhook processing failed", zap.String("event_id", evt.ID), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "processing_failed", "")
	}
}

// PATCH /admin/orders/{orderID}/decision
func (h *Handler) AdminDecision(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseID(chi.URLParam(r, "orderID"))
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_order_id", "orderID must be a positive integer")
		return
	}

	var body decisionRequest
	if err := decodeBody(r, &body); err != nil || !body.Decision.Valid() {
		respondError(w, r, http.StatusBadRequest, "invalid_decision", `decision must be "confirm" or "reject"`)
		return
	}

	out, err := h.Reconcile.AdminDecide(r.Context(), orderID, body.Decision)
	switch {
	case err == nil:
		respondJSON(w, r, http.StatusOK, outcomeResponse{OrderID: out.OrderID, Status: out.Status, Replayed: out.Replayed})
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, payment.ErrPaymentNotFound):
		respondError(w, r, http.StatusNotFound, "order_not_found", "")
	case errors.Is(err, order.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, "invalid_transition", err.Error())
	default:
		logger.FromCtx(r.Context()).Error("admin decision failed", zap.Uint("order_id", orderID), zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := map[string]any{"status": "ok", "db": "ok"}
	code := http.StatusOK
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			resp["status"], resp["db"] = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
	}
	if h.BreakerState != nil {
		resp["paymentProvider"] = h.BreakerState()
	}
	if h.Metrics != nil {
		resp["counters"] = h.Metrics.Snapshot()
	}

	respondJSON(w, r, code, resp)
}

// checkoutError maps orchestrator failures to responses. Past the commit
// point the order id is always returned so the client can retry payment.
func (h *Handler) checkoutError(w http.ResponseWriter, r *http.Request, res *checkout.Result, err error) {
	var stockErr *checkout.InsufficientStockError

	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:     "insufficient_stock",
			Message:   "some items are out of stock",
			Shortages: stockErr.Shortages,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, r, http.StatusBadRequest, "empty_cart", "your cart is empty")
	case errors.Is(err, checkout.ErrMissingShippingAddress):
		respondError(w, r, http.StatusBadRequest, "missing_shipping_address", "a shipping address is required")
	case errors.Is(err, checkout.ErrProductNotFound):
		respondError(w, r, http.StatusBadRequest, "product_not_found", "a product in your cart is no longer available")
	case errors.Is(err, checkout.ErrPaymentProviderUnavailable):
		resp := ErrorResponse{Error: "payment_provider_unavailable", Message: "order placed but payment could not start, please retry"}
		if res != nil {
			resp.OrderID = res.OrderID
		}
		respondJSON(w, r, http.StatusBadGateway, resp)
	case errors.Is(err, checkout.ErrForbidden):
		respondError(w, r, http.StatusForbidden, "forbidden", "")
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, r, http.StatusNotFound, "order_not_found", "")
	case errors.Is(err, checkout.ErrOrderNotPayable):
		respondError(w, r, http.StatusConflict, "order_not_payable", err.Error())
	case errors.Is(err, checkout.ErrCheckoutTimeout):
		respondError(w, r, http.StatusServiceUnavailable, "checkout_timeout", "checkout took too long, please try again")
	default:
		logger.FromCtx(r.Context()).Error("checkout failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}

func redirectURL(base string, orderID uint, reason string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("order", fmt.Sprint(orderID))
	if reason != "" {
		q.Set("error", reason)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
