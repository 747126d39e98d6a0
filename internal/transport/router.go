package transport

import (
	"net/http"
	"time"

	"bookstore-be/internal/auth"
	"bookstore-be/internal/logger"
	"bookstore-be/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterDeps struct {
	Verifier   *auth.Verifier
	Authorizer auth.Authorizer
	Limiter    *middleware.RateLimiter
	Timeout    time.Duration
}

func NewRouter(h *Handler, d RouterDeps) http.Handler {
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Timeout(d.Timeout))
	r.Use(middleware.AuthMiddleware(d.Verifier))
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware)
	}

	r.Get("/health", h.Health)

	r.Post("/webhook/payment", h.PaymentWebhook)

	r.Route("/checkout", func(r chi.Router) {
		// provider redirects carry no credentials
		r.Get("/callback/success", h.PaymentSuccess)
		r.Get("/callback/cancel", h.PaymentCancel)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireCapability(d.Authorizer, auth.CapCheckout))
			r.Post("/session", h.CheckoutSession)
			r.Post("/cod", h.CheckoutCOD)
			r.Post("/orders/{orderID}/session", h.RetrySession)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RequireCapability(d.Authorizer, auth.CapOrdersDecide))
		r.Patch("/orders/{orderID}/decision", h.AdminDecision)
	})

	return otelhttp.NewHandler(r, "bookstore-be")
}
