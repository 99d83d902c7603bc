/**
 * @description
 * This file sets up the HTTP router for the onboarding-service. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, CORS, and authentication.
 *
 * The webhook endpoints are mounted outside the auth group: providers
 * authenticate with signatures over the raw body, not bearer tokens.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser-based wizard.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the chi router and registers all routes.
func NewRouter(h *Handlers, wh *WebhookHandlers, jwksURL string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public: the wizard shows localized prices before the visitor signs in.
	r.Get("/catalog", h.ListCatalogHandler)

	// Webhook receivers (signature-authenticated).
	r.Post("/webhooks/stripe", wh.StripeWebhookHandler)
	r.Post("/webhooks/paystack", wh.PaystackWebhookHandler)

	// Authenticated API surface.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/checkout/stripe", h.CreateStripeCheckoutHandler)
		r.Post("/checkout/paystack", h.CreatePaystackCheckoutHandler)
		r.Post("/payments/paystack/verify", h.VerifyPaystackPaymentHandler)

		r.Post("/projects", h.SubmitProjectHandler)
		r.Get("/projects/{projectID}", h.GetProjectHandler)
		r.Patch("/projects/{projectID}/status", h.UpdateProjectStatusHandler)

		r.Post("/emails", h.SendEmailHandler)
	})

	return r
}
