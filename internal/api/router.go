/**
 * @description
 * This file sets up the HTTP router for the fulfillment-service. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies middleware for authentication and role-based access.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the fulfillment service.
func Routes(h *FulfillmentHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Member-facing purchase workflow.
		r.Post("/purchases", h.OpenPurchaseHandler)
		r.Get("/purchases/mine", h.ListMyPurchasesHandler)
		r.Post("/purchases/{id}/cancel", h.CancelPurchaseHandler)
		r.Get("/purchases/{id}/slot", h.GetPickupSlotHandler)
		r.Post("/payments", h.SubmitProofHandler)

		// Verifier-only endpoints.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleCobranza))
			r.Get("/payments/pending", h.ListPendingProofsHandler)
			r.Post("/payments/{id}/verify", h.VerifyPaymentHandler)
		})
	})

	return r
}
