/**
 * @description
 * This file defines the main router for the escrow-service API using the Chi
 * router. Public routes are limited to the health check; everything else sits
 * behind the JWT authentication middleware. Admin-only enforcement happens in
 * the service layer, so the /admin subtree shares the same middleware stack.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The HTTP router.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/escrowpad/escrow-service/internal/app"
)

// NewRouter creates and configures the chi router with all service routes.
func NewRouter(service *app.Service, jwksURL, jwtAudience, jwtIssuer, corsAllowedOrigins string) *chi.Mux {
	r := chi.NewRouter()
	handlers := NewEscrowHandlers(service)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := []string{"*"}
	if trimmed := strings.TrimSpace(corsAllowedOrigins); trimmed != "" {
		allowedOrigins = strings.Split(trimmed, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL, jwtAudience, jwtIssuer))

		r.Route("/profile", func(r chi.Router) {
			r.Post("/", handlers.RegisterProfileHandler)
			r.Get("/", handlers.GetProfileHandler)
			r.Put("/bank-details", handlers.SetBankDetailsHandler)
		})

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", handlers.CreateDealHandler)
			r.Get("/", handlers.ListDealsHandler)
			r.Post("/join", handlers.JoinDealHandler)
			r.Route("/{dealID}", func(r chi.Router) {
				r.Get("/", handlers.GetDealHandler)
				r.Post("/fund", handlers.FundDealHandler)
				r.Post("/deliver", handlers.MarkDeliveredHandler)
				r.Post("/confirm", handlers.ConfirmDeliveryHandler)
				r.Post("/dispute", handlers.OpenDisputeHandler)
				r.Post("/cancel", handlers.CancelDealHandler)
			})
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/", handlers.RequestWithdrawalHandler)
			r.Get("/", handlers.ListWithdrawalsHandler)
			r.Post("/{withdrawalID}/cancel", handlers.CancelWithdrawalHandler)
		})

		// Admin subtree. The service layer enforces the admin role on every
		// operation here, returning 403 for ordinary users.
		r.Route("/admin", func(r chi.Router) {
			r.Route("/deals", func(r chi.Router) {
				r.Get("/", handlers.AdminListDealsHandler)
				r.Post("/{dealID}/resolve", handlers.ResolveDisputeHandler)
				r.Post("/{dealID}/finalize", handlers.AdminFinalizeDealHandler)
				r.Post("/{dealID}/cancel", handlers.AdminCancelDealHandler)
			})
			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/pending", handlers.AdminListPendingWithdrawalsHandler)
				r.Post("/{withdrawalID}/approve", handlers.ApproveWithdrawalHandler)
				r.Post("/{withdrawalID}/reject", handlers.RejectWithdrawalHandler)
			})
			r.Route("/profiles", func(r chi.Router) {
				r.Get("/", handlers.AdminListProfilesHandler)
				r.Post("/{profileID}/adjust-balance", handlers.AdminAdjustBalanceHandler)
				r.Delete("/{profileID}", handlers.AdminDeleteProfileHandler)
			})
		})
	})

	return r
}
