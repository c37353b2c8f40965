package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/bundlemart/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/dashboard", h.Dashboard)

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Delete("/", h.DeleteAccount)

			r.Post("/purchases", h.CreatePurchase)
			r.Get("/purchases", h.GetPurchases)

			r.Get("/balance", h.GetBalance)
			r.Get("/wallet", h.GetWallet)
			r.Post("/wallet/topup", h.InitiateTopUp)
		})
	})

	r.Get("/api/payments/verify", h.VerifyPayment)

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", h.AdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.AdminMiddleware(h.adminTokens))

			r.Get("/purchases", h.ListAllPurchases)
			r.Post("/purchases/{id}/confirm", h.ConfirmPurchase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
