package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/c3smembership/dues/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса членских взносов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	var observer custommiddleware.RequestObserver
	if h.metrics != nil {
		observer = h.metrics
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger, observer))

	r.Route("/api", func(r chi.Router) {
		r.Post("/staff/login", h.Login)
		r.Post("/staff/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/members", h.CreateMember)
			r.Get("/members/{memberID}", h.GetMember)
			r.Get("/memberships/{membershipNumber}/invoices", h.GetMemberInvoices)

			r.Get("/invoices", h.ListInvoices)
			r.Get("/dues/years", h.SupportedYears)

			r.Route("/dues/{year}", func(r chi.Router) {
				r.Post("/batch", h.SendBatch)

				r.Get("/members/{memberID}", h.GetMemberDues)
				r.Post("/members/{memberID}/invoice", h.CalculateInvoice)
				r.Post("/members/{memberID}/email", h.SendEmail)
				r.Post("/members/{memberID}/reduction", h.ReduceDues)

				r.Get("/invoices", h.ListYearInvoices)
				r.Get("/invoices/{number}", h.GetInvoice)
				r.Get("/invoices/{number}/pdf", h.StaffInvoicePDF)
			})
		})
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/{document}/{token}/{file}", h.DownloadInvoice)
	r.Get("/{document}/{email}/{token}/{file}", h.DownloadInvoice)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
