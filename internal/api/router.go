// Package api exposes the verification services over HTTP. Handlers are
// thin: they decode the request, call one service operation and map domain
// error kinds onto status codes.
package api

import (
	"context"
	"net/http"
	"time"

	"marketplace-verification/internal/audit"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/contract"
	"marketplace-verification/internal/listing"
	"marketplace-verification/internal/payment"
	"marketplace-verification/internal/subscription"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserHeader carries the id of the acting user. Authentication happens in
// front of this service.
const UserHeader = "X-User-ID"

// ReadinessCheck reports whether one dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

type Services struct {
	Subscriptions *subscription.Gate
	Payments      *payment.Pipeline
	Contracts     *contract.Coordinator
	Listings      *listing.Service
	Audit         audit.Recorder
}

type Handler struct {
	services Services
	checks   map[string]ReadinessCheck
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(services Services, checks map[string]ReadinessCheck, log logger.Logger) *Handler {
	if services.Audit == nil {
		services.Audit = audit.Nop{}
	}
	return &Handler{
		services: services,
		checks:   checks,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.requestSubscription)
			r.Get("/pending", h.listPendingSubscriptions)
			r.Post("/sweep", h.sweepSubscriptions)
			r.Get("/{id}", h.getSubscription)
			r.Post("/{id}/approve", h.approveSubscription)
			r.Post("/{id}/reject", h.rejectSubscription)
		})
		r.Get("/users/{id}/subscriptions", h.listUserSubscriptions)
		r.Get("/users/{id}/eligibility", h.publisherEligibility)

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", h.createListing)
			r.Get("/{id}", h.getListing)
			r.Put("/{id}/status", h.updateListingStatus)
			r.Post("/{id}/reject", h.rejectListing)
			r.Get("/{id}/contract", h.getListingContract)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.submitPayment)
			r.Get("/pending", h.listPendingPayments)
			r.Get("/{id}", h.getPayment)
			r.Delete("/{id}", h.deletePayment)
			r.Post("/{id}/approve", h.approvePayment)
			r.Post("/{id}/reject", h.rejectPayment)
			r.Post("/{id}/read", h.markPaymentRead)
			r.Post("/{id}/payout", h.simulatePayout)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", h.createContract)
			r.Get("/{id}", h.getContract)
			r.Delete("/{id}", h.deleteContract)
			r.Post("/{id}/signatories", h.addSignatory)
			r.Post("/{id}/validate", h.validateContract)
			r.Post("/{id}/reject", h.rejectContract)
		})

		r.Get("/audit/{entityId}", h.auditHistory)
	})
	return r
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "failed": failed})
		return
	}
	writeSuccess(w, http.StatusOK, "ready", nil)
}

func (h *Handler) auditHistory(w http.ResponseWriter, r *http.Request) {
	decisions, err := h.services.Audit.History(r.Context(), chi.URLParam(r, "entityId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", decisions)
}
