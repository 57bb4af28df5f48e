package api

import (
	"net/http"
	"time"

	"marketplace-verification/internal/models"

	"github.com/go-chi/chi/v5"
)

type requestSubscriptionBody struct {
	Plan     models.SubscriptionPlan `json:"plan"`
	Evidence []byte                  `json:"evidence"`
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type eligibilityResponse struct {
	UserID   string `json:"userId"`
	Eligible bool   `json:"eligible"`
}

type sweepResponse struct {
	ExpiredCount int    `json:"expiredCount"`
	SweptAt      string `json:"sweptAt"`
}

func (h *Handler) requestSubscription(w http.ResponseWriter, r *http.Request) {
	buyerID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body requestSubscriptionBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.services.Subscriptions.RequestSubscription(r.Context(), buyerID, body.Plan, body.Evidence)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", req)
}

func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	req, err := h.services.Subscriptions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", req)
}

func (h *Handler) listPendingSubscriptions(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.services.Subscriptions.ListPending(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", reqs)
}

func (h *Handler) listUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.services.Subscriptions.ListByRequester(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", reqs)
}

func (h *Handler) approveSubscription(w http.ResponseWriter, r *http.Request) {
	req, err := h.services.Subscriptions.Approve(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", req)
}

func (h *Handler) rejectSubscription(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.services.Subscriptions.Reject(r.Context(), chi.URLParam(r, "id"), body.Reason, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", req)
}

func (h *Handler) publisherEligibility(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	eligible, err := h.services.Subscriptions.IsPublisherEligible(r.Context(), userID, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", eligibilityResponse{UserID: userID, Eligible: eligible})
}

func (h *Handler) sweepSubscriptions(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	n, err := h.services.Subscriptions.SweepExpirations(r.Context(), now)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", sweepResponse{ExpiredCount: n, SweptAt: now.Format(time.RFC3339)})
}
