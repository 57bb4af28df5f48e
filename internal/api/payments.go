package api

import (
	"net/http"

	"marketplace-verification/internal/models"
	"marketplace-verification/internal/payment"

	"github.com/go-chi/chi/v5"
)

type submitPaymentBody struct {
	ListingID string                `json:"listingId"`
	Amount    int64                 `json:"amount"`
	Channel   models.PaymentChannel `json:"channel"`
	Intent    models.ContractType   `json:"intent"`
	Evidence  []byte                `json:"evidence"`
}

func (h *Handler) submitPayment(w http.ResponseWriter, r *http.Request) {
	buyerID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body submitPaymentBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.services.Payments.SubmitPayment(r.Context(), payment.SubmitInput{
		BuyerID:   buyerID,
		ListingID: body.ListingID,
		Amount:    body.Amount,
		Channel:   body.Channel,
		Intent:    body.Intent,
		Evidence:  body.Evidence,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", pr)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	pr, err := h.services.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", pr)
}

func (h *Handler) listPendingPayments(w http.ResponseWriter, r *http.Request) {
	prs, err := h.services.Payments.ListPending(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", prs)
}

func (h *Handler) approvePayment(w http.ResponseWriter, r *http.Request) {
	pr, err := h.services.Payments.Approve(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", pr)
}

func (h *Handler) rejectPayment(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	pr, err := h.services.Payments.Reject(r.Context(), chi.URLParam(r, "id"), body.Reason, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", pr)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Payments.DeletePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markPaymentRead(w http.ResponseWriter, r *http.Request) {
	pr, err := h.services.Payments.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", pr)
}

func (h *Handler) simulatePayout(w http.ResponseWriter, r *http.Request) {
	pr, err := h.services.Payments.SimulatePayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", pr)
}
