package api

import (
	"net/http"

	"marketplace-verification/internal/models"

	"github.com/go-chi/chi/v5"
)

type createContractBody struct {
	ListingID string              `json:"listingId"`
	Type      models.ContractType `json:"type"`
}

type addSignatoryBody struct {
	UserID string `json:"userId"`
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	var body createContractBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.services.Contracts.CreateContract(r.Context(), body.ListingID, body.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", ct)
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	ct, err := h.services.Contracts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ct)
}

func (h *Handler) deleteContract(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Contracts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addSignatory(w http.ResponseWriter, r *http.Request) {
	var body addSignatoryBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.services.Contracts.AddSignatory(r.Context(), chi.URLParam(r, "id"), body.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ct)
}

// validateContract and rejectContract act for the calling buyer.
func (h *Handler) validateContract(w http.ResponseWriter, r *http.Request) {
	buyerID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.services.Contracts.Validate(r.Context(), chi.URLParam(r, "id"), buyerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ct)
}

func (h *Handler) rejectContract(w http.ResponseWriter, r *http.Request) {
	buyerID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body reasonBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	ct, err := h.services.Contracts.Reject(r.Context(), chi.URLParam(r, "id"), buyerID, body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ct)
}
