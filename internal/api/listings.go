package api

import (
	"fmt"
	"net/http"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/models"

	"github.com/go-chi/chi/v5"
)

type createListingBody struct {
	Title string `json:"title"`
	Price int64  `json:"price"`
}

type updateStatusBody struct {
	Status models.ListingStatus `json:"status"`
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	ownerID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body createListingBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.services.Listings.CreateListing(r.Context(), ownerID, body.Title, body.Price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "", l)
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.services.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", l)
}

func (h *Handler) updateListingStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body updateStatusBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if !body.Status.Valid() {
		h.fail(w, r, apperrors.NewValidationError(fmt.Sprintf("unknown listing status %q", body.Status)))
		return
	}

	l, err := h.services.Listings.UpdateStatusBy(r.Context(), chi.URLParam(r, "id"), body.Status, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", l)
}

func (h *Handler) rejectListing(w http.ResponseWriter, r *http.Request) {
	adminID, err := actorID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body reasonBody
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.services.Listings.RejectListing(r.Context(), chi.URLParam(r, "id"), adminID, body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", l)
}

func (h *Handler) getListingContract(w http.ResponseWriter, r *http.Request) {
	ct, err := h.services.Contracts.GetByListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ct)
}
