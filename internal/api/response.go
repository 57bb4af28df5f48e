package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "marketplace-verification/internal/common/errors"

	"github.com/go-chi/chi/v5/middleware"
)

type successResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, successResponse{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: errorPayload{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// mapDomainError maps error kinds to HTTP statuses. Anything that is not a
// domain kind is an internal error.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, string(apperrors.ErrCodeValidation)
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, string(apperrors.ErrCodeNotFound)
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, string(apperrors.ErrCodeForbidden)
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, string(apperrors.ErrCodeConflict)
	case errors.Is(err, apperrors.ErrAlreadyDecided):
		return http.StatusConflict, string(apperrors.ErrCodeAlreadyDecided)
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapDomainError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"requestId": middleware.GetReqID(r.Context()),
		})
		message = "internal error"
	}
	writeError(w, r, status, code, message)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}

func actorID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		return "", apperrors.NewValidationError(UserHeader + " header is required")
	}
	return id, nil
}
