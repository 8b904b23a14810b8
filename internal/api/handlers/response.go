package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/service"
	"github.com/Harshitk-cp/beliefmarket/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps service errors to HTTP status codes. Unknown errors
// are reported as 500 with fallback as the message.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	status, _ := statusFor(err)
	writeJSON(w, status, domainError(err, fallback))
}

// domainError is the client-facing form of err. The text of unknown errors
// stays in the server log.
func domainError(err error, fallback string) errorResponse {
	_, kind := statusFor(err)
	if kind == "" {
		return errorResponse{Error: fallback, Kind: "internal"}
	}
	return errorResponse{Error: err.Error(), Kind: kind}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrBeliefNotFound), errors.Is(err, domain.ErrAgentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrEpochAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	case errors.Is(err, service.ErrAgentConflict), errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "conflict"
	case domain.IsBusinessRule(err):
		return http.StatusUnprocessableEntity, "business_rule"
	case errors.Is(err, domain.ErrNumericalInstability):
		return http.StatusInternalServerError, "numerical"
	}
	return http.StatusInternalServerError, ""
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

func epochParam(r *http.Request) (int64, bool) {
	epoch, err := strconv.ParseInt(chi.URLParam(r, "epoch"), 10, 64)
	return epoch, err == nil && epoch >= 0
}

// decodeOptional decodes the body into v. An empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
