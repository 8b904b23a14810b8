package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/service"
	"github.com/google/uuid"
)

type BeliefHandler struct {
	svc *service.BeliefService
}

func NewBeliefHandler(svc *service.BeliefService) *BeliefHandler {
	return &BeliefHandler{svc: svc}
}

type createBeliefRequest struct {
	CreatorID       uuid.UUID `json:"creator_id"`
	Proposition     string    `json:"proposition"`
	CreatedEpoch    int64     `json:"created_epoch"`
	ExpirationEpoch int64     `json:"expiration_epoch"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBeliefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CreatorID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "creator_id is required")
		return
	}

	belief := &domain.Belief{
		CreatorID:       req.CreatorID,
		Proposition:     req.Proposition,
		CreatedEpoch:    req.CreatedEpoch,
		ExpirationEpoch: req.ExpirationEpoch,
	}
	if err := h.svc.Create(r.Context(), belief); err != nil {
		writeDomainError(w, err, "failed to create belief")
		return
	}

	writeJSON(w, http.StatusCreated, belief)
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	belief, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get belief")
		return
	}

	writeJSON(w, http.StatusOK, belief)
}

func (h *BeliefHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.svc.History(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err, "failed to load history")
		return
	}
	if records == nil {
		records = []domain.EpochRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

type archiveRequest struct {
	Epoch int64 `json:"epoch"`
}

// ArchiveExpired archives beliefs whose window closed before the given epoch.
func (h *BeliefHandler) ArchiveExpired(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Epoch < 0 {
		writeError(w, http.StatusBadRequest, "epoch must not be negative")
		return
	}

	archived, err := h.svc.ArchiveExpired(r.Context(), req.Epoch)
	if err != nil {
		writeDomainError(w, err, "failed to archive beliefs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"archived": archived})
}
