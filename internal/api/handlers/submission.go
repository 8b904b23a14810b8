package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/service"
	"github.com/google/uuid"
)

type SubmissionHandler struct {
	svc *service.SubmissionService
}

func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

type submitRequest struct {
	AgentID        uuid.UUID `json:"agent_id"`
	Epoch          int64     `json:"epoch"`
	Belief         *float64  `json:"belief"`
	MetaPrediction *float64  `json:"meta_prediction"`
	LockedStake    *int64    `json:"locked_stake,omitempty"`
}

func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	beliefID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if req.Belief == nil || req.MetaPrediction == nil {
		writeError(w, http.StatusBadRequest, "belief and meta_prediction are required")
		return
	}

	sub := &domain.Submission{
		AgentID:        req.AgentID,
		BeliefID:       beliefID,
		Epoch:          req.Epoch,
		Belief:         *req.Belief,
		MetaPrediction: *req.MetaPrediction,
	}
	if err := h.svc.Submit(r.Context(), sub, req.LockedStake); err != nil {
		writeDomainError(w, err, "failed to record submission")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}
