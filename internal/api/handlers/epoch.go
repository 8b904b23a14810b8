package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/service"
	"github.com/google/uuid"
)

type EpochHandler struct {
	epochs      *service.EpochService
	aggregation *service.AggregationService
}

func NewEpochHandler(epochs *service.EpochService, aggregation *service.AggregationService) *EpochHandler {
	return &EpochHandler{epochs: epochs, aggregation: aggregation}
}

// Process runs the epoch pipeline for one belief.
func (h *EpochHandler) Process(w http.ResponseWriter, r *http.Request) {
	beliefID, epoch, ok := beliefEpoch(w, r)
	if !ok {
		return
	}

	res, err := h.epochs.ProcessEpoch(r.Context(), beliefID, epoch)
	if err != nil {
		writeDomainError(w, err, "epoch processing failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type decomposeRequest struct {
	Weights domain.WeightMap `json:"weights,omitempty"`
}

// Decompose returns the consensus estimate without changing any state.
func (h *EpochHandler) Decompose(w http.ResponseWriter, r *http.Request) {
	beliefID, epoch, ok := beliefEpoch(w, r)
	if !ok {
		return
	}

	var req decomposeRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.aggregation.Decompose(r.Context(), beliefID, epoch, req.Weights)
	if err != nil {
		writeDomainError(w, err, "decomposition failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type leaveOneOutRequest struct {
	ExcludeAgentID uuid.UUID        `json:"exclude_agent_id"`
	Weights        domain.WeightMap `json:"weights,omitempty"`
}

// LeaveOneOut returns the peer estimate computed without one agent.
func (h *EpochHandler) LeaveOneOut(w http.ResponseWriter, r *http.Request) {
	beliefID, epoch, ok := beliefEpoch(w, r)
	if !ok {
		return
	}

	var req leaveOneOutRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExcludeAgentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "exclude_agent_id is required")
		return
	}

	loo, err := h.aggregation.LeaveOneOutDecompose(r.Context(), beliefID, epoch, req.ExcludeAgentID, req.Weights)
	if err != nil {
		writeDomainError(w, err, "leave-one-out decomposition failed")
		return
	}

	writeJSON(w, http.StatusOK, loo)
}

type outcomeResponse struct {
	BeliefID uuid.UUID            `json:"belief_id"`
	Result   *service.EpochResult `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
	Kind     string               `json:"kind,omitempty"`
}

// ProcessAll runs the epoch for every open belief. Failures of single
// beliefs are reported inline.
func (h *EpochHandler) ProcessAll(w http.ResponseWriter, r *http.Request) {
	epoch, ok := epochParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return
	}

	outcomes, err := h.epochs.ProcessOpenBeliefs(r.Context(), epoch)
	if err != nil {
		writeDomainError(w, err, "failed to list open beliefs")
		return
	}

	resp := make([]outcomeResponse, len(outcomes))
	for i, o := range outcomes {
		resp[i] = outcomeResponse{BeliefID: o.BeliefID, Result: o.Result}
		if o.Err != nil {
			e := domainError(o.Err, "epoch processing failed")
			resp[i].Error = e.Error
			resp[i].Kind = e.Kind
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"epoch": epoch, "outcomes": resp})
}

func beliefEpoch(w http.ResponseWriter, r *http.Request) (uuid.UUID, int64, bool) {
	beliefID, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return uuid.Nil, 0, false
	}
	epoch, ok := epochParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid epoch")
		return uuid.Nil, 0, false
	}
	return beliefID, epoch, true
}
