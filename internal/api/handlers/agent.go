package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Harshitk-cp/beliefmarket/internal/domain"
	"github.com/Harshitk-cp/beliefmarket/internal/service"
)

type AgentHandler struct {
	svc *service.AgentService
}

func NewAgentHandler(svc *service.AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

type createAgentRequest struct {
	ExternalID string         `json:"external_id"`
	Name       string         `json:"name"`
	TotalStake int64          `json:"total_stake"`
	Metadata   map[string]any `json:"metadata"`
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ExternalID == "" {
		writeError(w, http.StatusBadRequest, "external_id is required")
		return
	}
	if req.Name == "" {
		req.Name = req.ExternalID
	}

	agent := &domain.Agent{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		TotalStake: req.TotalStake,
		Metadata:   req.Metadata,
	}

	if err := h.svc.Create(r.Context(), agent); err != nil {
		writeDomainError(w, err, "failed to create agent")
		return
	}

	writeJSON(w, http.StatusCreated, agent)
}

func (h *AgentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	agent, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get agent")
		return
	}

	writeJSON(w, http.StatusOK, agent)
}
