package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/rewards"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// RewardsHandler handles reward grant HTTP requests
type RewardsHandler struct {
	rewardsService *rewards.Service
}

// NewRewardsHandler creates a new rewards handler
func NewRewardsHandler(rewardsService *rewards.Service) *RewardsHandler {
	return &RewardsHandler{rewardsService: rewardsService}
}

// GrantRequest represents the reward grant body
type GrantRequest struct {
	CampaignID string `json:"campaign_id"`
	OwnerID    string `json:"owner_id"`
	Points     int64  `json:"points"`
	GrantID    string `json:"grant_id"`
}

// GrantResponse represents an applied grant
type GrantResponse struct {
	GrantID       string `json:"grant_id"`
	CampaignID    string `json:"campaign_id"`
	OwnerID       string `json:"owner_id"`
	Points        int64  `json:"points"`
	Amount        string `json:"amount"`
	CampaignTotal int64  `json:"campaign_total"`
}

// CreateGrant handles POST /rewards/grants (admin)
func (h *RewardsHandler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid owner ID")
		return
	}

	grant, err := h.rewardsService.Grant(r.Context(), req.CampaignID, ownerID, req.Points, req.GrantID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateReference):
			respondError(w, http.StatusConflict, "grant already applied")
		case errors.Is(err, asset.ErrAssetNotFound), errors.Is(err, asset.ErrAssetInactive):
			respondError(w, http.StatusBadRequest, "points asset unavailable")
		case errors.Is(err, rewards.ErrInvalidCampaignID),
			errors.Is(err, rewards.ErrInvalidOwnerID),
			errors.Is(err, rewards.ErrInvalidPoints),
			errors.Is(err, rewards.ErrInvalidGrantID):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to apply grant")
		}
		return
	}

	respondJSON(w, http.StatusCreated, GrantResponse{
		GrantID:       grant.ID,
		CampaignID:    grant.CampaignID,
		OwnerID:       grant.OwnerID.String(),
		Points:        grant.Points,
		Amount:        money.Format(grant.Amount),
		CampaignTotal: grant.CampaignTotal,
	})
}

// GetCampaignTotal handles GET /rewards/campaigns/{id}/total
func (h *RewardsHandler) GetCampaignTotal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	total, err := h.rewardsService.CampaignTotal(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch campaign total")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": chi.URLParam(r, "id"),
		"total":       total,
	})
}
