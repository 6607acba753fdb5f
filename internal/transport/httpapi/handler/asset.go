package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// AssetHandler handles asset registry HTTP requests
type AssetHandler struct {
	assetService *asset.Service
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(assetService *asset.Service) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

// CreateAssetRequest represents the asset creation body
type CreateAssetRequest struct {
	ID             string        `json:"id"`
	Symbol         string        `json:"symbol"`
	Name           string        `json:"name"`
	ChainID        *string       `json:"chain_id,omitempty"`
	Decimals       int           `json:"decimals"`
	WithdrawFeeBps int64         `json:"withdraw_fee_bps"`
	MinWithdrawal  *money.Amount `json:"min_withdrawal,omitempty"`
}

// UpdateAssetRequest represents the asset update body
type UpdateAssetRequest struct {
	WithdrawFeeBps *int64        `json:"withdraw_fee_bps,omitempty"`
	MinWithdrawal  *money.Amount `json:"min_withdrawal,omitempty"`
	IsActive       *bool         `json:"is_active,omitempty"`
}

// AssetResponse represents an asset
type AssetResponse struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	ChainID        *string `json:"chain_id,omitempty"`
	Decimals       int    `json:"decimals"`
	WithdrawFeeBps int64  `json:"withdraw_fee_bps"`
	MinWithdrawal  string `json:"min_withdrawal"`
	IsActive       bool   `json:"is_active"`
}

// ListAssets handles GET /assets
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assetService.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch assets")
		return
	}

	responses := make([]AssetResponse, 0, len(assets))
	for _, a := range assets {
		responses = append(responses, toAssetResponse(a))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"assets": responses})
}

// GetAsset handles GET /assets/{id}
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.assetService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, asset.ErrAssetNotFound) {
			respondError(w, http.StatusNotFound, "asset not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch asset")
		return
	}

	respondJSON(w, http.StatusOK, toAssetResponse(a))
}

// CreateAsset handles POST /assets (admin)
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := asset.NewAsset(req.ID, req.Symbol, req.Name, req.Decimals)
	if req.ChainID != nil {
		a = a.WithChain(*req.ChainID)
	}
	a.WithdrawFeeBps = req.WithdrawFeeBps
	if !req.MinWithdrawal.IsNil() {
		a.MinWithdrawal = req.MinWithdrawal.ToBigInt()
	}

	if err := h.assetService.Create(r.Context(), a); err != nil {
		if errors.Is(err, asset.ErrDuplicateAsset) {
			respondError(w, http.StatusConflict, "asset already exists")
			return
		}
		if errors.Is(err, asset.ErrInvalidDecimals) || errors.Is(err, asset.ErrInvalidFeeBps) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create asset")
		return
	}

	respondJSON(w, http.StatusCreated, toAssetResponse(a))
}

// UpdateAsset handles PUT /assets/{id} (admin)
func (h *AssetHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.assetService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, asset.ErrAssetNotFound) {
			respondError(w, http.StatusNotFound, "asset not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch asset")
		return
	}

	if req.WithdrawFeeBps != nil {
		a.WithdrawFeeBps = *req.WithdrawFeeBps
	}
	if !req.MinWithdrawal.IsNil() {
		a.MinWithdrawal = req.MinWithdrawal.ToBigInt()
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}

	if err := h.assetService.Update(r.Context(), a); err != nil {
		if errors.Is(err, asset.ErrInvalidFeeBps) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update asset")
		return
	}

	respondJSON(w, http.StatusOK, toAssetResponse(a))
}

func toAssetResponse(a *asset.Asset) AssetResponse {
	return AssetResponse{
		ID:             a.ID,
		Symbol:         a.Symbol,
		Name:           a.Name,
		ChainID:        a.ChainID,
		Decimals:       a.Decimals,
		WithdrawFeeBps: a.WithdrawFeeBps,
		MinWithdrawal:  money.Format(a.MinWithdrawal),
		IsActive:       a.IsActive,
	}
}
