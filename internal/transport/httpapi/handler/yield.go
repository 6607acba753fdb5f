package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/yield"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// YieldHandler handles yield position HTTP requests
type YieldHandler struct {
	yieldService *yield.Service
}

// NewYieldHandler creates a new yield handler
func NewYieldHandler(yieldService *yield.Service) *YieldHandler {
	return &YieldHandler{yieldService: yieldService}
}

// SubscribeRequest represents the yield subscription body
type SubscribeRequest struct {
	AssetID   string        `json:"asset_id"`
	Principal *money.Amount `json:"principal"`
	RateBps   int64         `json:"rate_bps"`
}

// PositionResponse represents a yield position
type PositionResponse struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"owner_id"`
	AssetID      string  `json:"asset_id"`
	Principal    string  `json:"principal"`
	RateBps      int64   `json:"rate_bps"`
	Interest     string  `json:"interest"`
	Status       string  `json:"status"`
	SubscribedAt string  `json:"subscribed_at"`
	RedeemedAt   *string `json:"redeemed_at,omitempty"`
}

// Subscribe handles POST /yield/positions
func (h *YieldHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Principal.IsNil() {
		respondError(w, http.StatusBadRequest, "principal is required")
		return
	}

	position, err := h.yieldService.Subscribe(r.Context(), ownerID, req.AssetID, req.Principal.ToBigInt(), req.RateBps)
	if err != nil {
		respondYieldError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPositionResponse(position))
}

// GetPositions handles GET /yield/positions
func (h *YieldHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := paginationParams(r, 50, 200)
	positions, err := h.yieldService.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch positions")
		return
	}

	responses := make([]PositionResponse, 0, len(positions))
	for _, position := range positions {
		responses = append(responses, toPositionResponse(position))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"positions": responses})
}

// Redeem handles POST /yield/positions/{id}/redeem
func (h *YieldHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid position ID")
		return
	}

	position, err := h.yieldService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, yield.ErrNotFound) {
			respondError(w, http.StatusNotFound, "position not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch position")
		return
	}
	if position.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, "position not found")
		return
	}

	redeemed, err := h.yieldService.Redeem(r.Context(), id)
	if err != nil {
		respondYieldError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toPositionResponse(redeemed))
}

func respondYieldError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientBalanceError
	switch {
	case errors.Is(err, yield.ErrNotFound):
		respondError(w, http.StatusNotFound, "position not found")
	case errors.Is(err, yield.ErrStateConflict):
		respondError(w, http.StatusConflict, "position already redeemed")
	case errors.Is(err, ledger.ErrDuplicateReference):
		respondError(w, http.StatusConflict, "position already redeemed")
	case errors.As(err, &insufficient):
		respondError(w, http.StatusUnprocessableEntity, insufficient.Error())
	case errors.Is(err, asset.ErrAssetNotFound):
		respondError(w, http.StatusBadRequest, "unknown asset")
	case errors.Is(err, asset.ErrAssetInactive):
		respondError(w, http.StatusBadRequest, "asset is not active")
	case errors.Is(err, yield.ErrInvalidOwnerID),
		errors.Is(err, yield.ErrInvalidAmount),
		errors.Is(err, yield.ErrInvalidRate):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "yield operation failed")
	}
}

func toPositionResponse(p *yield.Position) PositionResponse {
	resp := PositionResponse{
		ID:           p.ID.String(),
		OwnerID:      p.OwnerID.String(),
		AssetID:      p.AssetID,
		Principal:    money.Format(p.Principal),
		RateBps:      p.RateBps,
		Interest:     money.Format(p.Interest()),
		Status:       string(p.Status),
		SubscribedAt: p.SubscribedAt.Format(timeFormat),
	}
	if p.RedeemedAt != nil {
		redeemedAt := p.RedeemedAt.Format(timeFormat)
		resp.RedeemedAt = &redeemedAt
	}
	return resp
}
