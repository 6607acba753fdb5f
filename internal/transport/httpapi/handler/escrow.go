package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/escrow"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// EscrowHandler handles escrow order HTTP requests
type EscrowHandler struct {
	escrowService *escrow.Service
}

// NewEscrowHandler creates a new escrow handler
func NewEscrowHandler(escrowService *escrow.Service) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService}
}

// CreateOrderRequest represents the escrow order creation body. The
// authenticated owner is the seller.
type CreateOrderRequest struct {
	BuyerID   string        `json:"buyer_id"`
	AssetID   string        `json:"asset_id"`
	Amount    *money.Amount `json:"amount"`
	Reference *string       `json:"reference,omitempty"`
}

// OrderResponse represents an escrow order
type OrderResponse struct {
	ID        string  `json:"id"`
	SellerID  string  `json:"seller_id"`
	BuyerID   string  `json:"buyer_id"`
	AssetID   string  `json:"asset_id"`
	Amount    string  `json:"amount"`
	Status    string  `json:"status"`
	Reference *string `json:"reference,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// CreateOrder handles POST /escrow/orders
func (h *EscrowHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid buyer ID")
		return
	}
	if req.Amount.IsNil() {
		respondError(w, http.StatusBadRequest, "amount is required")
		return
	}

	order, err := h.escrowService.CreateOrder(r.Context(), sellerID, buyerID, req.AssetID, req.Amount.ToBigInt(), req.Reference)
	if err != nil {
		respondEscrowError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrders handles GET /escrow/orders
func (h *EscrowHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	partyID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := paginationParams(r, 50, 200)
	orders, err := h.escrowService.ListByParty(r.Context(), partyID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch orders")
		return
	}

	responses := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toOrderResponse(order))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": responses})
}

// ReleaseOrder handles POST /escrow/orders/{id}/release (admin)
func (h *EscrowHandler) ReleaseOrder(w http.ResponseWriter, r *http.Request) {
	h.resolveOrder(w, r, h.escrowService.Release)
}

// CancelOrder handles POST /escrow/orders/{id}/cancel (admin)
func (h *EscrowHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.resolveOrder(w, r, h.escrowService.Cancel)
}

func (h *EscrowHandler) resolveOrder(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*escrow.Order, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := fn(r.Context(), id)
	if err != nil {
		respondEscrowError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func respondEscrowError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientBalanceError
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		respondError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, escrow.ErrStateConflict):
		respondError(w, http.StatusConflict, "order already resolved")
	case errors.Is(err, ledger.ErrDuplicateReference):
		respondError(w, http.StatusConflict, "order already released")
	case errors.As(err, &insufficient):
		respondError(w, http.StatusUnprocessableEntity, insufficient.Error())
	case errors.Is(err, asset.ErrAssetNotFound):
		respondError(w, http.StatusBadRequest, "unknown asset")
	case errors.Is(err, asset.ErrAssetInactive):
		respondError(w, http.StatusBadRequest, "asset is not active")
	case errors.Is(err, escrow.ErrInvalidSellerID),
		errors.Is(err, escrow.ErrInvalidBuyerID),
		errors.Is(err, escrow.ErrSameParty),
		errors.Is(err, escrow.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "escrow operation failed")
	}
}

func toOrderResponse(order *escrow.Order) OrderResponse {
	return OrderResponse{
		ID:        order.ID.String(),
		SellerID:  order.SellerID.String(),
		BuyerID:   order.BuyerID.String(),
		AssetID:   order.AssetID,
		Amount:    money.Format(order.Amount),
		Status:    string(order.Status),
		Reference: order.Reference,
		CreatedAt: order.CreatedAt.Format(timeFormat),
		UpdatedAt: order.UpdatedAt.Format(timeFormat),
	}
}
