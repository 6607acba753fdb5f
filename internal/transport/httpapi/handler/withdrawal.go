package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/withdrawal"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// WithdrawalHandler handles withdrawal-related HTTP requests
type WithdrawalHandler struct {
	withdrawalService *withdrawal.Service
}

// NewWithdrawalHandler creates a new withdrawal handler
func NewWithdrawalHandler(withdrawalService *withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

// CreateWithdrawalRequest represents the withdrawal request body
type CreateWithdrawalRequest struct {
	AssetID string        `json:"asset_id"`
	Amount  *money.Amount `json:"amount"`
	Address string        `json:"address"`
}

// BroadcastRequest carries the on-chain transaction hash
type BroadcastRequest struct {
	TxHash string `json:"tx_hash"`
}

// RejectRequest carries the rejection reason
type RejectRequest struct {
	Reason string `json:"reason"`
}

// WithdrawalResponse represents a withdrawal
type WithdrawalResponse struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	AssetID   string  `json:"asset_id"`
	Amount    string  `json:"amount"`
	Fee       string  `json:"fee"`
	Address   string  `json:"address"`
	TxHash    *string `json:"tx_hash,omitempty"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// CreateWithdrawal handles POST /withdrawals
func (h *WithdrawalHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount.IsNil() {
		respondError(w, http.StatusBadRequest, "amount is required")
		return
	}

	wd, err := h.withdrawalService.Request(r.Context(), ownerID, req.AssetID, req.Amount.ToBigInt(), req.Address)
	if err != nil {
		respondWithdrawalError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toWithdrawalResponse(wd))
}

// GetWithdrawals handles GET /withdrawals
func (h *WithdrawalHandler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := paginationParams(r, 50, 200)
	withdrawals, err := h.withdrawalService.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch withdrawals")
		return
	}

	responses := make([]WithdrawalResponse, 0, len(withdrawals))
	for _, wd := range withdrawals {
		responses = append(responses, toWithdrawalResponse(wd))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": responses})
}

// GetWithdrawal handles GET /withdrawals/{id}
func (h *WithdrawalHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid withdrawal ID")
		return
	}

	wd, err := h.withdrawalService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, withdrawal.ErrNotFound) {
			respondError(w, http.StatusNotFound, "withdrawal not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch withdrawal")
		return
	}
	if wd.OwnerID != ownerID {
		respondError(w, http.StatusNotFound, "withdrawal not found")
		return
	}

	respondJSON(w, http.StatusOK, toWithdrawalResponse(wd))
}

// MarkReviewed handles POST /withdrawals/{id}/review (admin)
func (h *WithdrawalHandler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
		return h.withdrawalService.MarkReviewed(ctx, id)
	})
}

// Approve handles POST /withdrawals/{id}/approve (admin)
func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
		return h.withdrawalService.Approve(ctx, id)
	})
}

// Reject handles POST /withdrawals/{id}/reject (admin)
func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.adminTransition(w, r, func(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
		return h.withdrawalService.Reject(ctx, id, req.Reason)
	})
}

// Broadcast handles POST /withdrawals/{id}/broadcast (admin)
func (h *WithdrawalHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.adminTransition(w, r, func(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
		return h.withdrawalService.MarkBroadcasted(ctx, id, req.TxHash)
	})
}

// Confirm handles POST /withdrawals/{id}/confirm (admin)
func (h *WithdrawalHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
		return h.withdrawalService.Confirm(ctx, id)
	})
}

func (h *WithdrawalHandler) adminTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid withdrawal ID")
		return
	}

	wd, err := fn(r.Context(), id)
	if err != nil {
		respondWithdrawalError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toWithdrawalResponse(wd))
}

func respondWithdrawalError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientBalanceError
	switch {
	case errors.Is(err, withdrawal.ErrNotFound):
		respondError(w, http.StatusNotFound, "withdrawal not found")
	case errors.Is(err, withdrawal.ErrStateConflict):
		respondError(w, http.StatusConflict, "withdrawal state does not permit this transition")
	case errors.Is(err, ledger.ErrDuplicateReference):
		respondError(w, http.StatusConflict, "transaction hash already recorded")
	case errors.As(err, &insufficient):
		respondError(w, http.StatusUnprocessableEntity, insufficient.Error())
	case errors.Is(err, asset.ErrAssetNotFound):
		respondError(w, http.StatusBadRequest, "unknown asset")
	case errors.Is(err, asset.ErrAssetInactive):
		respondError(w, http.StatusBadRequest, "asset is not active")
	case errors.Is(err, asset.ErrSubStepAmount):
		respondError(w, http.StatusBadRequest, "amount is not a multiple of the asset step")
	case errors.Is(err, asset.ErrBelowMinWithdrawal):
		respondError(w, http.StatusBadRequest, "amount is below the minimum withdrawal")
	case errors.Is(err, withdrawal.ErrInvalidAmount),
		errors.Is(err, withdrawal.ErrInvalidAddress),
		errors.Is(err, withdrawal.ErrInvalidTxHash),
		errors.Is(err, withdrawal.ErrInvalidOwnerID):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "withdrawal operation failed")
	}
}

func toWithdrawalResponse(wd *withdrawal.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:        wd.ID.String(),
		OwnerID:   wd.OwnerID.String(),
		AssetID:   wd.AssetID,
		Amount:    money.Format(wd.Amount),
		Fee:       money.Format(wd.Fee),
		Address:   wd.Address,
		TxHash:    wd.TxHash,
		Status:    string(wd.Status),
		Reason:    wd.Reason,
		CreatedAt: wd.CreatedAt.Format(timeFormat),
		UpdatedAt: wd.UpdatedAt.Format(timeFormat),
	}
}
