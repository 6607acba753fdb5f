package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// LedgerServiceInterface defines the ledger read operations the API exposes
type LedgerServiceInterface interface {
	FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*ledger.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	Balances(ctx context.Context, accountID uuid.UUID, assetID string) (*ledger.Balance, error)
	ListLinesByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Line, error)
}

// LedgerHandler serves balances and statements
type LedgerHandler struct {
	ledgerService LedgerServiceInterface
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService LedgerServiceInterface) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// BalanceResponse represents one account's derived balances
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	AssetID   string `json:"asset_id"`
	Posted    string `json:"posted"`
	Held      string `json:"held"`
	Available string `json:"available"`
}

// BalancesListResponse represents balances across the owner's accounts
type BalancesListResponse struct {
	Balances []BalanceResponse `json:"balances"`
}

// LineResponse represents one journal line in a statement
type LineResponse struct {
	ID      string `json:"id"`
	EntryID string `json:"entry_id"`
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
}

// GetBalances handles GET /balances
func (h *LedgerHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accounts, err := h.ledgerService.FindAccountsByOwner(r.Context(), ownerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch accounts")
		return
	}

	balances := make([]BalanceResponse, 0, len(accounts))
	for _, account := range accounts {
		balance, err := h.ledgerService.Balances(r.Context(), account.ID, account.AssetID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to derive balances")
			return
		}
		balances = append(balances, toBalanceResponse(balance))
	}

	respondJSON(w, http.StatusOK, BalancesListResponse{Balances: balances})
}

// GetAccountLines handles GET /accounts/{id}/lines
func (h *LedgerHandler) GetAccountLines(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.GetOwnerIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid account ID")
		return
	}

	account, err := h.ledgerService.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "account not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch account")
		return
	}
	if account.OwnerID != ownerID {
		// Do not reveal whether the account exists
		respondError(w, http.StatusNotFound, "account not found")
		return
	}

	limit, offset := paginationParams(r, 50, 200)
	lines, err := h.ledgerService.ListLinesByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch lines")
		return
	}

	responses := make([]LineResponse, 0, len(lines))
	for _, line := range lines {
		responses = append(responses, LineResponse{
			ID:      line.ID.String(),
			EntryID: line.EntryID.String(),
			AssetID: line.AssetID,
			Amount:  money.Format(line.Amount),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"lines": responses})
}

func toBalanceResponse(b *ledger.Balance) BalanceResponse {
	return BalanceResponse{
		AccountID: b.AccountID.String(),
		AssetID:   b.AssetID,
		Posted:    money.Format(b.Posted),
		Held:      money.Format(b.Held),
		Available: money.Format(b.Available),
	}
}

// paginationParams reads limit/offset query params with a default and cap
func paginationParams(r *http.Request, def, max int) (limit, offset int) {
	limit = def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > max {
		limit = max
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
