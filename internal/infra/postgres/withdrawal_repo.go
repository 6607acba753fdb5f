package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/withdrawal"
)

// WithdrawalRepository implements the withdrawal repository using
// PostgreSQL. It shares the context-carried transaction with the
// ledger repository so state transitions and their journal postings
// commit atomically.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

// NewWithdrawalRepository creates a new PostgreSQL withdrawal repository
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

const withdrawalColumns = `id, owner_id, account_id, asset_id, amount, fee, hold_id, address, tx_hash, status, reason, created_at, updated_at`

// Create inserts a new withdrawal row
func (r *WithdrawalRepository) Create(ctx context.Context, w *withdrawal.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	q := r.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		w.ID,
		w.OwnerID,
		w.AccountID,
		w.AssetID,
		w.Amount.String(),
		w.Fee.String(),
		w.HoldID,
		w.Address,
		w.TxHash,
		string(w.Status),
		w.Reason,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}

	return nil
}

// GetByID retrieves a withdrawal by ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves a withdrawal by ID with a row-level lock
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	return r.getByID(ctx, id, true)
}

func (r *WithdrawalRepository) getByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*withdrawal.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	q := r.getQueryer(ctx)
	w, err := scanWithdrawal(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Update persists the withdrawal's mutable fields
func (r *WithdrawalRepository) Update(ctx context.Context, w *withdrawal.Withdrawal) error {
	query := `
		UPDATE withdrawals
		SET status = $2, tx_hash = $3, reason = $4, updated_at = $5
		WHERE id = $1
	`

	q := r.getQueryer(ctx)
	tag, err := q.Exec(ctx, query, w.ID, string(w.Status), w.TxHash, w.Reason, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return withdrawal.ErrNotFound
	}

	return nil
}

// ListByOwner retrieves an owner's withdrawals, newest first
func (r *WithdrawalRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*withdrawal.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*withdrawal.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}

	return withdrawals, nil
}

func scanWithdrawal(row pgx.Row) (*withdrawal.Withdrawal, error) {
	var w withdrawal.Withdrawal
	var amountStr, feeStr, status string

	err := row.Scan(
		&w.ID,
		&w.OwnerID,
		&w.AccountID,
		&w.AssetID,
		&amountStr,
		&feeStr,
		&w.HoldID,
		&w.Address,
		&w.TxHash,
		&status,
		&w.Reason,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, withdrawal.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
	}

	w.Status = withdrawal.Status(status)

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount: %s", amountStr)
	}
	w.Amount = amount

	fee, ok := new(big.Int).SetString(feeStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse fee: %s", feeStr)
	}
	w.Fee = fee

	return &w, nil
}

// getQueryer returns the ledger transaction if one is carried on the
// context, otherwise the pool
func (r *WithdrawalRepository) getQueryer(ctx context.Context) queryer {
	return queryerFromContext(ctx, r.pool)
}

var _ withdrawal.Repository = (*WithdrawalRepository)(nil)
var _ ledger.Repository = (*LedgerRepository)(nil)
