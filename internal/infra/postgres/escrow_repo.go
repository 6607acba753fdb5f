package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/exchange-ledger/internal/module/escrow"
)

// EscrowRepository implements the escrow repository using PostgreSQL
type EscrowRepository struct {
	pool *pgxpool.Pool
}

// NewEscrowRepository creates a new PostgreSQL escrow repository
func NewEscrowRepository(pool *pgxpool.Pool) *EscrowRepository {
	return &EscrowRepository{pool: pool}
}

const escrowColumns = `id, seller_id, buyer_id, account_id, asset_id, amount, hold_id, status, reference, created_at, updated_at`

// Create inserts a new escrow order row
func (r *EscrowRepository) Create(ctx context.Context, o *escrow.Order) error {
	query := `
		INSERT INTO escrow_orders (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	q := queryerFromContext(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		o.ID,
		o.SellerID,
		o.BuyerID,
		o.AccountID,
		o.AssetID,
		o.Amount.String(),
		o.HoldID,
		string(o.Status),
		o.Reference,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert escrow order: %w", err)
	}

	return nil
}

// GetByID retrieves an escrow order by ID
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Order, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves an escrow order by ID with a row-level lock
func (r *EscrowRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*escrow.Order, error) {
	return r.getByID(ctx, id, true)
}

func (r *EscrowRepository) getByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*escrow.Order, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_orders WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	q := queryerFromContext(ctx, r.pool)
	return scanEscrowOrder(q.QueryRow(ctx, query, id))
}

// Update persists the order's mutable fields
func (r *EscrowRepository) Update(ctx context.Context, o *escrow.Order) error {
	query := `
		UPDATE escrow_orders
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	q := queryerFromContext(ctx, r.pool)
	tag, err := q.Exec(ctx, query, o.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update escrow order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return escrow.ErrNotFound
	}

	return nil
}

// ListByParty retrieves orders where the party is seller or buyer,
// newest first
func (r *EscrowRepository) ListByParty(ctx context.Context, partyID uuid.UUID, limit, offset int) ([]*escrow.Order, error) {
	query := `
		SELECT ` + escrowColumns + `
		FROM escrow_orders
		WHERE seller_id = $1 OR buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	q := queryerFromContext(ctx, r.pool)
	rows, err := q.Query(ctx, query, partyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query escrow orders: %w", err)
	}
	defer rows.Close()

	var orders []*escrow.Order
	for rows.Next() {
		o, err := scanEscrowOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escrow orders: %w", err)
	}

	return orders, nil
}

func scanEscrowOrder(row pgx.Row) (*escrow.Order, error) {
	var o escrow.Order
	var amountStr, status string

	err := row.Scan(
		&o.ID,
		&o.SellerID,
		&o.BuyerID,
		&o.AccountID,
		&o.AssetID,
		&amountStr,
		&o.HoldID,
		&status,
		&o.Reference,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan escrow order: %w", err)
	}

	o.Status = escrow.Status(status)

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount: %s", amountStr)
	}
	o.Amount = amount

	return &o, nil
}

var _ escrow.Repository = (*EscrowRepository)(nil)
