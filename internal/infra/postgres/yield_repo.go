package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/exchange-ledger/internal/module/yield"
)

// YieldRepository implements the yield position repository using PostgreSQL
type YieldRepository struct {
	pool *pgxpool.Pool
}

// NewYieldRepository creates a new PostgreSQL yield repository
func NewYieldRepository(pool *pgxpool.Pool) *YieldRepository {
	return &YieldRepository{pool: pool}
}

const yieldColumns = `id, owner_id, account_id, asset_id, principal, rate_bps, hold_id, status, subscribed_at, redeemed_at, updated_at`

// Create inserts a new position row
func (r *YieldRepository) Create(ctx context.Context, p *yield.Position) error {
	query := `
		INSERT INTO yield_positions (` + yieldColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	q := queryerFromContext(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		p.ID,
		p.OwnerID,
		p.AccountID,
		p.AssetID,
		p.Principal.String(),
		p.RateBps,
		p.HoldID,
		string(p.Status),
		p.SubscribedAt,
		p.RedeemedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert yield position: %w", err)
	}

	return nil
}

// GetByID retrieves a position by ID
func (r *YieldRepository) GetByID(ctx context.Context, id uuid.UUID) (*yield.Position, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves a position by ID with a row-level lock
func (r *YieldRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*yield.Position, error) {
	return r.getByID(ctx, id, true)
}

func (r *YieldRepository) getByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*yield.Position, error) {
	query := `SELECT ` + yieldColumns + ` FROM yield_positions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	q := queryerFromContext(ctx, r.pool)
	return scanYieldPosition(q.QueryRow(ctx, query, id))
}

// Update persists the position's mutable fields
func (r *YieldRepository) Update(ctx context.Context, p *yield.Position) error {
	query := `
		UPDATE yield_positions
		SET status = $2, redeemed_at = $3, updated_at = $4
		WHERE id = $1
	`

	q := queryerFromContext(ctx, r.pool)
	tag, err := q.Exec(ctx, query, p.ID, string(p.Status), p.RedeemedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update yield position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return yield.ErrNotFound
	}

	return nil
}

// ListByOwner retrieves an owner's positions, newest first
func (r *YieldRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*yield.Position, error) {
	query := `
		SELECT ` + yieldColumns + `
		FROM yield_positions
		WHERE owner_id = $1
		ORDER BY subscribed_at DESC
		LIMIT $2 OFFSET $3
	`

	q := queryerFromContext(ctx, r.pool)
	rows, err := q.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query yield positions: %w", err)
	}
	defer rows.Close()

	var positions []*yield.Position
	for rows.Next() {
		p, err := scanYieldPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating yield positions: %w", err)
	}

	return positions, nil
}

func scanYieldPosition(row pgx.Row) (*yield.Position, error) {
	var p yield.Position
	var principalStr, status string

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.AccountID,
		&p.AssetID,
		&principalStr,
		&p.RateBps,
		&p.HoldID,
		&status,
		&p.SubscribedAt,
		&p.RedeemedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, yield.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan yield position: %w", err)
	}

	p.Status = yield.Status(status)

	principal, ok := new(big.Int).SetString(principalStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse principal: %s", principalStr)
	}
	p.Principal = principal

	return &p, nil
}

var _ yield.Repository = (*YieldRepository)(nil)
