package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
)

// AssetRepository implements the asset repository using PostgreSQL
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new PostgreSQL asset repository
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// GetByID retrieves an asset by its identifier
func (r *AssetRepository) GetByID(ctx context.Context, id string) (*asset.Asset, error) {
	query := `
		SELECT id, symbol, name, chain_id, decimals, withdraw_fee_bps, min_withdrawal, is_active, created_at, updated_at
		FROM assets
		WHERE id = $1
	`

	return scanAsset(r.pool.QueryRow(ctx, query, id))
}

// GetActive retrieves all active assets ordered by ID
func (r *AssetRepository) GetActive(ctx context.Context) ([]*asset.Asset, error) {
	query := `
		SELECT id, symbol, name, chain_id, decimals, withdraw_fee_bps, min_withdrawal, is_active, created_at, updated_at
		FROM assets
		WHERE is_active = true
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []*asset.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// Create creates a new asset
func (r *AssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	query := `
		INSERT INTO assets (id, symbol, name, chain_id, decimals, withdraw_fee_bps, min_withdrawal, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	minWithdrawal := "0"
	if a.MinWithdrawal != nil {
		minWithdrawal = a.MinWithdrawal.String()
	}

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Symbol,
		a.Name,
		a.ChainID,
		a.Decimals,
		a.WithdrawFeeBps,
		minWithdrawal,
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return asset.ErrDuplicateAsset
		}
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	return nil
}

// Update persists the asset's mutable fields
func (r *AssetRepository) Update(ctx context.Context, a *asset.Asset) error {
	query := `
		UPDATE assets
		SET withdraw_fee_bps = $2, min_withdrawal = $3, is_active = $4, updated_at = $5
		WHERE id = $1
	`

	minWithdrawal := "0"
	if a.MinWithdrawal != nil {
		minWithdrawal = a.MinWithdrawal.String()
	}

	tag, err := r.pool.Exec(ctx, query, a.ID, a.WithdrawFeeBps, minWithdrawal, a.IsActive, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return asset.ErrAssetNotFound
	}

	return nil
}

func scanAsset(row pgx.Row) (*asset.Asset, error) {
	var a asset.Asset
	var minWithdrawalStr string

	err := row.Scan(
		&a.ID,
		&a.Symbol,
		&a.Name,
		&a.ChainID,
		&a.Decimals,
		&a.WithdrawFeeBps,
		&minWithdrawalStr,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, asset.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to scan asset: %w", err)
	}

	minWithdrawal, ok := new(big.Int).SetString(minWithdrawalStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse min_withdrawal: %s", minWithdrawalStr)
	}
	a.MinWithdrawal = minWithdrawal

	return &a, nil
}
