package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
)

const pgUniqueViolation = "23505"

// LedgerRepository implements the ledger repository interface using PostgreSQL.
// Amounts are stored as NUMERIC base units (scaled by 10^18) so SUM
// aggregation happens in the database without precision loss.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Account operations

// GetOrCreateAccount atomically inserts the (owner, asset) account or
// returns the existing one. Uses INSERT...ON CONFLICT DO NOTHING so
// concurrent first-touch creation never races.
func (r *LedgerRepository) GetOrCreateAccount(ctx context.Context, ownerID uuid.UUID, assetID string) (*ledger.Account, error) {
	insertQuery := `
		INSERT INTO accounts (id, owner_id, asset_id, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, asset_id) DO NOTHING
	`

	q := r.getQueryer(ctx)
	_, err := q.Exec(ctx, insertQuery, uuid.New(), ownerID, assetID, time.Now().UTC(), []byte("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	// Always SELECT to get the canonical row (ours or existing)
	selectQuery := `
		SELECT id, owner_id, asset_id, created_at, metadata
		FROM accounts
		WHERE owner_id = $1 AND asset_id = $2
	`

	account, err := scanAccount(q.QueryRow(ctx, selectQuery, ownerID, assetID))
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount retrieves an account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `
		SELECT id, owner_id, asset_id, created_at, metadata
		FROM accounts
		WHERE id = $1
	`

	q := r.getQueryer(ctx)
	return scanAccount(q.QueryRow(ctx, query, id))
}

// FindAccountsByOwner retrieves all accounts belonging to an owner
func (r *LedgerRepository) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*ledger.Account, error) {
	query := `
		SELECT id, owner_id, asset_id, created_at, metadata
		FROM accounts
		WHERE owner_id = $1
		ORDER BY asset_id ASC
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// LockAccount acquires the row-level exclusive lock on the account row.
// The lock serializes concurrent balance checks and is held until the
// surrounding transaction commits or rolls back.
func (r *LedgerRepository) LockAccount(ctx context.Context, id uuid.UUID) error {
	query := `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`

	var locked uuid.UUID
	q := r.getQueryer(ctx)
	err := q.QueryRow(ctx, query, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.ErrAccountNotFound
		}
		return fmt.Errorf("failed to lock account: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var account ledger.Account
	var metadataJSON []byte

	err := row.Scan(
		&account.ID,
		&account.OwnerID,
		&account.AssetID,
		&account.CreatedAt,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &account.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &account, nil
}

// Journal operations

// CreateEntry inserts the entry and all its lines. The partial unique
// index on (type, reference) turns a replayed reference into
// ErrDuplicateReference instead of a second posting.
func (r *LedgerRepository) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	entryQuery := `
		INSERT INTO entries (id, type, reference, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	q := r.getQueryer(ctx)
	_, err = q.Exec(ctx, entryQuery,
		entry.ID,
		entry.Type,
		entry.Reference,
		entry.CreatedAt,
		metadataJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	lineQuery := `
		INSERT INTO lines (id, entry_id, account_id, asset_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, line := range entry.Lines {
		_, err = q.Exec(ctx, lineQuery,
			line.ID,
			line.EntryID,
			line.AccountID,
			line.AssetID,
			line.Amount.String(),
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line: %w", err)
		}
	}

	return nil
}

// GetEntry retrieves an entry by ID with its lines
func (r *LedgerRepository) GetEntry(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `
		SELECT id, type, reference, created_at, metadata
		FROM entries
		WHERE id = $1
	`

	var entry ledger.Entry
	var metadataJSON []byte

	q := r.getQueryer(ctx)
	err := q.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Type,
		&entry.Reference,
		&entry.CreatedAt,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	linesQuery := `
		SELECT id, entry_id, account_id, asset_id, amount
		FROM lines
		WHERE entry_id = $1
		ORDER BY id ASC
	`

	rows, err := q.Query(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		entry.Lines = append(entry.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}

	return &entry, nil
}

// ListLinesByAccount returns the account's journal lines, newest first
func (r *LedgerRepository) ListLinesByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Line, error) {
	query := `
		SELECT id, entry_id, account_id, asset_id, amount
		FROM lines
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var lines []*ledger.Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}

	return lines, nil
}

func scanLine(row pgx.Row) (*ledger.Line, error) {
	var line ledger.Line
	var amountStr string

	err := row.Scan(
		&line.ID,
		&line.EntryID,
		&line.AccountID,
		&line.AssetID,
		&amountStr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan line: %w", err)
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount: %s", amountStr)
	}
	line.Amount = amount

	return &line, nil
}

// Derived balance inputs

// SumPostedByAccount sums all journal line amounts for the account and
// asset. The posted balance is always derived, never stored.
func (r *LedgerRepository) SumPostedByAccount(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM lines
		WHERE account_id = $1 AND asset_id = $2
	`

	return r.sumQuery(ctx, query, accountID, assetID)
}

// SumHeldByAccount sums the remaining amounts of all active holds for
// the account and asset
func (r *LedgerRepository) SumHeldByAccount(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error) {
	query := `
		SELECT COALESCE(SUM(remaining), 0)::text
		FROM holds
		WHERE account_id = $1 AND asset_id = $2 AND status = 'active'
	`

	return r.sumQuery(ctx, query, accountID, assetID)
}

func (r *LedgerRepository) sumQuery(ctx context.Context, query string, accountID uuid.UUID, assetID string) (*big.Int, error) {
	var sumStr string
	q := r.getQueryer(ctx)
	if err := q.QueryRow(ctx, query, accountID, assetID).Scan(&sumStr); err != nil {
		return nil, fmt.Errorf("failed to sum amounts: %w", err)
	}

	sum, ok := new(big.Int).SetString(sumStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse sum: %s", sumStr)
	}
	return sum, nil
}

// Hold operations

// CreateHold inserts a new hold row
func (r *LedgerRepository) CreateHold(ctx context.Context, hold *ledger.Hold) error {
	metadataJSON, err := json.Marshal(hold.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO holds (id, account_id, asset_id, amount, remaining, status, reason, created_at, released_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	q := r.getQueryer(ctx)
	_, err = q.Exec(ctx, query,
		hold.ID,
		hold.AccountID,
		hold.AssetID,
		hold.Amount.String(),
		hold.Remaining.String(),
		string(hold.Status),
		hold.Reason,
		hold.CreatedAt,
		hold.ReleasedAt,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert hold: %w", err)
	}

	return nil
}

// GetHold retrieves a hold by ID
func (r *LedgerRepository) GetHold(ctx context.Context, id uuid.UUID) (*ledger.Hold, error) {
	return r.getHoldWithLock(ctx, id, false)
}

// GetHoldForUpdate retrieves a hold by ID with a row-level lock.
// Must be called inside InTx so the lock survives until commit.
func (r *LedgerRepository) GetHoldForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Hold, error) {
	return r.getHoldWithLock(ctx, id, true)
}

func (r *LedgerRepository) getHoldWithLock(ctx context.Context, id uuid.UUID, forUpdate bool) (*ledger.Hold, error) {
	query := `
		SELECT id, account_id, asset_id, amount, remaining, status, reason, created_at, released_at, metadata
		FROM holds
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var hold ledger.Hold
	var amountStr, remainingStr, status string
	var metadataJSON []byte

	q := r.getQueryer(ctx)
	err := q.QueryRow(ctx, query, id).Scan(
		&hold.ID,
		&hold.AccountID,
		&hold.AssetID,
		&amountStr,
		&remainingStr,
		&status,
		&hold.Reason,
		&hold.CreatedAt,
		&hold.ReleasedAt,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrHoldNotFound
		}
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	hold.Status = ledger.HoldStatus(status)

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount: %s", amountStr)
	}
	hold.Amount = amount

	remaining, ok := new(big.Int).SetString(remainingStr, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse remaining: %s", remainingStr)
	}
	hold.Remaining = remaining

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &hold.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &hold, nil
}

// UpdateHold persists the hold's mutable fields: remaining, status and
// released_at. Everything else is immutable after creation.
func (r *LedgerRepository) UpdateHold(ctx context.Context, hold *ledger.Hold) error {
	query := `
		UPDATE holds
		SET remaining = $2, status = $3, released_at = $4
		WHERE id = $1
	`

	q := r.getQueryer(ctx)
	tag, err := q.Exec(ctx, query,
		hold.ID,
		hold.Remaining.String(),
		string(hold.Status),
		hold.ReleasedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrHoldNotFound
	}

	return nil
}

// ListActiveHolds returns all active holds for the account and asset
func (r *LedgerRepository) ListActiveHolds(ctx context.Context, accountID uuid.UUID, assetID string) ([]*ledger.Hold, error) {
	query := `
		SELECT id, account_id, asset_id, amount, remaining, status, reason, created_at, released_at, metadata
		FROM holds
		WHERE account_id = $1 AND asset_id = $2 AND status = 'active'
		ORDER BY created_at ASC
	`

	q := r.getQueryer(ctx)
	rows, err := q.Query(ctx, query, accountID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	defer rows.Close()

	var holds []*ledger.Hold
	for rows.Next() {
		var hold ledger.Hold
		var amountStr, remainingStr, status string
		var metadataJSON []byte

		err := rows.Scan(
			&hold.ID,
			&hold.AccountID,
			&hold.AssetID,
			&amountStr,
			&remainingStr,
			&status,
			&hold.Reason,
			&hold.CreatedAt,
			&hold.ReleasedAt,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}

		hold.Status = ledger.HoldStatus(status)

		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("failed to parse amount: %s", amountStr)
		}
		hold.Amount = amount

		remaining, ok := new(big.Int).SetString(remainingStr, 10)
		if !ok {
			return nil, fmt.Errorf("failed to parse remaining: %s", remainingStr)
		}
		hold.Remaining = remaining

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &hold.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		holds = append(holds, &hold)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holds: %w", err)
	}

	return holds, nil
}

// Counters

// UpsertCounter atomically creates the counter or adds delta to it,
// returning the new value
func (r *LedgerRepository) UpsertCounter(ctx context.Context, key string, delta int64) (int64, error) {
	query := `
		INSERT INTO counters (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = counters.value + EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
		RETURNING value
	`

	var value int64
	q := r.getQueryer(ctx)
	err := q.QueryRow(ctx, query, key, delta, time.Now().UTC()).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert counter: %w", err)
	}

	return value, nil
}

// Transaction management using pgx transactions carried on the context

// txKey is the context key for storing database transactions
type ctxKey string

const txContextKey ctxKey = "ledger_tx"

// InTx runs fn inside a database transaction stored in the context. If
// the context already carries a transaction, fn joins it and the outer
// caller stays in charge of commit/rollback.
func (r *LedgerRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := r.getTxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txCtx := context.WithValue(ctx, txContextKey, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// getTxFromContext retrieves the transaction from context if one exists
func (r *LedgerRepository) getTxFromContext(ctx context.Context) pgx.Tx {
	return txFromContext(ctx)
}

// getQueryer returns the transaction if one exists in context, otherwise
// the pool. This lets every repository method work both inside and
// outside transactions.
func (r *LedgerRepository) getQueryer(ctx context.Context) queryer {
	return queryerFromContext(ctx, r.pool)
}
