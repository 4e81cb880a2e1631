package credit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callops-platform/pkg/utils"
)

// SQLRepository is the Postgres-backed Repository.
//
// Assumed tables:
// - wallets (tenant_id UNIQUE, balance_minor, status, created_at, updated_at)
// - credit_transactions (id, tenant_id, amount_minor, kind, description, status, created_at)
//
// credit_transactions is INSERT-only.
type SQLRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db, clock: time.Now}
}

func (r *SQLRepository) GetWallet(ctx context.Context, tenantID string) (Wallet, error) {
	const q = `
SELECT tenant_id, balance_minor, status, created_at, updated_at
FROM wallets
WHERE tenant_id = $1
`
	var w Wallet
	if err := r.db.QueryRowContext(ctx, q, tenantID).Scan(
		&w.TenantID,
		&w.BalanceMinor,
		&w.Status,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

// DebitIfSufficient performs the conditional decrement as one UPDATE.
// The WHERE clause is the overdraw guard; there is no read-then-write window.
func (r *SQLRepository) DebitIfSufficient(ctx context.Context, tenantID string, amountMinor int64, txn Transaction) (int64, bool, error) {
	const q = `
UPDATE wallets
SET balance_minor = balance_minor - $2,
    updated_at = $3
WHERE tenant_id = $1 AND balance_minor >= $2
RETURNING balance_minor
`
	var newBalance int64
	var matched bool

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, q, tenantID, amountMinor, r.clock().UTC()).Scan(&newBalance)
		if errors.Is(err, sql.ErrNoRows) {
			// Wallet missing or balance below amount: no mutation, no entry.
			return nil
		}
		if err != nil {
			return err
		}
		matched = true
		return insertTransaction(ctx, tx, txn)
	})
	if err != nil {
		return 0, false, err
	}
	return newBalance, matched, nil
}

func (r *SQLRepository) CreditAndLog(ctx context.Context, tenantID string, amountMinor int64, txn Transaction) (int64, error) {
	const q = `
INSERT INTO wallets (tenant_id, balance_minor, status, created_at, updated_at)
VALUES ($1, $2, 'active', $3, $3)
ON CONFLICT (tenant_id)
DO UPDATE SET balance_minor = wallets.balance_minor + EXCLUDED.balance_minor,
              updated_at = EXCLUDED.updated_at
RETURNING balance_minor
`
	var newBalance int64
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, q, tenantID, amountMinor, r.clock().UTC()).Scan(&newBalance); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, txn)
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *SQLRepository) Transactions(ctx context.Context, tenantID string, limit int) ([]Transaction, error) {
	const q = `
SELECT id, tenant_id, amount_minor, kind, description, status, created_at
FROM credit_transactions
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.TenantID,
			&t.AmountMinor,
			&t.Kind,
			&t.Description,
			&t.Status,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	const q = `
INSERT INTO credit_transactions (
  id, tenant_id, amount_minor, kind, description, status, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := tx.ExecContext(ctx, q,
		t.ID,
		t.TenantID,
		t.AmountMinor,
		t.Kind,
		t.Description,
		t.Status,
		t.CreatedAt,
	)
	return err
}
