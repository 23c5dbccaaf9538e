package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// RewardLedgerRepository records unlocked rewards. Each unlock is keyed so a retried
// check-in on the same day cannot grant the same reward twice.
type RewardLedgerRepository interface {
	ExistsByIdem(ctx context.Context, tx *sqlx.Tx, idem string) (bool, error)
	InsertUnlock(ctx context.Context, tx *sqlx.Tx, u RewardUnlock) (bool, error)
}

type ledgerRepo struct{}

func NewRewardLedgerRepository() RewardLedgerRepository { return &ledgerRepo{} }

// ExistsByIdem checks if a ledger row with the given idempotency key already exists.
func (r *ledgerRepo) ExistsByIdem(ctx context.Context, tx *sqlx.Tx, idem string) (bool, error) {
	var one int
	err := tx.QueryRowxContext(ctx,
		`SELECT 1 FROM reward_ledger WHERE idempotency_key = ? LIMIT 1`, idem,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertUnlock reports whether a new row was written.
func (r *ledgerRepo) InsertUnlock(ctx context.Context, tx *sqlx.Tx, u RewardUnlock) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO reward_ledger
		    (tenant_id, identity_id, threshold_days, label, entry_id, credit_date, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE id = id
	`, u.TenantID, u.IdentityID, u.ThresholdDays, u.Label, u.EntryID, u.CreditDate.Format("2006-01-02"), u.IdempotencyKey())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
