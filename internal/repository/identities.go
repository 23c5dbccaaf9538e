package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
)

type IdentitiesRepository interface {
	Get(ctx context.Context, tenantID, identityID int64) (*model.Identity, error)
	GetByBiometricTemplate(ctx context.Context, tenantID int64, templateID string) (*model.Identity, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, tenantID, identityID int64) (*model.Identity, error)
	UpdateCheckinState(ctx context.Context, tx *sqlx.Tx, identityID int64, upd model.IdentityUpdate) error
	SetFreezeUntil(ctx context.Context, identityID int64, until, now time.Time) (bool, error)
	ListStreakCandidates(ctx context.Context, tenantID int64, before time.Time) ([]model.Identity, error)
	ResetStreakCAS(ctx context.Context, identityID int64, expectStreak int, expectCredit time.Time) (bool, error)
}

type IdentitiesRepositoryImpl struct {
	db *sqlx.DB
}

func NewIdentitiesRepository(db *sqlx.DB) *IdentitiesRepositoryImpl {
	return &IdentitiesRepositoryImpl{db: db}
}

var _ IdentitiesRepository = (*IdentitiesRepositoryImpl)(nil)

const identityColumns = `id, tenant_id, name, role, current_streak, last_entry_at, last_credit_date,
	streak_freeze_until, biometric_template_id, deleted_at, created_at, updated_at`

func (r *IdentitiesRepositoryImpl) Get(ctx context.Context, tenantID, identityID int64) (*model.Identity, error) {
	return getIdentity(ctx, r.db, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL
	`, tenantID, identityID)
}

func (r *IdentitiesRepositoryImpl) GetByBiometricTemplate(ctx context.Context, tenantID int64, templateID string) (*model.Identity, error) {
	return getIdentity(ctx, r.db, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE tenant_id = ? AND biometric_template_id = ? AND deleted_at IS NULL
		LIMIT 1
	`, tenantID, templateID)
}

// GetForUpdate locks the identity row for the rest of tx.
func (r *IdentitiesRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, tenantID, identityID int64) (*model.Identity, error) {
	return getIdentity(ctx, tx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL
		FOR UPDATE
	`, tenantID, identityID)
}

func getIdentity(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*model.Identity, error) {
	var it model.Identity
	err := sqlx.GetContext(ctx, q, &it, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *IdentitiesRepositoryImpl) UpdateCheckinState(ctx context.Context, tx *sqlx.Tx, identityID int64, upd model.IdentityUpdate) error {
	if !upd.StreakChanged {
		_, err := tx.ExecContext(ctx, `
			UPDATE identities
			SET last_entry_at = ?, updated_at = NOW()
			WHERE id = ?
		`, upd.LastEntryAt.UTC(), identityID)
		return err
	}

	var credit any
	if upd.LastCreditDate != nil {
		credit = upd.LastCreditDate.Format(time.DateOnly)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE identities
		SET last_entry_at = ?,
		    current_streak = ?,
		    last_credit_date = ?,
		    streak_freeze_until = IF(?, NULL, streak_freeze_until),
		    updated_at = NOW()
		WHERE id = ?
	`, upd.LastEntryAt.UTC(), upd.CurrentStreak, credit, upd.ClearFreeze, identityID)
	return err
}

// SetFreezeUntil writes the grace-freeze marker only when no freeze is in force.
func (r *IdentitiesRepositoryImpl) SetFreezeUntil(ctx context.Context, identityID int64, until, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET streak_freeze_until = ?, updated_at = NOW()
		WHERE id = ? AND current_streak > 0
		  AND (streak_freeze_until IS NULL OR streak_freeze_until < ?)
	`, until.UTC(), identityID, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *IdentitiesRepositoryImpl) ListStreakCandidates(ctx context.Context, tenantID int64, before time.Time) ([]model.Identity, error) {
	var rows []model.Identity
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE tenant_id = ? AND role = 'member' AND deleted_at IS NULL
		  AND current_streak > 0 AND last_credit_date < ?
		ORDER BY id
	`, tenantID, before.Format(time.DateOnly))
	return rows, err
}

// ResetStreakCAS zeroes a streak if neither the streak nor the credit date moved since
// the caller read them. A concurrent check-in that already extended it wins.
func (r *IdentitiesRepositoryImpl) ResetStreakCAS(ctx context.Context, identityID int64, expectStreak int, expectCredit time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET current_streak = 0, updated_at = NOW()
		WHERE id = ? AND current_streak = ? AND last_credit_date = ?
	`, identityID, expectStreak, expectCredit.Format(time.DateOnly))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
