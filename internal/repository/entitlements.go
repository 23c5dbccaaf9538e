package repository

import (
	"context"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
)

type EntitlementsRepository interface {
	LatestActive(ctx context.Context, tenantID, identityID int64, now time.Time) (*model.Entitlement, error)
}

type EntitlementsRepositoryImpl struct {
	db *sqlx.DB
}

func NewEntitlementsRepository(db *sqlx.DB) *EntitlementsRepositoryImpl {
	return &EntitlementsRepositoryImpl{db: db}
}

var _ EntitlementsRepository = (*EntitlementsRepositoryImpl)(nil)

// LatestActive returns the most recently created active, unexpired entitlement.
func (r *EntitlementsRepositoryImpl) LatestActive(ctx context.Context, tenantID, identityID int64, now time.Time) (*model.Entitlement, error) {
	var rows []model.Entitlement
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, identity_id, tenant_id, status, expires_at, window_start_min, window_end_min,
		       frozen_days_remaining, created_at
		FROM entitlements
		WHERE tenant_id = ? AND identity_id = ? AND status = 'active' AND expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, tenantID, identityID, now.UTC())
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}
