package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
)

type TenantsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
	GetByDeviceSecretHash(ctx context.Context, hash string) (*model.Tenant, error)
	ListActive(ctx context.Context) ([]model.Tenant, error)
	UpdateSettings(ctx context.Context, tenantID int64, s model.TenantSettings) error
}

type TenantsRepositoryImpl struct {
	db *sqlx.DB
}

func NewTenantsRepository(db *sqlx.DB) *TenantsRepositoryImpl {
	return &TenantsRepositoryImpl{db: db}
}

var _ TenantsRepository = (*TenantsRepositoryImpl)(nil)

type tenantRow struct {
	ID                int64          `db:"id"`
	Name              string         `db:"name"`
	APIKey            string         `db:"api_key"`
	DeviceSecretHash  sql.NullString `db:"device_secret_hash"`
	Status            string         `db:"status"`
	Tier              string         `db:"tier"`
	Overrides         []byte         `db:"capability_overrides"`
	Rewards           []byte         `db:"reward_schedule"`
	Calendar          []byte         `db:"closed_calendar"`
	Timezone          string         `db:"timezone"`
	LastReactivatedAt *time.Time     `db:"last_reactivated_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r tenantRow) toModel() model.Tenant {
	tier, _ := model.ParseTier(r.Tier)
	return model.Tenant{
		ID:                r.ID,
		Name:              r.Name,
		APIKey:            r.APIKey,
		DeviceSecretHash:  r.DeviceSecretHash.String,
		Status:            r.Status,
		Tier:              tier,
		Overrides:         model.DecodeCapabilityOverrides(r.Overrides),
		Rewards:           model.DecodeRewardSchedule(r.Rewards),
		Calendar:          model.DecodeClosedCalendar(r.Calendar),
		Timezone:          r.Timezone,
		LastReactivatedAt: r.LastReactivatedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

const tenantColumns = `id, name, api_key, device_secret_hash, status, tier, capability_overrides,
	reward_schedule, closed_calendar, timezone, last_reactivated_at, created_at, updated_at`

func (r *TenantsRepositoryImpl) getOne(ctx context.Context, where string, arg any) (*model.Tenant, error) {
	var row tenantRow
	err := r.db.GetContext(ctx, &row, `SELECT `+tenantColumns+` FROM tenants WHERE `+where+` LIMIT 1`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := row.toModel()
	return &t, nil
}

func (r *TenantsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	return r.getOne(ctx, "api_key = ?", apiKey)
}

func (r *TenantsRepositoryImpl) GetByDeviceSecretHash(ctx context.Context, hash string) (*model.Tenant, error) {
	return r.getOne(ctx, "device_secret_hash = ?", hash)
}

func (r *TenantsRepositoryImpl) ListActive(ctx context.Context) ([]model.Tenant, error) {
	var rows []tenantRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+tenantColumns+` FROM tenants WHERE status = 'active' ORDER BY id`,
	); err != nil {
		return nil, err
	}
	out := make([]model.Tenant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// UpdateSettings writes already-validated settings.
func (r *TenantsRepositoryImpl) UpdateSettings(ctx context.Context, tenantID int64, s model.TenantSettings) error {
	overrides, err := json.Marshal(s.Overrides)
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}
	rewards := s.Rewards
	if rewards == nil {
		rewards = model.RewardSchedule{}
	}
	rewardsJSON, err := json.Marshal(rewards)
	if err != nil {
		return fmt.Errorf("marshal rewards: %w", err)
	}
	calendar, err := json.Marshal(s.Calendar)
	if err != nil {
		return fmt.Errorf("marshal calendar: %w", err)
	}
	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE tenants
		SET capability_overrides = ?, reward_schedule = ?, closed_calendar = ?, timezone = ?, updated_at = NOW()
		WHERE id = ?
	`, overrides, rewardsJSON, calendar, tz, tenantID)
	return err
}
