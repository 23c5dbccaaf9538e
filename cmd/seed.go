package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo tenants, identities and entitlements",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2) connect MySQL
		sqlDB, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		logger.Log.Info(">> Seeding demo tenants...")

		if err := seedTenants(sqlDB); err != nil {
			return err
		}
		if err := seedIdentities(sqlDB); err != nil {
			return err
		}

		logger.Log.Info(">> Seed completed ✅")
		return nil
	},
}

type demoTenant struct {
	name, apiKey, deviceSecret, status string
	tier                               model.Tier
	rewards                            []model.RewardTier
	closedWeekdays                     []int
}

var demoTenants = []demoTenant{
	{
		name:   "Barrio Basic Gym",
		apiKey: "11111111111111111111111111111111",
		status: "active",
		tier:   model.TierBasic,
	},
	{
		name:    "QR Fitness",
		apiKey:  "22222222222222222222222222222222",
		status:  "active",
		tier:    model.TierProQR,
		rewards: []model.RewardTier{{ThresholdDays: 7, Label: "Free smoothie"}, {ThresholdDays: 30, Label: "Guest pass"}},
		// closed on Sundays
		closedWeekdays: []int{0},
	},
	{
		name:         "Premium Bio Club",
		apiKey:       "33333333333333333333333333333333",
		deviceSecret: "reader-demo-secret",
		status:       "active",
		tier:         model.TierPremiumBio,
		rewards:      []model.RewardTier{{ThresholdDays: 10, Label: "Towel"}, {ThresholdDays: 50, Label: "Month free"}},
	},
	{
		name:   "Suspended Studio",
		apiKey: "44444444444444444444444444444444",
		status: "suspended",
		tier:   model.TierProQR,
	},
}

// seedTenants upserts the demo tenants on api_key (idempotent).
func seedTenants(dbx *sqlx.DB) error {
	const q = `
INSERT INTO tenants
    (name, api_key, device_secret_hash, status, tier, reward_schedule, closed_calendar, timezone, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name            = VALUES(name),
    status          = VALUES(status),
    tier            = VALUES(tier),
    reward_schedule = VALUES(reward_schedule),
    closed_calendar = VALUES(closed_calendar),
    updated_at      = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, t := range demoTenants {
		rewards, err := model.NewRewardSchedule(t.rewards)
		if err != nil {
			return fmt.Errorf("tenant %q rewards: %w", t.name, err)
		}
		cal, err := model.NewClosedCalendar(t.closedWeekdays, nil)
		if err != nil {
			return fmt.Errorf("tenant %q calendar: %w", t.name, err)
		}
		rewardsJSON, _ := json.Marshal(rewards)
		calJSON, _ := json.Marshal(cal)

		var device any
		if t.deviceSecret != "" {
			device = middleware.HashDeviceSecret(t.deviceSecret)
		}
		if _, err := tx.Exec(q, t.name, t.apiKey, device, t.status, t.tier.String(), rewardsJSON, calJSON, "UTC", now, now); err != nil {
			return fmt.Errorf("insert tenant %q: %w", t.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tenants: %w", err)
	}
	return nil
}

// seedIdentities gives every tenant without identities one staff member and three
// members: active, lapsed, and active with a morning-only window.
func seedIdentities(dbx *sqlx.DB) error {
	var tenants []struct {
		ID int64 `db:"id"`
	}
	if err := dbx.Select(&tenants, `
SELECT t.id
FROM tenants t
LEFT JOIN identities i ON i.tenant_id = t.id
WHERE i.id IS NULL
`); err != nil {
		return fmt.Errorf("select empty tenants: %w", err)
	}

	now := time.Now().UTC()
	for _, t := range tenants {
		tx, err := dbx.Beginx()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := seedTenantIdentities(tx, t.ID, now); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit identities: %w", err)
		}
		logger.Log.Info("seeded identities", zap.Int64("tenant_id", t.ID))
	}
	return nil
}

func seedTenantIdentities(tx *sqlx.Tx, tenantID int64, now time.Time) error {
	insertIdentity := func(name string, role model.Role, template *string) (int64, error) {
		res, err := tx.Exec(`INSERT INTO identities (tenant_id, name, role, biometric_template_id) VALUES (?, ?, ?, ?)`,
			tenantID, name, role, template)
		if err != nil {
			return 0, fmt.Errorf("insert identity %q: %w", name, err)
		}
		return res.LastInsertId()
	}
	insertEntitlement := func(identityID int64, status model.EntitlementStatus, expires time.Time, start, end *int) error {
		_, err := tx.Exec(`
INSERT INTO entitlements (identity_id, tenant_id, status, expires_at, window_start_min, window_end_min)
VALUES (?, ?, ?, ?, ?, ?)`, identityID, tenantID, status, expires, start, end)
		if err != nil {
			return fmt.Errorf("insert entitlement: %w", err)
		}
		return nil
	}

	if _, err := insertIdentity("Front Desk", model.RoleStaff, nil); err != nil {
		return err
	}

	tpl := fmt.Sprintf("tpl-%d-1", tenantID)
	active, err := insertIdentity("Ana Activa", model.RoleMember, &tpl)
	if err != nil {
		return err
	}
	if err := insertEntitlement(active, model.EntitlementActive, now.AddDate(0, 1, 0), nil, nil); err != nil {
		return err
	}

	lapsed, err := insertIdentity("Luis Vencido", model.RoleMember, nil)
	if err != nil {
		return err
	}
	if err := insertEntitlement(lapsed, model.EntitlementExpired, now.AddDate(0, 0, -3), nil, nil); err != nil {
		return err
	}

	morning, err := insertIdentity("Marta Mañanas", model.RoleMember, nil)
	if err != nil {
		return err
	}
	start, end := 6*60, 12*60
	return insertEntitlement(morning, model.EntitlementActive, now.AddDate(0, 1, 0), &start, &end)
}
