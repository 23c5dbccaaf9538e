package repository

import (
	"context"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
)

// Store is the persistence boundary of the check-in engine. Lookups return (nil, nil)
// when the row does not exist.
type Store interface {
	TenantByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
	TenantByDeviceSecretHash(ctx context.Context, hash string) (*model.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]model.Tenant, error)
	UpdateTenantSettings(ctx context.Context, tenantID int64, s model.TenantSettings) error

	IdentityByID(ctx context.Context, tenantID, identityID int64) (*model.Identity, error)
	IdentityByBiometricTemplate(ctx context.Context, tenantID int64, templateID string) (*model.Identity, error)

	LatestActiveEntitlement(ctx context.Context, tenantID, identityID int64, now time.Time) (*model.Entitlement, error)

	// ListStreakCandidates returns live members with a positive streak whose last
	// credit date is before the given civil date.
	ListStreakCandidates(ctx context.Context, tenantID int64, before time.Time) ([]model.Identity, error)
	// ResetStreak zeroes a streak only if it still holds the values the caller saw.
	ResetStreak(ctx context.Context, identityID int64, expectStreak int, expectCredit time.Time) (bool, error)

	// SetFreezeUntil sets the grace-freeze marker unless one is already in force at now.
	SetFreezeUntil(ctx context.Context, identityID int64, until, now time.Time) (bool, error)

	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of work of one admission. Everything written through a Tx commits or
// rolls back together.
type Tx interface {
	// LockIdentity reads the identity row and holds it until the transaction ends,
	// serializing concurrent admissions of the same identity.
	LockIdentity(ctx context.Context, tenantID, identityID int64) (*model.Identity, error)
	LastEntryAt(ctx context.Context, tenantID, identityID int64) (*time.Time, error)
	InsertEntry(ctx context.Context, e model.EntryRecord) error
	UpdateIdentity(ctx context.Context, identityID int64, upd model.IdentityUpdate) error
	InsertRewardUnlock(ctx context.Context, u RewardUnlock) (bool, error)
	InsertOutbox(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error
}

// RewardUnlock is one row of the reward ledger.
type RewardUnlock struct {
	TenantID      int64
	IdentityID    int64
	ThresholdDays int
	Label         string
	EntryID       string
	CreditDate    time.Time
}

// IdempotencyKey makes an unlock unique per identity, threshold and credit day.
func (u RewardUnlock) IdempotencyKey() string {
	return "reward-" + itoa(u.IdentityID) + "-" + itoa(int64(u.ThresholdDays)) + "-" + u.CreditDate.Format("20060102")
}
