package repository

import (
	"context"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
)

// MySQLStore composes the sqlx repositories into a Store.
type MySQLStore struct {
	db           *sqlx.DB
	tenants      TenantsRepository
	identities   IdentitiesRepository
	entitlements EntitlementsRepository
	entries      EntriesRepository
	rewards      RewardLedgerRepository
	outbox       OutboxRepository
}

func NewMySQLStore(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{
		db:           db,
		tenants:      NewTenantsRepository(db),
		identities:   NewIdentitiesRepository(db),
		entitlements: NewEntitlementsRepository(db),
		entries:      NewEntriesRepository(),
		rewards:      NewRewardLedgerRepository(),
		outbox:       NewOutboxRepository(db),
	}
}

var _ Store = (*MySQLStore)(nil)

func (s *MySQLStore) TenantByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error) {
	return s.tenants.GetByAPIKey(ctx, apiKey)
}

func (s *MySQLStore) TenantByDeviceSecretHash(ctx context.Context, hash string) (*model.Tenant, error) {
	return s.tenants.GetByDeviceSecretHash(ctx, hash)
}

func (s *MySQLStore) ListActiveTenants(ctx context.Context) ([]model.Tenant, error) {
	return s.tenants.ListActive(ctx)
}

func (s *MySQLStore) UpdateTenantSettings(ctx context.Context, tenantID int64, st model.TenantSettings) error {
	return s.tenants.UpdateSettings(ctx, tenantID, st)
}

func (s *MySQLStore) IdentityByID(ctx context.Context, tenantID, identityID int64) (*model.Identity, error) {
	return s.identities.Get(ctx, tenantID, identityID)
}

func (s *MySQLStore) IdentityByBiometricTemplate(ctx context.Context, tenantID int64, templateID string) (*model.Identity, error) {
	return s.identities.GetByBiometricTemplate(ctx, tenantID, templateID)
}

func (s *MySQLStore) LatestActiveEntitlement(ctx context.Context, tenantID, identityID int64, now time.Time) (*model.Entitlement, error) {
	return s.entitlements.LatestActive(ctx, tenantID, identityID, now)
}

func (s *MySQLStore) ListStreakCandidates(ctx context.Context, tenantID int64, before time.Time) ([]model.Identity, error) {
	return s.identities.ListStreakCandidates(ctx, tenantID, before)
}

func (s *MySQLStore) ResetStreak(ctx context.Context, identityID int64, expectStreak int, expectCredit time.Time) (bool, error) {
	return s.identities.ResetStreakCAS(ctx, identityID, expectStreak, expectCredit)
}

func (s *MySQLStore) SetFreezeUntil(ctx context.Context, identityID int64, until, now time.Time) (bool, error) {
	return s.identities.SetFreezeUntil(ctx, identityID, until, now)
}

func (s *MySQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return withTx(ctx, s.db, nil, func(t *sqlx.Tx) error {
		return fn(ctx, &mysqlTx{tx: t, s: s})
	})
}

type mysqlTx struct {
	tx *sqlx.Tx
	s  *MySQLStore
}

func (t *mysqlTx) LockIdentity(ctx context.Context, tenantID, identityID int64) (*model.Identity, error) {
	return t.s.identities.GetForUpdate(ctx, t.tx, tenantID, identityID)
}

func (t *mysqlTx) LastEntryAt(ctx context.Context, tenantID, identityID int64) (*time.Time, error) {
	return t.s.entries.LastEntryAt(ctx, t.tx, tenantID, identityID)
}

func (t *mysqlTx) InsertEntry(ctx context.Context, e model.EntryRecord) error {
	return t.s.entries.Insert(ctx, t.tx, e)
}

func (t *mysqlTx) UpdateIdentity(ctx context.Context, identityID int64, upd model.IdentityUpdate) error {
	return t.s.identities.UpdateCheckinState(ctx, t.tx, identityID, upd)
}

func (t *mysqlTx) InsertRewardUnlock(ctx context.Context, u RewardUnlock) (bool, error) {
	exists, err := t.s.rewards.ExistsByIdem(ctx, t.tx, u.IdempotencyKey())
	if err != nil || exists {
		return false, err
	}
	return t.s.rewards.InsertUnlock(ctx, t.tx, u)
}

func (t *mysqlTx) InsertOutbox(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	return t.s.outbox.Insert(ctx, t.tx, aggregate, aggregateID, topic, payload)
}
