// Package memory is an in-process repository.Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository"
)

// Store keeps every table in maps. Transactions are serialized, which stands in for
// the identity row lock of the SQL store.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	nextID       int64
	tenants      map[int64]model.Tenant
	identities   map[int64]model.Identity
	entitlements []model.Entitlement
	entries      []model.EntryRecord
	unlocks      map[string]repository.RewardUnlock
	outbox       []model.OutboxEvent

	// InsertEntryErr, when set, fails every entry insert and rolls the tx back.
	InsertEntryErr error
}

func New() *Store {
	return &Store{
		tenants:    make(map[int64]model.Tenant),
		identities: make(map[int64]model.Identity),
		unlocks:    make(map[string]repository.RewardUnlock),
	}
}

var (
	_ repository.Store               = (*Store)(nil)
	_ repository.CHEntriesRepository = (*Store)(nil)
)

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddTenant stores t and returns it with an ID assigned when it had none.
func (s *Store) AddTenant(t model.Tenant) model.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	if t.Status == "" {
		t.Status = model.TenantStatusActive
	}
	s.tenants[t.ID] = t
	return t
}

func (s *Store) AddIdentity(i model.Identity) model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == 0 {
		i.ID = s.id()
	}
	if i.Role == "" {
		i.Role = model.RoleMember
	}
	s.identities[i.ID] = i
	return i
}

func (s *Store) AddEntitlement(e model.Entitlement) model.Entitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	}
	s.entitlements = append(s.entitlements, e)
	return e
}

// AddEntry appends an entry outside any check-in, for seeding history.
func (s *Store) AddEntry(e model.EntryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Identity returns a copy of the stored identity.
func (s *Store) Identity(id int64) (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identities[id]
	return i, ok
}

func (s *Store) Tenant(id int64) (model.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	return t, ok
}

// Entries returns the entry log of one identity in insertion order.
func (s *Store) Entries(identityID int64) []model.EntryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.EntryRecord
	for _, e := range s.entries {
		if e.IdentityID == identityID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) RewardUnlocks() []repository.RewardUnlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.RewardUnlock, 0, len(s.unlocks))
	for _, u := range s.unlocks {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdempotencyKey() < out[j].IdempotencyKey() })
	return out
}

func (s *Store) Outbox() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.OutboxEvent(nil), s.outbox...)
}

func (s *Store) findTenant(match func(model.Tenant) bool) *model.Tenant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if match(t) {
			t := t
			return &t
		}
	}
	return nil
}

func (s *Store) TenantByAPIKey(_ context.Context, apiKey string) (*model.Tenant, error) {
	return s.findTenant(func(t model.Tenant) bool { return t.APIKey == apiKey }), nil
}

func (s *Store) TenantByDeviceSecretHash(_ context.Context, hash string) (*model.Tenant, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findTenant(func(t model.Tenant) bool { return t.DeviceSecretHash == hash }), nil
}

func (s *Store) ListActiveTenants(_ context.Context) ([]model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Tenant
	for _, t := range s.tenants {
		if t.Active() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTenantSettings(_ context.Context, tenantID int64, st model.TenantSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil
	}
	overrides := make(model.CapabilityOverrides, len(st.Overrides))
	for c, v := range st.Overrides {
		overrides[string(c)] = v
	}
	t.Overrides = overrides
	t.Rewards = st.Rewards
	t.Calendar = st.Calendar
	t.Timezone = st.Timezone
	s.tenants[tenantID] = t
	return nil
}

func (s *Store) identity(tenantID, identityID int64) *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identities[identityID]
	if !ok || i.TenantID != tenantID || i.IsDeleted() {
		return nil
	}
	return &i
}

func (s *Store) IdentityByID(_ context.Context, tenantID, identityID int64) (*model.Identity, error) {
	return s.identity(tenantID, identityID), nil
}

func (s *Store) IdentityByBiometricTemplate(_ context.Context, tenantID int64, templateID string) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.identities {
		if i.TenantID == tenantID && !i.IsDeleted() && i.BiometricTemplateID != nil && *i.BiometricTemplateID == templateID {
			i := i
			return &i, nil
		}
	}
	return nil, nil
}

func (s *Store) LatestActiveEntitlement(_ context.Context, tenantID, identityID int64, now time.Time) (*model.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.Entitlement
	for _, e := range s.entitlements {
		if e.TenantID != tenantID || e.IdentityID != identityID {
			continue
		}
		if e.Status != model.EntitlementActive || !e.ExpiresAt.After(now) {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) || (e.CreatedAt.Equal(best.CreatedAt) && e.ID > best.ID) {
			e := e
			best = &e
		}
	}
	return best, nil
}

func (s *Store) ListStreakCandidates(_ context.Context, tenantID int64, before time.Time) ([]model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Identity
	for _, i := range s.identities {
		if i.TenantID != tenantID || i.IsDeleted() || i.IsStaff() || i.CurrentStreak <= 0 {
			continue
		}
		if i.LastCreditDate == nil || !i.LastCreditDate.Before(before) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *Store) ResetStreak(_ context.Context, identityID int64, expectStreak int, expectCredit time.Time) (bool, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.identities[identityID]
	if !ok || i.CurrentStreak != expectStreak || i.LastCreditDate == nil || !i.LastCreditDate.Equal(expectCredit) {
		return false, nil
	}
	i.CurrentStreak = 0
	s.identities[identityID] = i
	return true, nil
}

func (s *Store) SetFreezeUntil(_ context.Context, identityID int64, until, now time.Time) (bool, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.identities[identityID]
	if !ok || i.CurrentStreak <= 0 {
		return false, nil
	}
	if i.StreakFreezeUntil != nil && !i.StreakFreezeUntil.Before(now) {
		return false, nil
	}
	u := until
	i.StreakFreezeUntil = &u
	s.identities[identityID] = i
	return true, nil
}

// ListByTenant serves entry history the way the ClickHouse repository does.
func (s *Store) ListByTenant(_ context.Context, tenantID int64, f repository.EntryFilter) ([]model.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []model.EntryRecord
	for _, e := range s.entries {
		if e.TenantID != tenantID || (f.IdentityID > 0 && e.IdentityID != f.IdentityID) {
			continue
		}
		if !f.From.IsZero() && e.At.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.At.Before(f.To) {
			continue
		}
		rows = append(rows, e)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range tx.ops {
		op()
	}
	return nil
}

// memTx buffers writes until commit.
type memTx struct {
	s   *Store
	ops []func()
}

func (t *memTx) LockIdentity(_ context.Context, tenantID, identityID int64) (*model.Identity, error) {
	return t.s.identity(tenantID, identityID), nil
}

func (t *memTx) LastEntryAt(_ context.Context, tenantID, identityID int64) (*time.Time, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var last *time.Time
	for _, e := range t.s.entries {
		if e.TenantID == tenantID && e.IdentityID == identityID && e.Class != model.ClassCourtesy && (last == nil || e.At.After(*last)) {
			at := e.At
			last = &at
		}
	}
	return last, nil
}

func (t *memTx) InsertEntry(_ context.Context, e model.EntryRecord) error {
	if t.s.InsertEntryErr != nil {
		return t.s.InsertEntryErr
	}
	t.ops = append(t.ops, func() { t.s.entries = append(t.s.entries, e) })
	return nil
}

func (t *memTx) UpdateIdentity(_ context.Context, identityID int64, upd model.IdentityUpdate) error {
	t.ops = append(t.ops, func() {
		i, ok := t.s.identities[identityID]
		if !ok {
			return
		}
		at := upd.LastEntryAt
		i.LastEntryAt = &at
		if upd.StreakChanged {
			i.CurrentStreak = upd.CurrentStreak
			i.LastCreditDate = upd.LastCreditDate
			if upd.ClearFreeze {
				i.StreakFreezeUntil = nil
			}
		}
		t.s.identities[identityID] = i
	})
	return nil
}

func (t *memTx) InsertRewardUnlock(_ context.Context, u repository.RewardUnlock) (bool, error) {
	key := u.IdempotencyKey()
	t.s.mu.RLock()
	_, exists := t.s.unlocks[key]
	t.s.mu.RUnlock()
	if exists {
		return false, nil
	}
	t.ops = append(t.ops, func() { t.s.unlocks[key] = u })
	return true, nil
}

func (t *memTx) InsertOutbox(_ context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	row := model.OutboxEvent{Aggregate: aggregate, AggregateID: aggregateID, Topic: topic, Payload: payload}
	t.ops = append(t.ops, func() {
		row.ID = t.s.id()
		row.CreatedAt = time.Now()
		t.s.outbox = append(t.s.outbox, row)
	})
	return nil
}

// ListPending mirrors the SQL outbox query.
func (s *Store) ListPending(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.OutboxEvent
	for _, row := range s.outbox {
		if row.PublishedAt != nil {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id && s.outbox[i].PublishedAt == nil {
			now := time.Now()
			s.outbox[i].PublishedAt = &now
		}
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Attempts++
		}
	}
	return nil
}
