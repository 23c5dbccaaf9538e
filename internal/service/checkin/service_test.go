package checkin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository/memory"
	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/herwingx/nexogym-sub000/internal/streak"
)

// Wednesday 2026-03-11, mid-morning UTC.
var t0 = time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	events chan model.Event
	err    error
}

func newRecorder() *recordingNotifier {
	return &recordingNotifier{events: make(chan model.Event, 32)}
}

func (n *recordingNotifier) Notify(_ context.Context, ev model.Event) error {
	n.events <- ev
	return n.err
}

func (n *recordingNotifier) next(t *testing.T) model.Event {
	t.Helper()
	select {
	case ev := <-n.events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
		return model.Event{}
	}
}

type fixture struct {
	store  *memory.Store
	svc    *checkin.Service
	clock  *clock
	notes  *recordingNotifier
	tenant model.Tenant
}

func newFixture(t *testing.T, tier model.Tier) *fixture {
	t.Helper()
	rewards, err := model.NewRewardSchedule([]model.RewardTier{
		{ThresholdDays: 7, Label: "Smoothie"},
		{ThresholdDays: 30, Label: "Free month"},
	})
	require.NoError(t, err)

	f := &fixture{
		store: memory.New(),
		clock: &clock{t: t0},
		notes: newRecorder(),
	}
	f.tenant = f.store.AddTenant(model.Tenant{Name: "Downtown", APIKey: "key", Tier: tier, Rewards: rewards})

	guard := access.NewReplayGuard(access.NewMemoryReplayStore(time.Minute), access.DefaultCooldowns())
	f.svc = checkin.New(f.store, guard, checkin.Config{},
		checkin.WithClock(f.clock.Now),
		checkin.WithNotifier(f.notes),
		checkin.WithQRCodec(access.NewQRTokenCodec("secret", "nexogym", time.Minute)),
	)
	return f
}

func (f *fixture) member(streakDays int, lastCredit *time.Time) model.Identity {
	i := f.store.AddIdentity(model.Identity{
		TenantID:       f.tenant.ID,
		Name:           "member",
		CurrentStreak:  streakDays,
		LastCreditDate: lastCredit,
	})
	f.store.AddEntitlement(model.Entitlement{
		TenantID:   f.tenant.ID,
		IdentityID: i.ID,
		Status:     model.EntitlementActive,
		ExpiresAt:  t0.AddDate(0, 1, 0),
	})
	return i
}

func (f *fixture) staff() model.Identity {
	return f.store.AddIdentity(model.Identity{TenantID: f.tenant.ID, Name: "coach", Role: model.RoleStaff})
}

func daysBefore(n int) *time.Time {
	d := streak.Day(t0, time.UTC).AddDate(0, 0, -n)
	return &d
}

func TestCheckIn_MissingTenant(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	_, err := f.svc.CheckIn(context.Background(), nil, checkin.Request{IdentityID: 1})
	assert.ErrorIs(t, err, checkin.ErrMissingTenantContext)
}

func TestCheckIn_CapabilityDisabled(t *testing.T) {
	f := newFixture(t, model.TierBasic)
	m := f.member(0, nil)

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID, Method: model.MethodQR})
	var capErr *checkin.CapabilityDisabledError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, model.CapQRAccess, capErr.Capability)
	assert.Empty(t, f.store.Entries(m.ID))
}

func TestCheckIn_UnknownOrForeignIdentity(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	other := f.store.AddTenant(model.Tenant{Name: "Uptown", APIKey: "other", Tier: model.TierProQR})
	foreign := f.store.AddIdentity(model.Identity{TenantID: other.ID})

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: 999})
	assert.ErrorIs(t, err, checkin.ErrIdentityNotFound)

	_, err = f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: foreign.ID})
	assert.ErrorIs(t, err, checkin.ErrIdentityNotFound)
}

func TestCheckIn_FirstEntryCreditsOne(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(0, nil)

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, 1, res.NewStreak)
	require.NotNil(t, res.NextReward)
	assert.Equal(t, 7, res.NextReward.ThresholdDays)

	got, _ := f.store.Identity(m.ID)
	assert.Equal(t, 1, got.CurrentStreak)
	require.NotNil(t, got.LastCreditDate)
	assert.Equal(t, streak.Day(t0, time.UTC), *got.LastCreditDate)
	require.NotNil(t, got.LastEntryAt)
	assert.Equal(t, t0, *got.LastEntryAt)

	entries := f.store.Entries(m.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ClassRegular, entries[0].Class)
	assert.Equal(t, res.EntryID, entries[0].ID)

	ev := f.notes.next(t)
	assert.Equal(t, model.EventVisit, ev.Kind)
	assert.Equal(t, res.EntryID, ev.ID)
}

func TestCheckIn_RewardUnlockedAtExactThreshold(t *testing.T) {
	// scenario (e)
	f := newFixture(t, model.TierProQR)
	m := f.member(6, daysBefore(1))

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, 7, res.NewStreak)
	assert.True(t, res.RewardUnlocked)
	assert.Equal(t, "Smoothie", res.RewardLabel)
	require.NotNil(t, res.NextReward)
	assert.Equal(t, 30, res.NextReward.ThresholdDays)

	unlocks := f.store.RewardUnlocks()
	require.Len(t, unlocks, 1)
	assert.Equal(t, "Smoothie", unlocks[0].Label)

	ev := f.notes.next(t)
	assert.Equal(t, model.EventReward, ev.Kind)
	assert.Equal(t, "Smoothie", ev.RewardLabel)
}

func TestCheckIn_NoRewardPastThreshold(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(7, daysBefore(1))

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, 8, res.NewStreak)
	assert.False(t, res.RewardUnlocked)
	assert.Empty(t, res.RewardLabel)
}

func TestCheckIn_GapResets(t *testing.T) {
	// scenario (d)
	f := newFixture(t, model.TierProQR)
	m := f.member(12, daysBefore(3))

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)
	assert.True(t, res.Credited)
}

func TestCheckIn_ReplayBlockedThenAllowedAtBoundary(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(3, daysBefore(1))
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)

	f.clock.Advance(90 * time.Minute)
	_, err = f.svc.CheckIn(ctx, &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, &checkin.ReplayBlockedError{})
	remaining, ok := checkin.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, remaining)
	assert.Len(t, f.store.Entries(m.ID), 1)

	f.clock.Advance(30 * time.Minute)
	res, err := f.svc.CheckIn(ctx, &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	// same civil day: admitted but not credited again
	assert.False(t, res.Credited)
	assert.Equal(t, 4, res.NewStreak)
	assert.Len(t, f.store.Entries(m.ID), 2)
}

func TestCheckIn_NoEntitlementAppliesGraceFreeze(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.store.AddIdentity(model.Identity{TenantID: f.tenant.ID, CurrentStreak: 9, LastCreditDate: daysBefore(1)})

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, checkin.ErrNoActiveEntitlement)
	assert.Empty(t, f.store.Entries(m.ID))

	got, _ := f.store.Identity(m.ID)
	assert.Equal(t, 9, got.CurrentStreak)
	require.NotNil(t, got.StreakFreezeUntil)
	assert.Equal(t, t0.Add(checkin.DefaultGraceFreeze), *got.StreakFreezeUntil)

	// a freeze already in force is left alone
	f.clock.Advance(time.Hour)
	_, err = f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, checkin.ErrNoActiveEntitlement)
	got, _ = f.store.Identity(m.ID)
	assert.Equal(t, t0.Add(checkin.DefaultGraceFreeze), *got.StreakFreezeUntil)
}

func TestCheckIn_NoEntitlementWithoutGamificationLeavesIdentity(t *testing.T) {
	f := newFixture(t, model.TierBasic)
	m := f.store.AddIdentity(model.Identity{TenantID: f.tenant.ID, CurrentStreak: 2, LastCreditDate: daysBefore(1)})

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, checkin.ErrNoActiveEntitlement)
	got, _ := f.store.Identity(m.ID)
	assert.Nil(t, got.StreakFreezeUntil)
}

func TestCheckIn_OutsideWindowWritesNothing(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.store.AddIdentity(model.Identity{TenantID: f.tenant.ID, CurrentStreak: 2, LastCreditDate: daysBefore(1)})
	start, end := 18*60, 21*60
	f.store.AddEntitlement(model.Entitlement{
		TenantID:       f.tenant.ID,
		IdentityID:     m.ID,
		Status:         model.EntitlementActive,
		ExpiresAt:      t0.AddDate(0, 1, 0),
		WindowStartMin: &start,
		WindowEndMin:   &end,
	})

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, checkin.ErrOutsideAllowedWindow)
	assert.Empty(t, f.store.Entries(m.ID))
	got, _ := f.store.Identity(m.ID)
	assert.Equal(t, 2, got.CurrentStreak)
	assert.Nil(t, got.LastEntryAt)
}

func TestCheckIn_GamificationOffSkipsStreak(t *testing.T) {
	f := newFixture(t, model.TierBasic)
	m := f.member(5, daysBefore(1))

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, 5, res.NewStreak)
	assert.Nil(t, res.NextReward)

	got, _ := f.store.Identity(m.ID)
	assert.Equal(t, *daysBefore(1), *got.LastCreditDate)
	require.NotNil(t, got.LastEntryAt)
}

func TestCheckIn_StaffBypassesEntitlementAndStreak(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	s := f.staff()
	ctx := context.Background()

	res, err := f.svc.CheckIn(ctx, &f.tenant, checkin.Request{IdentityID: s.ID})
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Zero(t, res.NewStreak)

	got, _ := f.store.Identity(s.ID)
	assert.Zero(t, got.CurrentStreak)
	assert.Nil(t, got.LastCreditDate)
	require.NotNil(t, got.LastEntryAt)

	f.clock.Advance(time.Hour)
	_, err = f.svc.CheckIn(ctx, &f.tenant, checkin.Request{IdentityID: s.ID})
	assert.ErrorIs(t, err, &checkin.ReplayBlockedError{})
	assert.Len(t, f.store.Entries(s.ID), 1)
}

func TestCheckIn_ReactivationGraceSpendsActiveFreeze(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	reactivated := t0.Add(-time.Hour)
	f.tenant.LastReactivatedAt = &reactivated
	m := f.member(6, daysBefore(4))
	freeze := t0.Add(time.Hour)
	stored, _ := f.store.Identity(m.ID)
	stored.StreakFreezeUntil = &freeze
	f.store.AddIdentity(stored)

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, 6, res.NewStreak)
	got, _ := f.store.Identity(m.ID)
	assert.Nil(t, got.StreakFreezeUntil, "the freeze covered this gap and cannot cover another")
}

func TestCheckIn_NewestEntitlementGovernsWindow(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.store.AddIdentity(model.Identity{TenantID: f.tenant.ID})
	f.store.AddEntitlement(model.Entitlement{
		TenantID:   f.tenant.ID,
		IdentityID: m.ID,
		Status:     model.EntitlementActive,
		ExpiresAt:  t0.AddDate(1, 0, 0),
		CreatedAt:  t0.AddDate(0, -6, 0),
	})
	// the newer plan expires sooner and only admits evenings
	start, end := 18*60, 21*60
	f.store.AddEntitlement(model.Entitlement{
		TenantID:       f.tenant.ID,
		IdentityID:     m.ID,
		Status:         model.EntitlementActive,
		ExpiresAt:      t0.AddDate(0, 1, 0),
		CreatedAt:      t0.AddDate(0, 0, -2),
		WindowStartMin: &start,
		WindowEndMin:   &end,
	})

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, checkin.ErrOutsideAllowedWindow)
	assert.Empty(t, f.store.Entries(m.ID))
}

func TestCheckIn_QRTokenIgnoresClaimedMethod(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	f.tenant.Overrides = model.CapabilityOverrides{"qrAccess": false}
	m := f.member(0, nil)
	codec := access.NewQRTokenCodec("secret", "nexogym", time.Minute)
	token, _, err := codec.Issue(f.tenant.ID, m.ID, t0)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{QRToken: token, Method: model.MethodManual})
	var capErr *checkin.CapabilityDisabledError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, model.CapQRAccess, capErr.Capability)
	assert.Empty(t, f.store.Entries(m.ID))
}

func TestCheckIn_QRTokenExpiresOnServiceClock(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(0, nil)
	codec := access.NewQRTokenCodec("secret", "nexogym", time.Minute)
	token, _, err := codec.Issue(f.tenant.ID, m.ID, t0)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{QRToken: token})
	assert.ErrorIs(t, err, checkin.ErrInvalidQRToken)
	assert.Empty(t, f.store.Entries(m.ID))
}

func TestCheckIn_QRTokenResolvesIdentity(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(0, nil)
	codec := access.NewQRTokenCodec("secret", "nexogym", time.Minute)
	token, _, err := codec.Issue(f.tenant.ID, m.ID, t0)
	require.NoError(t, err)

	res, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{QRToken: token, Method: model.MethodQR})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewStreak)
	require.Len(t, f.store.Entries(m.ID), 1)
	assert.Equal(t, model.MethodQR, f.store.Entries(m.ID)[0].Method)

	_, err = f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{QRToken: "garbage", Method: model.MethodQR})
	assert.ErrorIs(t, err, checkin.ErrInvalidQRToken)
}

func TestCheckIn_PersistenceFailureWritesNothing(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(4, daysBefore(1))
	f.store.InsertEntryErr = errors.New("disk full")

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.ErrorIs(t, err, checkin.ErrInternal)
	assert.Equal(t, checkin.ReasonInternal, checkin.ReasonCode(err))

	got, _ := f.store.Identity(m.ID)
	assert.Equal(t, 4, got.CurrentStreak)
	assert.Nil(t, got.LastEntryAt)
	assert.Empty(t, f.store.Entries(m.ID))
}

func TestCheckIn_NotificationFailureDoesNotFailCheckIn(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	f.notes.err = errors.New("broker down")
	m := f.member(0, nil)

	_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
	require.NoError(t, err)
	f.notes.next(t)
}

func TestCheckIn_ConcurrentAttemptsAdmitOnce(t *testing.T) {
	f := newFixture(t, model.TierProQR)
	m := f.member(2, daysBefore(1))

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		blocked int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CheckIn(context.Background(), &f.tenant, checkin.Request{IdentityID: m.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, &checkin.ReplayBlockedError{}):
				blocked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, blocked)
	assert.Len(t, f.store.Entries(m.ID), 1)
	got, _ := f.store.Identity(m.ID)
	assert.Equal(t, 3, got.CurrentStreak)
}
