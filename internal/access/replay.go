package access

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
)

// The biometric reader path gets a wider window than generic check-ins. These are
// independent settings; keep them separate even when configured to the same value.
const (
	DefaultMemberCooldown    = 2 * time.Hour
	DefaultStaffCooldown     = 2 * time.Hour
	DefaultBiometricCooldown = 4 * time.Hour
)

// Cooldowns holds the anti-passback windows per caller context.
type Cooldowns struct {
	Member    time.Duration
	Staff     time.Duration
	Biometric time.Duration
}

func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Member:    DefaultMemberCooldown,
		Staff:     DefaultStaffCooldown,
		Biometric: DefaultBiometricCooldown,
	}
}

// For picks the cooldown for a role and access method. The biometric path wins over role.
func (c Cooldowns) For(role model.Role, method model.AccessMethod) time.Duration {
	switch {
	case method == model.MethodBiometric:
		return c.Biometric
	case role == model.RoleStaff:
		return c.Staff
	default:
		return c.Member
	}
}

func (c Cooldowns) longest() time.Duration {
	m := c.Member
	if c.Staff > m {
		m = c.Staff
	}
	if c.Biometric > m {
		m = c.Biometric
	}
	return m
}

// ReplayBlockedError is returned when an identity tries to enter again too soon.
type ReplayBlockedError struct {
	Remaining time.Duration
}

func (e *ReplayBlockedError) Error() string {
	return fmt.Sprintf("replay blocked: retry in %s", e.Remaining.Round(time.Second))
}

// Is enables errors.Is(err, &ReplayBlockedError{}).
func (e *ReplayBlockedError) Is(target error) bool {
	_, ok := target.(*ReplayBlockedError)
	return ok
}

// CheckReplay allows an entry once at least cooldown has passed since last.
// An attempt exactly at the boundary is allowed.
func CheckReplay(last *time.Time, now time.Time, cooldown time.Duration) error {
	if last == nil || cooldown <= 0 {
		return nil
	}
	elapsed := now.Sub(*last)
	if elapsed >= cooldown {
		return nil
	}
	return &ReplayBlockedError{Remaining: cooldown - elapsed}
}

// ReplayStore remembers the last admission per key with a TTL. It may be shared across
// instances (redis) or local (in-process cache).
type ReplayStore interface {
	LastSeen(ctx context.Context, key string) (time.Time, bool, error)
	MarkSeen(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

func ReplayKey(tenantID, identityID int64) string {
	return strconv.FormatInt(tenantID, 10) + ":" + strconv.FormatInt(identityID, 10)
}

// ReplayGuard applies the cooldowns. The store only short-circuits obvious replays
// before a transaction is opened; the locked identity row remains authoritative.
type ReplayGuard struct {
	store     ReplayStore
	cooldowns Cooldowns
}

func NewReplayGuard(store ReplayStore, cooldowns Cooldowns) *ReplayGuard {
	return &ReplayGuard{store: store, cooldowns: cooldowns}
}

func (g *ReplayGuard) Cooldowns() Cooldowns { return g.cooldowns }

// Precheck consults the store. Store errors are returned to the caller, which should
// fall through to Check rather than deny.
func (g *ReplayGuard) Precheck(ctx context.Context, tenantID, identityID int64, cooldown time.Duration, now time.Time) error {
	if g.store == nil {
		return nil
	}
	at, ok, err := g.store.LastSeen(ctx, ReplayKey(tenantID, identityID))
	if err != nil || !ok {
		return err
	}
	return CheckReplay(&at, now, cooldown)
}

// Check is CheckReplay against the authoritative last-entry timestamp.
func (g *ReplayGuard) Check(last *time.Time, now time.Time, cooldown time.Duration) error {
	return CheckReplay(last, now, cooldown)
}

// Remember records a committed admission in the store.
func (g *ReplayGuard) Remember(ctx context.Context, tenantID, identityID int64, at time.Time) error {
	if g.store == nil {
		return nil
	}
	return g.store.MarkSeen(ctx, ReplayKey(tenantID, identityID), at, g.cooldowns.longest())
}
