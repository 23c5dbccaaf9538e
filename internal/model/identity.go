package model

import "time"

type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
)

// Identity is a person who may enter a tenant's facility.
type Identity struct {
	ID                  int64      `db:"id"`
	TenantID            int64      `db:"tenant_id"`
	Name                string     `db:"name"`
	Role                Role       `db:"role"`
	CurrentStreak       int        `db:"current_streak"`
	LastEntryAt         *time.Time `db:"last_entry_at"`
	LastCreditDate      *time.Time `db:"last_credit_date"` // civil date at UTC midnight
	StreakFreezeUntil   *time.Time `db:"streak_freeze_until"`
	BiometricTemplateID *string    `db:"biometric_template_id"`
	DeletedAt           *time.Time `db:"deleted_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (i *Identity) IsStaff() bool   { return i.Role == RoleStaff }
func (i *Identity) IsDeleted() bool { return i.DeletedAt != nil }

// IdentityUpdate is the engine's write to an identity at check-in time.
// Streak fields are applied only when StreakChanged is set.
type IdentityUpdate struct {
	LastEntryAt    time.Time
	StreakChanged  bool
	CurrentStreak  int
	LastCreditDate *time.Time
	ClearFreeze    bool
}
