package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
)

// EntriesRepository persists the append-only entry log.
type EntriesRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.EntryRecord) error
	LastEntryAt(ctx context.Context, tx *sqlx.Tx, tenantID, identityID int64) (*time.Time, error)
}

type entriesRepo struct{}

func NewEntriesRepository() EntriesRepository { return &entriesRepo{} }

func (r *entriesRepo) Insert(ctx context.Context, tx *sqlx.Tx, e model.EntryRecord) error {
	const q = `
		INSERT INTO entries
		    (id, tenant_id, identity_id, entered_at, method, class, actor_id, justification)
		VALUES
		    (?,  ?,         ?,           ?,          ?,      ?,     ?,        ?)
	`
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.TenantID, e.IdentityID, e.At.UTC(), e.Method.String(), string(e.Class), e.ActorID, e.Justification,
	)
	return err
}

// LastEntryAt reads the newest regular entry time for an identity, served by
// idx_entries_identity. Courtesy entries do not count toward replay.
func (r *entriesRepo) LastEntryAt(ctx context.Context, tx *sqlx.Tx, tenantID, identityID int64) (*time.Time, error) {
	var at time.Time
	err := tx.QueryRowxContext(ctx, `
		SELECT entered_at
		FROM entries
		WHERE tenant_id = ? AND identity_id = ? AND class = 'regular'
		ORDER BY entered_at DESC
		LIMIT 1
	`, tenantID, identityID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}
