package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/jmoiron/sqlx"
)

// EntryFilter narrows an entry history query. Zero times are open bounds.
type EntryFilter struct {
	IdentityID int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// CHEntriesRepository lists entry history from ClickHouse.
type CHEntriesRepository interface {
	ListByTenant(ctx context.Context, tenantID int64, f EntryFilter) ([]model.EntryRecord, error)
}

// CHEntriesWriter appends entries to the history table. Re-inserting an id is
// harmless: ReplacingMergeTree keeps one row per (tenant_id, entered_at, id).
type CHEntriesWriter interface {
	InsertBatch(ctx context.Context, rows []model.EntryRecord) error
}

type CHEntriesRepositoryImpl struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEntriesRepository(ch *sqlx.DB) *CHEntriesRepositoryImpl {
	return &CHEntriesRepositoryImpl{ch: ch}
}

var (
	_ CHEntriesRepository = (*CHEntriesRepositoryImpl)(nil)
	_ CHEntriesWriter     = (*CHEntriesRepositoryImpl)(nil)
)

// InsertBatch sends rows as one ClickHouse block.
func (r *CHEntriesRepositoryImpl) InsertBatch(ctx context.Context, rows []model.EntryRecord) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO nexogym.entries
			(id, tenant_id, identity_id, entered_at, method, class, actor_id, justification)
	`)
	if err != nil {
		return fmt.Errorf("prepare history batch: %w", err)
	}
	defer stmt.Close()

	for _, e := range rows {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.TenantID, e.IdentityID, e.At.UTC(),
			string(e.Method), string(e.Class), e.ActorID, e.Justification,
		); err != nil {
			return fmt.Errorf("append history row %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send history batch: %w", err)
	}
	return nil
}

func (r *CHEntriesRepositoryImpl) ListByTenant(ctx context.Context, tenantID int64, f EntryFilter) ([]model.EntryRecord, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, tenant_id, identity_id, entered_at, method, class, actor_id, justification
		FROM nexogym.entries
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if f.IdentityID > 0 {
		q += " AND identity_id = ?"
		args = append(args, f.IdentityID)
	}
	if !f.From.IsZero() {
		q += " AND entered_at >= ?"
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		q += " AND entered_at < ?"
		args = append(args, f.To.UTC())
	}

	q += " ORDER BY entered_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.EntryRecord
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
