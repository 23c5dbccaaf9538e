package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"go.uber.org/zap"
)

// EntryWriter persists a batch of entries to the history store.
type EntryWriter interface {
	InsertBatch(ctx context.Context, rows []model.EntryRecord) error
}

// HistoryWriter copies entry events into the ClickHouse history table.
// Offsets are committed only after the batch holding them is written, so a crash
// replays events instead of losing them.
type HistoryWriter struct {
	Consumer MessageSource
	Writer   EntryWriter
	Log      *zap.Logger

	BatchSize     int
	FlushInterval time.Duration
	RetryBackoff  time.Duration

	rows []model.EntryRecord
	msgs []kafka.Message
}

func NewHistoryWriter(consumer MessageSource, writer EntryWriter, log *zap.Logger) *HistoryWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryWriter{
		Consumer:      consumer,
		Writer:        writer,
		Log:           log,
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		RetryBackoff:  time.Second,
	}
}

// Run blocks until ctx is cancelled. Unflushed events stay uncommitted on exit.
func (w *HistoryWriter) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.FlushInterval <= 0 {
		w.FlushInterval = 2 * time.Second
	}

	deadline := time.Now().Add(w.FlushInterval)
	for {
		fctx, cancel := context.WithDeadline(ctx, deadline)
		m, err := w.Consumer.Fetch(fctx)
		cancel()

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			if err := w.flush(ctx); err != nil {
				return nil
			}
			deadline = time.Now().Add(w.FlushInterval)
			continue
		case err != nil:
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}

		w.add(m)
		if len(w.msgs) >= w.BatchSize {
			if err := w.flush(ctx); err != nil {
				return nil
			}
			deadline = time.Now().Add(w.FlushInterval)
		}
	}
}

func (w *HistoryWriter) add(m kafka.Message) {
	w.msgs = append(w.msgs, m)

	var ev model.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" || ev.TenantID == 0 {
		// poison: committed with the batch, never written
		w.Log.Warn("bad event payload", zap.Int64("offset", m.Offset), zap.Error(err))
		metrics.HistoryRowsTotal.WithLabelValues("skipped").Inc()
		return
	}
	w.rows = append(w.rows, entryFromEvent(ev))
}

// flush writes the buffered rows, retrying until it succeeds or ctx ends, then
// commits every buffered offset.
func (w *HistoryWriter) flush(ctx context.Context) error {
	if len(w.msgs) == 0 {
		return nil
	}
	if len(w.rows) > 0 {
		for {
			err := w.Writer.InsertBatch(ctx, w.rows)
			if err == nil {
				break
			}
			w.Log.Warn("history batch failed", zap.Int("rows", len(w.rows)), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.RetryBackoff):
			}
		}
		metrics.HistoryRowsTotal.WithLabelValues("written").Add(float64(len(w.rows)))
	}

	if err := w.Consumer.Commit(ctx, w.msgs...); err != nil {
		w.Log.Warn("kafka commit failed", zap.Error(err))
	}
	w.rows = w.rows[:0]
	w.msgs = w.msgs[:0]
	return nil
}

func entryFromEvent(ev model.Event) model.EntryRecord {
	method, _ := model.ParseAccessMethod(ev.Method)
	e := model.EntryRecord{
		ID:         ev.ID,
		TenantID:   ev.TenantID,
		IdentityID: ev.IdentityID,
		At:         ev.At,
		Method:     method,
		Class:      model.ClassRegular,
	}
	if ev.Kind == model.EventCourtesy {
		e.Class = model.ClassCourtesy
		if ev.ActorID != 0 {
			actor := ev.ActorID
			e.ActorID = &actor
		}
		if ev.Justification != "" {
			j := ev.Justification
			e.Justification = &j
		}
	}
	return e
}
