package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/repository/memory"
	"github.com/herwingx/nexogym-sub000/internal/service/outbox"
)

type fakePublisher struct {
	sent   []kafka.Message
	failAt int // 1-based; 0 never fails
}

func (p *fakePublisher) Publish(_ context.Context, msgs ...kafka.Message) error {
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func seed(t *testing.T, store *memory.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		payload, _ := json.Marshal(model.Event{ID: id, Kind: model.EventCourtesy})
		err := store.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			return tx.InsertOutbox(ctx, "entry", id, "nexogym.audit", payload)
		})
		require.NoError(t, err)
	}
}

func TestRelay_PublishesInOrderAndMarks(t *testing.T) {
	store := memory.New()
	seed(t, store, "a", "b", "c")
	pub := &fakePublisher{}

	n, err := outbox.NewRelay(store, pub, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, pub.sent, 3)
	assert.Equal(t, "entry:a", string(pub.sent[0].Key))
	assert.Equal(t, "entry:c", string(pub.sent[2].Key))
	assert.Equal(t, "nexogym.audit", pub.sent[1].Topic)

	pending, _ := store.ListPending(context.Background(), 0)
	assert.Empty(t, pending)

	n, err = outbox.NewRelay(store, pub, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_StopsAtFirstFailure(t *testing.T) {
	store := memory.New()
	seed(t, store, "a", "b", "c")
	pub := &fakePublisher{failAt: 2}

	n, err := outbox.NewRelay(store, pub, nil).RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pending, _ := store.ListPending(context.Background(), 0)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].AggregateID)
	assert.Equal(t, 1, pending[0].Attempts)
}

func TestRelay_BatchSize(t *testing.T) {
	store := memory.New()
	seed(t, store, "a", "b", "c")
	r := outbox.NewRelay(store, &fakePublisher{}, nil)
	r.BatchSize = 2

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRelay_RunDrainsUntilCancelled(t *testing.T) {
	store := memory.New()
	seed(t, store, "a", "b", "c")
	pub := &fakePublisher{}
	r := outbox.NewRelay(store, pub, nil)
	r.BatchSize = 1
	r.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		pending, _ := store.ListPending(context.Background(), 0)
		return len(pending) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
