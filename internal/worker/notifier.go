package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"go.uber.org/zap"
)

// MessageSource is the consumer side the notifier reads from.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// EventSink delivers one decoded event.
type EventSink interface {
	Notify(ctx context.Context, ev model.Event) error
}

// Notifier:
// - fetches check-in events from Kafka,
// - hands each one to the webhook dispatcher,
// - commits regardless of the delivery outcome (notifications are best effort).
type Notifier struct {
	Consumer MessageSource
	Sink     EventSink
	Log      *zap.Logger

	Workers        int           // number of goroutines delivering events
	DeliverTimeout time.Duration // per-event bound
}

func NewNotifier(consumer MessageSource, sink EventSink, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		Consumer:       consumer,
		Sink:           sink,
		Log:            log,
		Workers:        16,
		DeliverTimeout: 5 * time.Second,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *Notifier) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 16
	}
	if w.DeliverTimeout <= 0 {
		w.DeliverTimeout = 5 * time.Second
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				time.Sleep(200 * time.Millisecond)
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	for i := 0; i < w.Workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			w.runProcessor(ctx, msgCh)
		}()
	}
	for i := 0; i < w.Workers; i++ {
		<-done
	}
	return nil
}

func (w *Notifier) runProcessor(ctx context.Context, in <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m)
		}
	}
}

func (w *Notifier) processOne(ctx context.Context, m kafka.Message) {
	var ev model.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
		// poison: commit and skip
		w.Log.Warn("bad event payload", zap.Int64("offset", m.Offset), zap.Error(err))
		w.commit(ctx, m)
		return
	}

	dctx, cancel := context.WithTimeout(ctx, w.DeliverTimeout)
	err := w.Sink.Notify(dctx, ev)
	cancel()
	if err != nil {
		w.Log.Warn("event delivery failed",
			zap.String("entry_id", ev.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}

	w.commit(ctx, m)
}

func (w *Notifier) commit(ctx context.Context, m kafka.Message) {
	if err := w.Consumer.Commit(ctx, m); err != nil {
		w.Log.Warn("kafka commit failed", zap.Error(err))
	}
}
