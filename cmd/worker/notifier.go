package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/notify"
	"github.com/herwingx/nexogym-sub000/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Deliver check-in events from Kafka to the configured webhooks",
	RunE:  runNotifier,
}

func runNotifier(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("notifier")

	// 2) webhooks → dispatcher
	var sinks []notify.Sink
	for _, pc := range cfg.Providers {
		if !pc.Enabled || strings.TrimSpace(pc.URL) == "" {
			continue
		}
		sinks = append(sinks, notify.NewWebhookSink(notify.WebhookConfig{
			Name:          pc.Name,
			URL:           pc.URL,
			Token:         pc.Token,
			TimeoutMs:     pc.TimeoutMs,
			FailThreshold: pc.Breaker.FailThreshold,
			OpenForMs:     pc.Breaker.OpenForMs,
		}))
	}
	if len(sinks) == 0 {
		return fmt.Errorf("no providers enabled in config")
	}
	disp := notify.NewDispatcher(sinks, cfg.Notify.MaxRetryAttempts)

	// 3) kafka consumer
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "nexogym-notifier"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Notify.Topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewNotifier(consumer, disp, log)

	// tune knobs
	if cfg.Notify.WorkerCount > 0 {
		w.Workers = cfg.Notify.WorkerCount
	}
	if cfg.Notify.DeliverTimeout > 0 {
		w.DeliverTimeout = cfg.Notify.DeliverTimeout
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> notifier started",
		zap.String("topic", cfg.Notify.Topic),
		zap.String("group", groupID),
		zap.Int("sinks", len(sinks)),
		zap.Int("workers", w.Workers),
	)

	return w.Run(ctx)
}
