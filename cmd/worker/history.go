package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Copy entry events from Kafka into the ClickHouse history table",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("history")

	chDB, err := openClickHouse(cfg)
	if err != nil {
		return err
	}
	defer chDB.Close()

	groupID := cfg.History.GroupID
	if groupID == "" {
		groupID = "nexogym-history"
	}
	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Notify.Topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		FromBeginning:  true,
	})
	defer consumer.Close()

	w := worker.NewHistoryWriter(consumer, repository.NewCHEntriesRepository(chDB), log)
	if cfg.History.BatchSize > 0 {
		w.BatchSize = cfg.History.BatchSize
	}
	if cfg.History.FlushInterval > 0 {
		w.FlushInterval = cfg.History.FlushInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> history writer started",
		zap.String("topic", cfg.Notify.Topic),
		zap.String("group", groupID),
		zap.Int("batch", w.BatchSize),
		zap.Duration("flush", w.FlushInterval),
	)
	return w.Run(ctx)
}
