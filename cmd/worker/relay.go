package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/service/outbox"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish audit outbox rows to Kafka",
	RunE:  runRelay,
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("relay")

	dbx, err := openMySQL(cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, RequiredAcks: -1})
	defer func() { _ = producer.Close() }()

	r := outbox.NewRelay(repository.NewOutboxRepository(dbx), producer, log)
	if cfg.Outbox.BatchSize > 0 {
		r.BatchSize = cfg.Outbox.BatchSize
	}
	if cfg.Outbox.PollInterval > 0 {
		r.Interval = cfg.Outbox.PollInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> outbox relay started", zap.Int("batch", r.BatchSize), zap.Duration("interval", r.Interval))
	return r.Run(ctx)
}
