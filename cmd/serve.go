package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/access"
	httpSrv "github.com/herwingx/nexogym-sub000/internal/http"
	"github.com/herwingx/nexogym-sub000/internal/kafka"
	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/notify"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
	"github.com/herwingx/nexogym-sub000/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Log
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		shutdownTracing, err := tracing.Setup(cmd.Context(), tracing.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()

		mysqlDB, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer mysqlDB.Close()

		redisClient, err := openRedis(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := openClickHouse(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = chDB.Close()
		}()

		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer func() { _ = producer.Close() }()

		store := repository.NewMySQLStore(mysqlDB)
		qr := access.NewQRTokenCodec(cfg.QR.Secret, cfg.QR.Issuer, cfg.QR.TTL)

		svc := checkin.New(store, replayGuard(cfg, redisClient), checkin.Config{
			GraceFreeze:       cfg.Checkin.GraceFreeze,
			ReactivationGrace: cfg.Streak.ReactivationGrace,
			NotifyTimeout:     cfg.Checkin.NotifyTimeout,
			AuditTopic:        cfg.Checkin.AuditTopic,
		},
			checkin.WithNotifier(notify.NewKafkaPublisher(producer, cfg.Notify.Topic)),
			checkin.WithQRCodec(qr),
			checkin.WithLogger(log.Named("checkin")),
		)

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Store:      store,
			History:    repository.NewCHEntriesRepository(chDB),
			Checkin:    svc,
			Reconciler: reconcile.New(store, cfg.Streak.ReactivationGrace, log.Named("reconcile")),
			QR:         qr,
			Redis:      redisClient,
			Log:        log,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
