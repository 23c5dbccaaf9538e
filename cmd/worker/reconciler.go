package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
	"github.com/herwingx/nexogym-sub000/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcilerCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Run the nightly streak reconciler on a daily schedule",
	RunE:  runReconciler,
}

func runReconciler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("reconciler")

	loc := time.UTC
	if cfg.Reconcile.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Reconcile.Timezone); err != nil {
			return fmt.Errorf("reconcile timezone: %w", err)
		}
	}

	dbx, err := openMySQL(cfg)
	if err != nil {
		return err
	}
	defer dbx.Close()

	svc := reconcile.New(repository.NewMySQLStore(dbx), cfg.Streak.ReactivationGrace, log)
	sched, err := worker.NewReconcileScheduler(svc, cfg.Reconcile.RunAt, loc, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> reconciler started", zap.String("run_at", cfg.Reconcile.RunAt), zap.String("tz", loc.String()))
	return sched.Run(ctx)
}
