package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/herwingx/nexogym-sub000/internal/logger"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run the streak reconciler once and print per-tenant summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dbx, err := openMySQL(cfg)
		if err != nil {
			return err
		}
		defer dbx.Close()

		svc := reconcile.New(repository.NewMySQLStore(dbx), cfg.Streak.ReactivationGrace, logger.Named("reconcile"))
		sums, runErr := svc.Run(cmd.Context())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sums); err != nil {
			return fmt.Errorf("print summary: %w", err)
		}
		return runErr
	},
}
