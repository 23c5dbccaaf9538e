package worker

import "github.com/spf13/cobra"

// NewWorkerCmd returns "worker" with one subcommand per background process. Each runs
// until SIGINT or SIGTERM and is deployed separately from serve.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a background worker: notifier, reconciler, relay or history",
		Long: `Background processes around the check-in service.

  notifier    entry events from Kafka to the configured webhooks
  reconciler  daily streak sweep at reconcile.run_at
  relay       audit outbox rows from MySQL to Kafka
  history     entry events from Kafka into ClickHouse`,
	}
	cmd.AddCommand(notifierCmd, reconcilerCmd, relayCmd, historyCmd)
	return cmd
}
