package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers that run outside the HTTP server.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Retry payment reconciliation for completed refunds",
	Long:  `Periodically retries the payment status write for completed refunds whose reconciliation failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startReconcileWorker()
	},
}

var (
	reconcileOnce      bool
	reconcileBatchSize int
)

func startReconcileWorker() error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	lg := deps.Logger
	defer deps.DB.Close()
	defer deps.EventBus.Wait()

	if reconcileBatchSize > 0 {
		deps.Config.Refund.Reconciliation.SweepBatchSize = reconcileBatchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if reconcileOnce {
		n, err := deps.Refunds.ReconcilePending(ctx, deps.Config.Refund.Reconciliation.SweepBatchSize)
		lg.Info("reconciliation pass finished", "reconciled", n)
		return err
	}

	manager, err := startSweeper(ctx, deps)
	if err != nil {
		return err
	}
	lg.Info("reconciliation worker is running. Press Ctrl+C to stop.",
		"interval", deps.Config.Refund.Reconciliation.SweepInterval,
		"batch_size", deps.Config.Refund.Reconciliation.SweepBatchSize)

	<-ctx.Done()
	lg.Info("received signal, shutting down reconciliation worker")
	return manager.Stop()
}

func init() {
	reconcileWorkerCmd.Flags().BoolVar(&reconcileOnce, "once", false, "run a single pass and exit")
	reconcileWorkerCmd.Flags().IntVar(&reconcileBatchSize, "batch-size", 0, "refunds per pass (overrides config)")

	workerCmd.AddCommand(reconcileWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
