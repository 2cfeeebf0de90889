package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/payment"
	paymentPostgres "github.com/frahmantamala/refund-management/internal/payment/postgres"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var clearData bool

var seedPayments = []struct {
	Reference string
	Total     string
}{
	{"INV-123", "150.00"},
	{"INV-124", "100.00"},
	{"INV-125", "2500000.00"},
	{"INV-126", "49.90"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample payments",
	Long:  `Seed the database with paid sample payments for development and testing purposes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		lg := setupLogger(cfg)

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		if clearData {
			if _, err := db.ExecContext(ctx, "DELETE FROM refunds"); err != nil {
				return fmt.Errorf("failed to clear refunds: %w", err)
			}
			if _, err := db.ExecContext(ctx, "DELETE FROM payments"); err != nil {
				return fmt.Errorf("failed to clear payments: %w", err)
			}
			lg.Info("cleared refunds and payments")
		}

		repo := paymentPostgres.NewPaymentRepository(db)
		for _, s := range seedPayments {
			existing, err := repo.GetByReference(ctx, s.Reference)
			if err == nil {
				lg.Info("payment already exists", "reference", s.Reference, "payment_id", existing.ID)
				continue
			}
			if !errors.Is(err, internal.ErrPaymentNotFound) {
				return err
			}

			p := &payment.Payment{
				Reference: s.Reference,
				Total:     decimal.RequireFromString(s.Total),
				Status:    payment.StatusPaid,
			}
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
			lg.Info("seeded payment", "reference", p.Reference, "payment_id", p.ID, "total", p.Total.String())
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
