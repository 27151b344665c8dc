package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/arbiter/internal/core/recovery"
	"github.com/vietddude/arbiter/internal/infra/storage/postgres"
	"github.com/vietddude/arbiter/internal/report"
)

var reportDays int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the profit report for the last N days",
	Run:   runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 30, "number of days to cover")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("Report requires database.url")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	var errs report.ErrorSource
	if snap, closeFn := openSnapshot(cfg); snap != nil {
		defer closeFn()
		errs = func() []recovery.Record {
			records, err := snap.Load(ctx)
			if err != nil {
				slog.Warn("Failed to load error snapshot", "error", err)
			}
			return records
		}
	}

	out, err := report.NewBuilder(db.Repositories().Profits, errs).Build(ctx, reportDays)
	if err != nil {
		slog.Error("Failed to build report", "error", err)
		os.Exit(1)
	}
	fmt.Print(out)
}
