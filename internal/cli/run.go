package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/arbiter/internal/control"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler until interrupted",
	Run:   runArbiter,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runArbiter(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.Build(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize arbiter", "error", err)
		os.Exit(1)
	}

	slog.Info("Arbiter starting", "config", cfgPath)

	// Start blocks until a signal cancels ctx, then shuts everything down.
	if err := app.Start(ctx); err != nil {
		slog.Error("Arbiter stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Arbiter stopped gracefully")
}
