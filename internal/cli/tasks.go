package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/arbiter/internal/core/config"
	"github.com/vietddude/arbiter/internal/core/recovery"
	redisclient "github.com/vietddude/arbiter/internal/infra/redis"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show error counts saved by the running daemon",
	Run:   runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	snap, closeFn := openSnapshot(cfg)
	if snap == nil {
		os.Exit(1)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := snap.Load(ctx)
	if err != nil {
		slog.Error("Failed to load error snapshot", "error", err)
		os.Exit(1)
	}
	printRecords(os.Stdout, records, cfg.ErrorHandling.MaxRetries)
}

func printRecords(out io.Writer, records []recovery.Record, maxRetries int) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "COMPONENT\tOPERATION\tERRORS\tSTATUS")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			r.Key.Component, strings.TrimPrefix(r.Key.Operation, "task_"), r.Count, recordStatus(r.Count, maxRetries))
	}
	_ = w.Flush()
}

func recordStatus(count, maxRetries int) string {
	switch {
	case count > maxRetries:
		return "critical"
	case count > 0:
		return "degraded"
	default:
		return "healthy"
	}
}

// openSnapshot connects to Redis. It returns nil, after logging why, when Redis
// is unavailable.
func openSnapshot(cfg *config.AppConfig) (*redisclient.ErrorSnapshot, func()) {
	if cfg.Redis.URL == "" {
		slog.Warn("Redis not configured, error counts unavailable")
		return nil, func() {}
	}
	rc, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		return nil, func() {}
	}
	return redisclient.NewErrorSnapshot(rc), func() { _ = rc.Close() }
}
