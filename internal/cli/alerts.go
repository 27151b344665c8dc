package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/arbiter/internal/infra/redis"
)

var alertsLimit int

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show the most recent critical alerts",
	Run:   runAlerts,
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "number of alerts to show")
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Redis.URL == "" {
		slog.Error("Alerts require redis.url")
		os.Exit(1)
	}

	rc, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rc.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alerts, err := redisclient.NewAlertFeed(rc, cfg.Alerts.FeedSize).Recent(ctx, alertsLimit)
	if err != nil {
		slog.Error("Failed to load alerts", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TIME\tCOMPONENT\tOPERATION\tMESSAGE")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Time.Format(time.RFC3339), a.Component, a.Operation, a.Message)
	}
	_ = w.Flush()
}
