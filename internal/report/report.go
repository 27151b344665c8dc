// Package report renders the on-demand profit report.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raulk/clock"

	"github.com/vietddude/arbiter/internal/core/recovery"
	"github.com/vietddude/arbiter/internal/infra/storage"
)

// NoData is printed when the window holds no profit records.
const NoData = "No profit data available for the specified period."

// ErrorSource supplies the error-count table appended to the report.
type ErrorSource func() []recovery.Record

// Builder assembles profit reports.
type Builder struct {
	profits storage.ProfitRepository
	errors  ErrorSource
	clock   clock.Clock
}

// NewBuilder creates a report builder. errors may be nil.
func NewBuilder(profits storage.ProfitRepository, errors ErrorSource) *Builder {
	return &Builder{profits: profits, errors: errors, clock: clock.New()}
}

// SetClock replaces the time source used to compute the window.
func (b *Builder) SetClock(c clock.Clock) {
	b.clock = c
}

// Since returns the start of a window covering the last days days, aligned to UTC midnight.
func Since(now time.Time, days int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
}

// Build renders totals and a per-day breakdown for the last days days,
// followed by the error report.
func (b *Builder) Build(ctx context.Context, days int) (string, error) {
	if days < 0 {
		return "", fmt.Errorf("invalid report window: %d days", days)
	}
	since := Since(b.clock.Now(), days)

	totals, err := b.profits.Totals(ctx, since)
	if err != nil {
		return "", fmt.Errorf("failed to load profit totals: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Profit Report for Last %d Days\n", days)
	sb.WriteString(strings.Repeat("=", 80) + "\n\n")

	if totals.Orders == 0 {
		sb.WriteString(NoData + "\n")
	} else {
		daily, err := b.profits.Daily(ctx, since)
		if err != nil {
			return "", fmt.Errorf("failed to load daily profit: %w", err)
		}

		fmt.Fprintf(&sb, "Total Orders: %d\n", totals.Orders)
		fmt.Fprintf(&sb, "Total Cost: $%.2f\n", totals.Cost)
		fmt.Fprintf(&sb, "Total Revenue: $%.2f\n", totals.Revenue)
		fmt.Fprintf(&sb, "Total Marketplace Fees: $%.2f\n", totals.MarketplaceFee)
		fmt.Fprintf(&sb, "Total Payment Fees: $%.2f\n", totals.PaymentFee)
		fmt.Fprintf(&sb, "Total Profit: $%.2f\n", totals.Profit)
		if totals.Revenue > 0 {
			fmt.Fprintf(&sb, "Overall Profit Margin: %.2f%%\n", totals.Margin())
		}

		sb.WriteString("\nDaily Breakdown:\n")
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		fmt.Fprintf(&sb, "%-12s %-8s %-12s %-12s %-12s %-12s %-8s\n",
			"Date", "Orders", "Cost", "Revenue", "Fees", "Profit", "Margin")
		sb.WriteString(strings.Repeat("-", 80) + "\n")

		for _, d := range daily {
			fmt.Fprintf(&sb, "%-12s %-8d $%-11.2f $%-11.2f $%-11.2f $%-11.2f %-7.2f%%\n",
				d.Day, d.Orders, d.Cost, d.Revenue, d.Fees(), d.Profit, d.Margin())
		}
	}

	var records []recovery.Record
	if b.errors != nil {
		records = b.errors()
	}
	sb.WriteString("\n\n")
	sb.WriteString(recovery.FormatReport(records))

	return sb.String(), nil
}
