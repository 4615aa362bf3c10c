package remind

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchidlab/labpredict/internal/app"
	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Command returns a command that runs one reminder batch
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		opts  reminder.RunOptions
		today string
	)

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send due follow-up reminders",
		Long: `Evaluate every germination and pollination record and create the
reminders that are due: one when the configured number of days has passed
since sowing or pollination, one when the predicted date is near. Each
reminder is sent at most once per record.

Examples:
  # Inspect what would be sent
  labpredict remind --dry-run --verbose

  # Evaluate as of a given day with a 7-day threshold
  labpredict remind --today 2024-03-01 --threshold-days 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if today != "" {
				t, err := time.Parse(time.DateOnly, today)
				if err != nil {
					return fmt.Errorf("invalid --today %q, expected YYYY-MM-DD", today)
				}
				opts.Today = t
			}
			if opts.ThresholdDays < 0 {
				return fmt.Errorf("--threshold-days must not be negative")
			}

			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.Remind(cmd.Context(), opts)
			PrintSummary(cmd.OutOrStdout(), &sum)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.ThresholdDays, "threshold-days", 0, "Days after the baseline date and before the predicted date (default from reminders.offsetdays and reminders.leaddays)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Evaluate and report without creating notifications")
	cmd.Flags().BoolVar(&opts.Verbose, "verbose", false, "Log every candidate decision")
	cmd.Flags().StringVar(&today, "today", "", "Evaluate as of this day (YYYY-MM-DD) instead of the current date")

	return cmd
}

// PrintSummary writes a per-category table of a batch run
func PrintSummary(w io.Writer, sum *reminder.Summary) {
	mode := "sent"
	if sum.DryRun {
		mode = "dry run, nothing sent"
	}
	fmt.Fprintf(w, "Reminder run %s for %s (%s)\n", sum.RunID, sum.Today.Format(time.DateOnly), mode)
	fmt.Fprintf(w, "%-24s %10s %6s %6s %8s %8s %7s\n", "CATEGORY", "CANDIDATES", "DUE", "SENT", "ALREADY", "SKIPPED", "FAILED")

	rows := append(sum.Categories[:len(sum.Categories):len(sum.Categories)], sum.Totals())
	for _, c := range rows {
		sent := c.Sent
		if sum.DryRun {
			sent = len(c.Planned)
		}
		fmt.Fprintf(w, "%-24s %10d %6d %6d %8d %8d %7d\n",
			c.Category, c.Candidates, c.Due, sent, c.AlreadyNotified, c.Skipped, c.Failed)
	}

	if !sum.DryRun {
		return
	}
	for _, c := range sum.Categories {
		for _, p := range c.Planned {
			fmt.Fprintf(w, "  would send %-22s %-12s to %-12s (%d days)\n", c.Category, p.Code, p.Recipient, p.Days)
		}
	}
}
