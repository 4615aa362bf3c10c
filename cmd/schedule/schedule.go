package schedule

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/orchidlab/labpredict/internal/app"
	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Command returns a command that runs refresh and remind on the configured cron spec
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the prediction refresh and reminder batch on a schedule",
		Long: `Run the prediction refresh followed by the reminder batch whenever the
reminders.schedule cron expression fires, until interrupted. The expression
is evaluated in reminders.timezone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			return Run(cmd.Context(), Options{
				Spec:     settings.Reminders.Schedule,
				Location: settings.Reminders.Location(),
				RunNow:   runNow,
			}, batch(a))
		},
	}

	cmd.Flags().String("cron", "", "Cron expression overriding reminders.schedule")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run one batch immediately on startup")
	if err := conf.BindFlagKey(cmd.Flags(), "cron", "reminders.schedule"); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// Options configures the daemon loop
type Options struct {
	Spec     string
	Location *time.Location
	RunNow   bool
	Logger   logger.Logger
}

// Job is one scheduled unit of work
type Job func(ctx context.Context)

// Run executes job on every tick of opts.Spec until ctx is done, then waits
// for a running job to finish. Overlapping ticks are skipped.
func Run(ctx context.Context, opts Options, job Job) error {
	log := opts.Logger
	if log == nil {
		log = GetLogger()
	}
	if opts.Spec == "" {
		return errors.Newf("no schedule configured, set reminders.schedule").
			Component("schedule").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	clog := cronLogger{log: log}
	c := cron.New(
		cron.WithParser(conf.CronParser),
		cron.WithLocation(opts.Location),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc(opts.Spec, func() { job(ctx) }); err != nil {
		return errors.New(err).
			Component("schedule").
			Category(errors.CategoryConfiguration).
			Context("spec", opts.Spec).
			Build()
	}

	if opts.RunNow {
		job(ctx)
	}

	c.Start()
	log.Info("scheduler started",
		logger.String("spec", opts.Spec),
		logger.String("timezone", opts.Location.String()),
		logger.Time("next_run", c.Entries()[0].Next))

	<-ctx.Done()
	log.Info("scheduler stopping, waiting for a running batch")
	<-c.Stop().Done()
	return nil
}

// batch refreshes missing predictions, then sends due reminders. A failed
// refresh is logged and the reminder batch still runs over what is stored.
func batch(a *app.App) Job {
	return func(ctx context.Context) {
		log := GetLogger()
		start := time.Now()

		if _, err := a.Refresh(ctx, false); err != nil {
			log.Error("prediction refresh failed", logger.Error(err))
		}
		sum, err := a.Remind(ctx, reminder.RunOptions{})
		totals := sum.Totals()
		fields := []logger.Field{
			logger.String("run_id", sum.RunID),
			logger.Int("sent", totals.Sent),
			logger.Int("already_notified", totals.AlreadyNotified),
			logger.Int("failed", totals.Failed),
			logger.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			log.Error("reminder batch failed", append(fields, logger.Error(err))...)
			return
		}
		log.Info("scheduled batch finished", fields...)
	}
}
