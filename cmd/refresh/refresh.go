package refresh

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orchidlab/labpredict/internal/app"
	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
)

// Command returns a command that recomputes stored predictions
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute predicted dates of stored records",
		Long: `Recompute the predicted germination and maturation dates of stored
records. By default only records without a prediction are processed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.Refresh(cmd.Context(), all)
			for _, s := range summaries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s scanned %d, updated %d, failed %d\n",
					s.Milestone, s.Scanned, s.Updated, s.Failed)
			}
			return err
		},
	}

	if err := setupFlags(cmd, &all); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the refresh command
func setupFlags(cmd *cobra.Command, all *bool) error {
	cmd.Flags().BoolVar(all, "all", false, "Recompute every record, not only those without a prediction")
	cmd.Flags().Int("workers", 0, "Number of parallel prediction workers (default from prediction.workers)")
	cmd.Flags().Int("batch-size", 0, "Records read per batch (default from prediction.batchsize)")

	if err := conf.BindFlagKey(cmd.Flags(), "workers", "prediction.workers"); err != nil {
		return err
	}
	return conf.BindFlagKey(cmd.Flags(), "batch-size", "prediction.batchsize")
}
