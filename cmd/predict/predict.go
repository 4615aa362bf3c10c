package predict

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/prediction"
)

// Command returns a command that estimates one milestone date
func Command(settings *conf.Settings) *cobra.Command {
	var (
		milestone string
		start     string
		asJSON    bool
		req       estimate.Request
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Estimate a germination or maturation date",
		Long: `Estimate when a sowing germinates or a pollination reaches maturity.

Examples:
  # Germination of a known species
  labpredict predict --milestone germination --start 2024-01-15 --genus Cattleya --species aurantiaca --climate I

  # Maturation of a hybrid cross, as JSON
  labpredict predict --milestone maturation --start 2024-01-15 --genus Cattleya --type HYBRID --location "V-0 M-1A P-A" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := estimate.ParseMilestone(milestone)
			if err != nil {
				return err
			}
			startDate, err := time.Parse(time.DateOnly, start)
			if err != nil {
				return fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", start)
			}
			req.Milestone = m
			req.StartDate = startDate

			svc, err := prediction.Load(prediction.Options{
				GerminationModel: settings.Models.Germination,
				MaturationModel:  settings.Models.Maturation,
				StatsPath:        settings.Models.Stats,
			})
			if err != nil {
				return err
			}

			res, err := svc.Estimate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), &res)
			return nil
		},
	}

	cmd.Flags().StringVar(&milestone, "milestone", string(estimate.Germination), "Milestone to estimate: germination or maturation")
	cmd.Flags().StringVar(&start, "start", "", "Sowing or pollination date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.Species, "species", "", "Species epithet or full name")
	cmd.Flags().StringVar(&req.Genus, "genus", "", "Genus")
	cmd.Flags().StringVar(&req.Climate, "climate", "", "Climate code (C, W, I, IW, IC)")
	cmd.Flags().StringVar(&req.Location, "location", "", "Location of the capsule, maturation only")
	cmd.Flags().StringVar(&req.PollinationType, "type", "", "Pollination type: SELF, SIBLING or HYBRID")
	cmd.Flags().StringVar(&req.Responsible, "responsible", "", "Responsible person, maturation only")
	cmd.Flags().Float64Var(&req.Quantity, "quantity", 0, "Quantity of flasks or capsules")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func printResult(w io.Writer, res *estimate.Result) {
	fmt.Fprintf(w, "Milestone:      %s\n", res.Milestone)
	fmt.Fprintf(w, "Estimated date: %s (%d days)\n", res.EstimatedDate.Format(time.DateOnly), res.DaysEstimated)
	fmt.Fprintf(w, "Confidence:     %.1f%% (%s)\n", res.Confidence, res.ConfidenceLevel)
	fmt.Fprintf(w, "Method:         %s (%s)\n", res.Method, res.ModelName)
	if res.Source != "" {
		fmt.Fprintf(w, "Source:         %s, %d records\n", res.Source, res.SupportCount)
	}
	if res.Variability > 0 {
		fmt.Fprintf(w, "Variability:    ±%d days\n", res.Variability)
	}
	if res.UnseenCategories > 0 {
		fmt.Fprintf(w, "Unseen values:  %d\n", res.UnseenCategories)
	}
}
