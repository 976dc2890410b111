package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var detectCount int

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run detection cycles from the command line",
	Long: `Restore (or bootstrap) the model, then collect and classify one or more
observations, printing each prediction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		ctx := cmd.Context()
		if err := rt.pipeline.Bootstrap(ctx, rt.cfg.Pipeline.BootstrapSamples); err != nil {
			rt.logger.Error("bootstrap failed", slog.Any("error", err))
			return err
		}

		out := cmd.OutOrStdout()
		for i := 0; i < max(detectCount, 1); i++ {
			result, err := rt.pipeline.RunCycle(ctx)
			if err != nil {
				return err
			}
			prediction := "Normal"
			if result.Detection.Anomalous() {
				prediction = "Anomaly"
			}
			features, _ := json.Marshal(result.Detection.Features)
			fmt.Fprintf(out, "Prediction: %s score=%.4f features=%s\n", prediction, result.Detection.Score, features)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().IntVar(&detectCount, "count", 1, "Number of observations to classify")
}
