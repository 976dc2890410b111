package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var trainSamples int

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Collect samples, train the model and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		samples := trainSamples
		if samples <= 0 {
			samples = rt.cfg.Pipeline.BootstrapSamples
		}

		res, err := rt.pipeline.Retrain(cmd.Context(), samples)
		if err != nil {
			rt.logger.Error("training failed", slog.Any("error", err))
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trained on %d samples, schema %s, model %s (%s)\n",
			samples, rt.detector.Schema(), res.Path, res.Outcome)
		if !res.OK() {
			return fmt.Errorf("persist model: %w", res.Err)
		}
		return nil
	},
}

func init() {
	trainCmd.Flags().IntVar(&trainSamples, "samples", 0, "Number of samples to collect (defaults to pipeline.bootstrapSamples)")
}
