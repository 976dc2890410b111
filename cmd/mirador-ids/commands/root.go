package commands

import (
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mirador-ids",
	Short: "mirador-ids - anomaly-based intrusion detection for containers",
	Long: `mirador-ids collects container log and resource signals, learns a baseline
with an isolation forest and raises alerts for observations that deviate from it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (defaults to $MIRADOR_IDS_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(detectCmd)
}
