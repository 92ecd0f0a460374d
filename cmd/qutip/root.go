package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qutip",
	Short: "qutip runs and aggregates stochastic quantum trajectory batches",
	Long: `qutip drives ensembles of Monte-Carlo trajectories of a damped
two-level system and reports the aggregated statistics: mean and standard
deviation of the recorded observables, averaged states and collapse rates.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "qutip.yaml", "Batch configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")
}
