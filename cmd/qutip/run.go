package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/perjlieb/qutip/internal/cli"
	"github.com/perjlieb/qutip/internal/logging"
	"github.com/perjlieb/qutip/pkg/runner"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trajectory batch and print the aggregate report",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		pretty, _ := cmd.Flags().GetBool("pretty")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := logging.New(level, jsonLogs)

		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			return err
		}

		var metrics *runner.Metrics
		if metricsAddr != "" {
			reg := prometheus.NewRegistry()
			metrics = runner.NewMetrics(reg)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				logger.Info("metrics listening", "addr", metricsAddr)
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
		}

		agg, err := cli.RunBatch(cmd.Context(), cfg, logger, metrics)
		if err != nil {
			return fmt.Errorf("batch failed: %w", err)
		}

		report, err := cli.Report(agg)
		if err != nil {
			return fmt.Errorf("building report: %w", err)
		}
		if pretty {
			rendered, err := cli.RenderMarkdown(report)
			if err != nil {
				return err
			}
			report = rendered
		}
		fmt.Fprintln(os.Stdout, report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("pretty", false, "Render the report for the terminal")
	runCmd.Flags().String("metrics-addr", "", "Expose prometheus metrics on this address")
}
