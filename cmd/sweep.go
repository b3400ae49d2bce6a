package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetplan/app"
	"github.com/kilianp07/fleetplan/infra/logger"
)

var sweepTargets []float64

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Solve the model for every target and print the sensitivity table",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().Float64SliceVarP(&sweepTargets, "targets", "t", nil, "targets to sweep, overriding the configuration")
	sweepCmd.Flags().StringP("format", "f", "", "output format: table, csv or json")
	sweepCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(sweepTargets) > 0 {
		cfg.Sweep.Targets = sweepTargets
	}
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		cfg.Output.Format = f
	}
	if o, _ := cmd.Flags().GetString("output"); o != "" {
		cfg.Output.Path = o
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	_, err = svc.Sweep(cmd.Context(), cmd.OutOrStdout())
	return err
}
