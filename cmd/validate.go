package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetplan/app"
	"github.com/kilianp07/fleetplan/app/plugins"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and dataset and report data errors",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ds, snap, err := app.LoadDataset(cfg)
	if err != nil {
		return err
	}
	c := plugins.Available()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dataset %s: %d resources, %d activities, %d hours\n",
		ds.Name, len(ds.Input.Resources), len(ds.Input.Activities), snap.Horizon())
	fmt.Fprintf(out, "fingerprint %s\n", snap.Fingerprint())
	fmt.Fprintf(out, "targets %v\n", cfg.Sweep.ResolveTargets(ds.Targets))
	fmt.Fprintf(out, "backends: %s\n", strings.Join(c.Backends, ", "))
	fmt.Fprintf(out, "sinks: %s\n", strings.Join(c.Sinks, ", "))
	return nil
}
