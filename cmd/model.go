package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetplan/app"
	"github.com/kilianp07/fleetplan/core/planner"
	"github.com/kilianp07/fleetplan/pkg/export"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Build the model of one target and write it in LP or MPS format",
	RunE:  runModel,
}

func init() {
	modelCmd.Flags().Float64P("target", "t", 1, "end-of-horizon target in (0,1]")
	modelCmd.Flags().String("formulation", "", "start-indexed or big-m (default from configuration)")
	modelCmd.Flags().String("format", "lp", "lp or mps")
	modelCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(modelCmd)
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, _ := cmd.Flags().GetFloat64("target")
	if f, _ := cmd.Flags().GetString("formulation"); f != "" {
		cfg.Planner.Formulation = planner.Formulation(f)
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "lp" && format != "mps" {
		return fmt.Errorf("unknown model format %q", format)
	}

	p, err := app.BuildModel(cfg, target)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if format == "mps" {
		err = export.WriteMPS(w, p.Model, export.MPSOptions{})
	} else {
		err = export.WriteLP(w, p.Model)
	}
	if err != nil {
		return err
	}

	st := p.Model.Stats()
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d variables (%d binary, %d integer), %d constraints, %d nonzeros\n",
		p.Model.Name, st.Vars, st.Binaries, st.Integers, st.Constraints, st.Nonzeros)
	return err
}
