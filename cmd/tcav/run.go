package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"tcav-panel/internal/appstate"
	"tcav-panel/internal/database"
	"tcav-panel/internal/interpreter"
	"tcav-panel/internal/subsets"
	"tcav-panel/internal/tcav"
	"tcav-panel/pkg/api"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	runModel   string
	runDataset string
	runSubset  string
	runLayer   string
	runClass   string
	runOutput  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute TCAV scores for one subset or all of them",
	Long: `Compute TCAV scores for the selected subset ("all" for every subset).

Layer and class default to the first gradient layer and the first class the
model declares. Only scores with a p-value below the significance cutoff are
printed.`,
	RunE: runTCAV,
}

func init() {
	runCmd.Flags().StringVar(&runModel, "model", "", "model name, overrides MODEL")
	runCmd.Flags().StringVar(&runDataset, "dataset", "", "dataset name, overrides DATASET")
	runCmd.Flags().StringVar(&runSubset, "subset", tcav.AllSubsets, "subset to use as concept set")
	runCmd.Flags().StringVar(&runLayer, "layer", "", "gradient layer to explain")
	runCmd.Flags().StringVar(&runClass, "class", "", "class to explain")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "table", "output format: table or yaml")
}

func runTCAV(c *cobra.Command, args []string) error {
	if runOutput != "table" && runOutput != "yaml" {
		return fmt.Errorf("unknown output format '%s'", runOutput)
	}

	model, dataset := cfg.Model, cfg.Dataset
	if runModel != "" {
		model = runModel
	}
	if runDataset != "" {
		dataset = runDataset
	}
	if model == "" || dataset == "" {
		return fmt.Errorf("model and dataset must be set with --model/--dataset or MODEL/DATASET")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	client := interpreter.NewClient(cfg.InterpreterURL, cfg.InterpreterTimeout)
	spec, err := client.ModelSpec(ctx, model)
	if err != nil {
		return err
	}
	if !tcav.ShouldDisplay(spec) {
		return fmt.Errorf("model '%s' needs embedding, gradient and multiclass prediction outputs for tcav", model)
	}

	panel, err := newPanel(spec, tcav.Deps{
		Subsets:     subsets.NewStore(db),
		State:       appstate.New(db, model, dataset),
		Interpreter: client,
	}, api.Selection{Subset: runSubset, Layer: runLayer, Class: runClass})
	if err != nil {
		return err
	}

	view := panel.View(ctx)
	if !view.CanRun {
		return fmt.Errorf("no subset selected by '%s' has at least %d members", runSubset, tcav.MinSubsetSize)
	}

	var bar *progressbar.ProgressBar
	unsubscribe := panel.Subscribe(func(v api.PanelView) {
		if v.Progress.Total == 0 {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(v.Progress.Total,
				progressbar.OptionSetDescription("running tcav"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(v.Progress.Done)
	})
	defer unsubscribe()

	if err := panel.Run(ctx); err != nil {
		return err
	}

	sel := panel.Selection()
	fmt.Fprintf(os.Stderr, "model=%s dataset=%s layer=%s class=%s\n", model, dataset, sel.Layer, sel.Class)
	return writeScores(os.Stdout, runOutput, panel.Scores())
}

// newPanel builds a controller with sel applied, rejecting a layer or class
// the model does not have.
func newPanel(spec api.ModelSpec, deps tcav.Deps, sel api.Selection) (*tcav.Controller, error) {
	panel := tcav.NewController(spec, deps)
	if err := panel.Select(sel); err != nil {
		return nil, err
	}
	return panel, nil
}
