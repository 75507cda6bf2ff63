package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/idguard/internal/cli"
	"github.com/Veraticus/idguard/internal/engine"
	"github.com/Veraticus/idguard/internal/warehouse"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Extract labelled customers and train the identifier classifier",
		Long: `Extract valid and then invalid customers from the warehouse in batches,
fingerprint their identifiers, fit the feature transform and the random forest,
evaluate on a holdout split and write both artifacts.

Batches that keep failing are skipped and reported. Use --require-complete to
fail the run instead of training on partial data.`,
		RunE: runTrain,
	}

	cmd.Flags().Int("batch-size", 0, "Rows per extraction batch (overrides extraction.batch_size)")
	cmd.Flags().Bool("require-complete", false, "Fail if any extraction batch was skipped")
	cmd.Flags().String("model", "", "Model artifact path (overrides artifacts.model_path)")
	cmd.Flags().String("transform", "", "Transform artifact path (overrides artifacts.transform_path)")
	cmd.Flags().Bool("no-progress", false, "Disable progress bars")

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if n, _ := cmd.Flags().GetInt("batch-size"); n > 0 {
		cfg.Extraction.BatchSize = n
	}
	if require, _ := cmd.Flags().GetBool("require-complete"); require {
		cfg.Extraction.RequireAll = true
	}
	if p, _ := cmd.Flags().GetString("model"); p != "" {
		cfg.Artifacts.ModelPath = p
	}
	if p, _ := cmd.Flags().GetString("transform"); p != "" {
		cfg.Artifacts.TransformPath = p
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var opts []engine.Option
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		opts = append(opts, engine.WithProgress(progressBars(cmd.ErrOrStderr())))
	}

	e := engine.New(
		sessionOpener(cfg.Warehouse),
		warehouse.FileTemplates{Dir: cfg.Extraction.TemplatesDir},
		store,
		*cfg,
		opts...,
	)

	run, trainErr := e.Train(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRun(run))
	return trainErr
}
