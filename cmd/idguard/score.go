package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/idguard/internal/cli"
	"github.com/Veraticus/idguard/internal/engine"
	"github.com/Veraticus/idguard/internal/model"
	"github.com/Veraticus/idguard/internal/warehouse"
)

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score customers with the trained model",
		Long: `Load the stored transform and model, run the scoring query once and print
the predicted validity of every returned customer.`,
		RunE: runScore,
	}

	cmd.Flags().Bool("invalid-only", false, "Only print customers predicted invalid")
	cmd.Flags().String("model", "", "Model artifact path (overrides artifacts.model_path)")
	cmd.Flags().String("transform", "", "Transform artifact path (overrides artifacts.transform_path)")

	return cmd
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("model"); p != "" {
		cfg.Artifacts.ModelPath = p
	}
	if p, _ := cmd.Flags().GetString("transform"); p != "" {
		cfg.Artifacts.TransformPath = p
	}
	invalidOnly, _ := cmd.Flags().GetBool("invalid-only")

	e := engine.New(sessionOpener(cfg.Warehouse), warehouse.FileTemplates{Dir: cfg.Extraction.TemplatesDir}, nil, *cfg)
	scores, err := e.Score(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([]cli.Score, 0, len(scores))
	flagged := 0
	for _, s := range scores {
		if s.Label == model.LabelInvalid {
			flagged++
		} else if invalidOnly {
			continue
		}
		rows = append(rows, cli.Score{CustomerID: s.CustomerID, Probability: s.Probability, Predicted: s.Label})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderScores(rows))
	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d of %d customers predicted invalid", flagged, len(scores))))
	return nil
}
