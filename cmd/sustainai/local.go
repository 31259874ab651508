package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"sustainai/internal/common"
	"sustainai/internal/features"
	"sustainai/internal/ml"

	"github.com/spf13/cobra"
)

// modelOptions select and load a model artifact for the one-shot commands.
type modelOptions struct {
	path   string
	format string
	strict bool
}

func (o *modelOptions) register(cmd *cobra.Command) {
	defPath := os.Getenv(common.EnvModelPath)
	if defPath == "" {
		defPath = common.DefaultModelPath
	}
	cmd.Flags().StringVar(&o.path, "model", defPath, "Model artifact path")
	cmd.Flags().StringVar(&o.format, "format", common.DefaultModelFormat, "Artifact format (auto, bundle, xgboost, lightgbm)")
	cmd.Flags().BoolVar(&o.strict, "strict-domain", false, "Reject inputs outside the physical domain of each feature")
}

func (o *modelOptions) engine() (*ml.Engine, error) {
	format, err := ml.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	e := ml.NewEngine(ml.WithFormat(format), ml.WithStrictDomain(o.strict))
	if err := e.Load(o.path); err != nil {
		return nil, err
	}
	return e, nil
}

func registerFeatureFlags(cmd *cobra.Command, v *features.Vector) {
	cmd.Flags().Float64Var(&v.Temperature, string(features.Temperature), 100, "Process temperature")
	cmd.Flags().Float64Var(&v.Pressure, string(features.Pressure), 50, "Process pressure")
	cmd.Flags().Float64Var(&v.Time, string(features.Time), 12, "Process time")
	cmd.Flags().Float64Var(&v.Humidity, string(features.Humidity), 50, "Relative humidity")
	cmd.Flags().Float64Var(&v.PH, string(features.PH), 7, "pH")
}

func newPredictCmd() *cobra.Command {
	var (
		model modelOptions
		input features.Vector
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one set of process parameters with a local model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := model.engine()
			if err != nil {
				return err
			}
			score, err := e.Predict(input)
			if err != nil {
				return err
			}
			info, _ := e.Info()
			return printJSON(cmd.OutOrStdout(), ml.PredictionResponse{
				Score:        score,
				ModelVersion: info.Version,
				Timestamp:    time.Now().UTC(),
			})
		},
	}

	model.register(cmd)
	registerFeatureFlags(cmd, &input)
	return cmd
}

func newImportancesCmd() *cobra.Command {
	var (
		model  modelOptions
		ranked bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "importances",
		Short: "Print the feature importances of a local model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := model.engine()
			if err != nil {
				return err
			}
			report, err := e.FeatureImportances()
			if err != nil {
				return err
			}
			order := "canonical"
			if ranked {
				report = report.Ranked()
				order = "ranked"
			}
			if asJSON {
				info, _ := e.Info()
				return printJSON(cmd.OutOrStdout(), ml.ImportancesResponse{
					Order:        order,
					Importances:  report.Items,
					ModelVersion: info.Version,
				})
			}
			return printImportances(cmd.OutOrStdout(), report.Items)
		},
	}

	model.register(cmd)
	cmd.Flags().BoolVar(&ranked, "ranked", false, "Sort by descending weight")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var model modelOptions

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe a local model artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := model.engine()
			if err != nil {
				return err
			}
			info, err := e.Info()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}

	model.register(cmd)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printImportances(w io.Writer, items []ml.Importance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tWEIGHT")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%.4f\n", it.Feature, it.Weight)
	}
	return tw.Flush()
}
