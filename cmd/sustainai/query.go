package main

import (
	"os"
	"time"

	"sustainai/internal/client"
	"sustainai/internal/common"
	"sustainai/internal/features"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	defServer := os.Getenv(common.EnvServerURL)
	if defServer == "" {
		defServer = common.DefaultServerURL
	}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a running sustainai server",
	}
	cmd.PersistentFlags().StringVar(&server, "server", defServer, "Server base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")

	newClient := func() *client.Client { return client.New(server, timeout) }

	var input features.Vector
	predict := &cobra.Command{
		Use:   "predict",
		Short: "Score one set of process parameters remotely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Predict(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	registerFeatureFlags(predict, &input)

	var ranked bool
	importances := &cobra.Command{
		Use:   "importances",
		Short: "Fetch the served model's feature importances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Importances(cmd.Context(), ranked)
			if err != nil {
				return err
			}
			return printImportances(cmd.OutOrStdout(), resp.Importances)
		},
	}
	importances.Flags().BoolVar(&ranked, "ranked", false, "Sort by descending weight")

	info := &cobra.Command{
		Use:   "info",
		Short: "Describe the served model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Info(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Report whether the server has a model loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(predict, importances, info, health)
	return cmd
}
