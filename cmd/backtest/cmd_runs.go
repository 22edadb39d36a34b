package main

import (
	"github.com/spf13/cobra"

	"equity-factor-lab/internal/config"
	"equity-factor-lab/internal/logging"
	"equity-factor-lab/internal/reporting"
)

var (
	listLimit  int
	showFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format)

		ctx, cancel := signalContext()
		defer cancel()

		store, closeStore, err := openRunStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer closeStore()

		runs, err := store.List(ctx, listLimit)
		if err != nil {
			return err
		}
		reporting.RenderRunList(cmd.OutOrStdout(), runs)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logging.Setup(cfg.Log.Level, cfg.Log.Format)

		ctx, cancel := signalContext()
		defer cancel()

		store, closeStore, err := openRunStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return writeResult(cmd, res, showFormat)
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Show the named factor weight presets",
	Run: func(cmd *cobra.Command, _ []string) {
		reporting.RenderPresets(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, presetsCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of runs to list")
	showCmd.Flags().StringVar(&showFormat, "format", "markdown", "Output format: table, markdown, json")
}
