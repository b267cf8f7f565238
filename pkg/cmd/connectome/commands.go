package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/connectome-metrics/pkg/config"
)

// app carries the configuration shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
	out        io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:   "connectome",
		Short: "Graph metrics and group statistics for structural connectomes",
		Long: `connectome loads <SUBJECT>_<METHOD>.csv connectivity matrices, computes
efficiency, path length, clustering, strength and modularity for each, and
compares patients against controls and ACT against TREKKER.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.String("input-dir", ".", "directory of <SUBJECT>_<METHOD>.csv connectomes")
	pf.String("output-dir", "", "metric output directory (default <input-dir>/metrics)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console or json)")

	root.AddCommand(
		newInspectCmd(a),
		newCollectCmd(a),
		newComputeCmd(a),
		newAnalyzeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup layers the config file, environment and flags, then builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.cfg = config.New()
	if a.configPath != "" {
		if err := a.cfg.LoadFromFile(a.configPath); err != nil {
			return err
		}
	}
	if err := a.cfg.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	a.logger = a.cfg.CreateLogger()
	log.Logger = a.logger
	a.logger.Debug().Str("command", cmd.Name()).Str("config", a.configPath).Msg("Configuration loaded")
	return nil
}

// progressWriter returns stderr when it is a terminal and nil otherwise.
func progressWriter() io.Writer {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return os.Stderr
	}
	return nil
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.WriteYAML(a.out)
		},
	})
	return cmd
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
