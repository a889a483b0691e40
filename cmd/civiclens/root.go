package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/samirrijal/civiclens/internal/pkg/config"
	"github.com/samirrijal/civiclens/internal/pkg/logging"
)

type rootOptions struct {
	logLevel string
	cfg      *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "civiclens",
		Short:        "Locate and classify civic issue photos",
		Long:         `Reads the GPS metadata embedded in a photo, asks a vision model whether it shows a pothole or garbage, and prints the resulting record.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load("civiclens-cli")
			if err != nil {
				return err
			}
			opts.cfg = cfg
			level := opts.logLevel
			if level == "" {
				level = cfg.Log.Level
			}
			// stdout carries the record, logs go to stderr
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, "text"))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newAnalyzeCommand(opts), newConfigCommand(opts))
	cmd.SetErrPrefix("civiclens:")
	return cmd
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd, opts.cfg.Masked())
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
