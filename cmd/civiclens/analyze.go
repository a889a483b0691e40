package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/samirrijal/civiclens/internal/adapters/filesink"
	"github.com/samirrijal/civiclens/internal/adapters/vision"
	"github.com/samirrijal/civiclens/internal/core/location"
	"github.com/samirrijal/civiclens/internal/core/ports"
	"github.com/samirrijal/civiclens/internal/core/report"
	"github.com/samirrijal/civiclens/internal/core/usecases"
)

type analyzeOptions struct {
	noClassify bool
	output     string
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [flags] <image>",
		Short: "Analyze one photo and print its record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.noClassify, "no-classify", false, "Skip the vision model; Classification is null")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Also write the record to this JSON file")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("image: %w", err)
	}

	var classifier ports.Classifier
	if !opts.noClassify {
		c, err := vision.New(root.cfg.Classifier)
		if err != nil {
			return fmt.Errorf("classifier: %w", err)
		}
		if c != nil {
			classifier = c
		}
	}

	var svcOpts []usecases.AnalysisOption
	if opts.output != "" {
		svcOpts = append(svcOpts, usecases.WithSinks(filesink.New(opts.output)))
	}

	assembler := report.NewAssembler(location.NewResolver(slog.Default()))
	svc := usecases.NewAnalysisService(assembler, classifier, svcOpts...)

	issue, err := svc.Analyze(cmd.Context(), usecases.Upload{
		Path:     path,
		Filename: filepath.Base(path),
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd, issue.AnalysisRecord)
}
