package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runelight-sys/LyroDocs/internal/services"
)

var analyzeCmd = newAnalyzeCmd(func() (*runtime, error) { return newRuntime(v) })

func newAnalyzeCmd(build func() (*runtime, error)) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a single JPEG or PNG file",
		Long: `Run recognition and analysis on one image and print the result.

Examples:
  lyro analyze id-card.jpg
  lyro analyze letter.png --out lyro_analysis.txt`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := build()
			if err != nil {
				return err
			}
			defer rt.engine.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			upload, err := services.DecodeUpload(args[0], data)
			if err != nil {
				return err
			}

			result, err := rt.pipeline.Analyze(cmd.Context(), upload)
			if err != nil {
				if result != nil && result.ErrorMessage != "" {
					return errors.New(result.ErrorMessage)
				}
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Raw text:\n%s\n\n", result.RecognizedText)
			if result.ErrorMessage != "" {
				return errors.New(result.ErrorMessage)
			}
			fmt.Fprintf(w, "Analysis:\n%s\n", result.Analysis)

			if out == "" {
				return nil
			}
			payload, ok := services.ExportAnalysis(result)
			if !ok {
				return errors.New("no analysis available for download")
			}
			if err := os.WriteFile(out, payload, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			rt.logger.Info("analysis written", "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "also write the analysis to this file")
	return cmd
}
