package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/garyjia/pe-report-extractor/internal/pipeline"
)

var (
	extractTemplate string
	extractOutDir   string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file.pdf...]",
	Short: "Extract one batch of PDFs into a workbook",
	Long: `Extract runs the full pipeline on the given PDFs as one batch and writes
the workbook to the configured output directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch := pipeline.Batch{TemplateID: extractTemplate}
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			batch.Files = append(batch.Files, pipeline.Upload{Name: filepath.Base(path), Data: data})
		}

		c, err := startContainer(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		outcome, err := c.Pipeline().Process(cmd.Context(), batch)
		if err != nil {
			return fmt.Errorf("%s: %w", pipeline.Code(err), err)
		}

		path := outcome.OutputPath
		if extractOutDir != "" {
			if path, err = copyInto(extractOutDir, outcome.OutputPath); err != nil {
				return err
			}
		}

		return printResult(cmd.OutOrStdout(), struct {
			*pipeline.Outcome
			Path string `json:"path"`
		}{outcome, path})
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractTemplate, "template", "t", "1", "template id (see pdfx templates)")
	extractCmd.Flags().StringVar(&extractOutDir, "out-dir", "", "also copy the workbook into this directory")
}

// copyInto copies src into dir, keeping its base name.
func copyInto(dir, src string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read workbook: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return dst, nil
}
