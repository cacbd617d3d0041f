package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyjia/pe-report-extractor/internal/pdf"
)

type inspectReport struct {
	File            string     `json:"file"`
	Info            pdf.Info   `json:"info"`
	InfoError       string     `json:"info_error,omitempty"`
	Status          pdf.Status `json:"status"`
	Chars           int        `json:"chars"`
	FinancialScore  int        `json:"financial_score"`
	Tables          int        `json:"tables"`
	FinancialTables int        `json:"financial_tables"`
	Pages           []pdf.Page `json:"pages"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect file.pdf",
	Short: "Show what text extraction finds in a PDF, without calling an LLM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		report := inspectReport{File: path}
		report.Info, err = pdf.Inspect(data)
		if err != nil {
			report.InfoError = err.Error()
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		doc, err := pdf.NewTextExtractor(nil, logger).Extract(cmd.Context(), path, data)
		if err != nil {
			return err
		}

		report.Status = doc.Status
		report.Chars = doc.CharCount
		report.FinancialScore = doc.FinancialScore
		report.Tables = len(doc.Tables)
		for _, t := range doc.Tables {
			if t.IsFinancial {
				report.FinancialTables++
			}
		}
		report.Pages = doc.Pages
		return printResult(cmd.OutOrStdout(), report)
	},
}
