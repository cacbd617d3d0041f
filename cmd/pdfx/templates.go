package main

import (
	"github.com/spf13/cobra"

	"github.com/garyjia/pe-report-extractor/internal/template"
)

type templateSummary struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Sheets      []string `json:"sheets"`
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the supported extraction templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out []templateSummary
		for _, t := range template.All() {
			out = append(out, templateSummary{
				ID:          int(t.ID),
				Name:        t.Name,
				Description: t.Description,
				Version:     t.Version,
				Sheets:      t.SheetNames(),
			})
		}
		return printResult(cmd.OutOrStdout(), out)
	},
}
