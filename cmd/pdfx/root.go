package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/pe-report-extractor/internal/config"
	"github.com/garyjia/pe-report-extractor/internal/container"
	"github.com/garyjia/pe-report-extractor/pkg/utils"
)

const version = "1.0.0"

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfx",
	Short: "Extract structured data from private equity PDF reports into Excel",
	Long: `pdfx turns private equity fund reports and portfolio summaries into
formatted Excel workbooks.

Text and tables are read from each PDF, structured by an LLM against a
template schema, and rendered one sheet per template section.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", config.DefaultConfigPath, "config file",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "log debug output to stderr",
	)

	rootCmd.AddCommand(extractCmd, templatesCmd, inspectCmd, cacheCmd)
}

func newLogger() (*zap.Logger, error) {
	return utils.NewCLILogger(verbose)
}

// startContainer loads configuration and starts the components the CLI
// needs. Background workers and notifications stay off.
func startContainer(cmd *cobra.Command) (*container.Container, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	c, err := container.NewContainer(cfg, logger, container.Options{})
	if err != nil {
		return nil, err
	}
	if err := c.Start(cmd.Context()); err != nil {
		return nil, err
	}
	return c, nil
}

// printResult writes v to w in the selected output format.
func printResult(w io.Writer, v any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		// Round-trip through JSON so yaml keys follow the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}
	return fmt.Errorf("unknown output format %q (want yaml or json)", outputFormat)
}
