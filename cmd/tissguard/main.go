// Package main implements the tissguard CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "tissguard",
	Short: "TISS billing document validator",
	Long: `tissguard checks TISS XML batches (structure, standard version, TUSS
procedure codes, dates and amounts) before they are sent to an operator.

Examples:
  tissguard validate lote.xml
  tissguard validate --output json lotes/*.xml
  cat lote.xml | tissguard validate -
  tissguard tuss import tabela22.csv
  tissguard serve --config tissguard.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tussCmd)
	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error|none)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text|json)")
	rootCmd.PersistentFlags().String("rules", "", "declarative rule file to load")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}
