package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tissguard/validator/terminology"
)

var tussCmd = &cobra.Command{
	Use:   "tuss",
	Short: "Manage the TUSS reference table",
}

var tussImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the reference table with the codes in a CSV or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTussImport,
}

var tussCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of codes in the reference table",
	Args:  cobra.NoArgs,
	RunE:  runTussCount,
}

func init() {
	tussCmd.AddCommand(tussImportCmd)
	tussCmd.AddCommand(tussCountCmd)
}

func runTussImport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := terminology.LoadFile(args[0])
	if err != nil {
		return err
	}
	n, err := a.store.BulkReplace(cmd.Context(), entries)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s códigos importados de %s\n", validColor.Sprint(n), args[0])
	return nil
}

func runTussCount(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
