package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the built-in rule self-test",
	Args:  cobra.NoArgs,
	RunE:  runSelftest,
}

func init() {
	selftestCmd.Flags().Bool("json", false, "print the report as JSON")
}

func runSelftest(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.validator.SelfTest(cmd.Context())
	w := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Checks {
			mark := validColor.Sprint("ok  ")
			if !c.Passed {
				mark = invalidColor.Sprint("FAIL")
			}
			fmt.Fprintf(w, "%s %-20s %s\n", mark, c.Rule, c.Description)
		}
		fmt.Fprintf(w, "\n%d passed, %d failed\n", report.Passed, report.Failed)
	}

	if !report.OK() {
		return errors.Join(errInvalid, fmt.Errorf("%d self-test check(s) failed", report.Failed))
	}
	return nil
}
