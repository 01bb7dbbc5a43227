package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/worker"
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ValidationOutput is the JSON output for one document.
type ValidationOutput struct {
	Document string       `json:"document"`
	Valid    bool         `json:"valid"`
	Mode     tv.Mode      `json:"mode"`
	Chunks   int          `json:"chunks,omitempty"`
	Message  string       `json:"message"`
	Findings []tv.Finding `json:"findings,omitempty"`
	Duration string       `json:"duration"`
}

var (
	validColor   = color.New(color.FgGreen, color.Bold)
	invalidColor = color.New(color.FgRed, color.Bold)
	codeColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>... | -",
	Short: "Validate TISS documents",
	Long: `Validate one or more TISS XML documents. Glob patterns are expanded;
"-" reads a single document from stdin. Exits with status 1 when any
document is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringP("output", "o", string(OutputText), "output format (text|json)")
	validateCmd.Flags().Bool("no-future-dates", false, "skip the future date check")
	validateCmd.Flags().Bool("no-negative-values", false, "skip the negative amount check")
	validateCmd.Flags().BoolP("quiet", "q", false, "only print invalid documents")
	validateCmd.Flags().IntP("workers", "w", 0, "documents validated in parallel (0 uses the configured value)")
}

type validateFlags struct {
	output  OutputFormat
	quiet   bool
	workers int
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	output, _ := cmd.Flags().GetString("output")
	flags := validateFlags{output: OutputFormat(output)}
	if flags.output != OutputText && flags.output != OutputJSON {
		return fmt.Errorf("unknown output format %q", output)
	}
	flags.quiet, _ = cmd.Flags().GetBool("quiet")
	flags.workers, _ = cmd.Flags().GetInt("workers")
	if flags.workers == 0 {
		flags.workers = a.cfg.Worker.Workers
	}

	settings := a.cfg.Settings()
	if off, _ := cmd.Flags().GetBool("no-future-dates"); off {
		settings = settings.With(tv.SettingCheckFutureDates, false)
	}
	if off, _ := cmd.Flags().GetBool("no-negative-values"); off {
		settings = settings.With(tv.SettingCheckNegativeValues, false)
	}

	var (
		jobs     []worker.Job
		names    []string
		hasError bool
	)
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
				hasError = true
				continue
			}
			jobs = append(jobs, worker.NewJob(data, settings))
			names = append(names, "stdin")
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error with pattern '%s': %v\n", arg, err)
			hasError = true
			continue
		}
		if len(matches) == 0 {
			fmt.Fprintf(os.Stderr, "No files match pattern: %s\n", arg)
			hasError = true
			continue
		}
		for _, match := range matches {
			jobs = append(jobs, worker.NewFileJob(match, settings))
			names = append(names, match)
		}
	}

	batch := worker.NewBatchValidator(a.validator, flags.workers).ValidateBatch(ctx, jobs)

	w := cmd.OutOrStdout()
	outputs := make([]ValidationOutput, 0, len(batch.Results))
	for i, jr := range batch.Results {
		out := toOutput(names[i], jr)
		outputs = append(outputs, out)
		if !out.Valid {
			hasError = true
		}
		if flags.output == OutputText && (!flags.quiet || !out.Valid) {
			printTextResult(w, out)
		}
	}

	if flags.output == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			return err
		}
	} else if len(outputs) > 1 {
		printSummary(w, batch)
	}

	if hasError {
		return errInvalid
	}
	return nil
}

func toOutput(name string, jr *worker.JobResult) ValidationOutput {
	out := ValidationOutput{
		Document: name,
		Duration: jr.Duration.Round(time.Microsecond).String(),
	}
	if jr.Failed() {
		out.Message = jr.Error.Message
		out.Findings = []tv.Finding{{
			Code:     jr.Error.Code,
			Message:  jr.Error.Message,
			Severity: tv.SeverityFatal,
		}}
		return out
	}
	out.Valid = jr.Result.Valid
	out.Mode = jr.Result.Mode
	out.Chunks = jr.Result.Chunks
	out.Message = jr.Result.Message
	out.Findings = jr.Result.Findings
	return out
}

func printTextResult(w io.Writer, out ValidationOutput) {
	status := validColor.Sprint("VALID")
	if !out.Valid {
		status = invalidColor.Sprint("INVALID")
	}

	fmt.Fprintf(w, "== %s ==\n", out.Document)
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "%s\n", out.Message)
	mode := string(out.Mode)
	if out.Chunks > 0 {
		mode = fmt.Sprintf("%s, %d guias", mode, out.Chunks)
	}
	fmt.Fprintln(w, dimColor.Sprintf("Mode: %s  Duration: %s", mode, out.Duration))

	if len(out.Findings) > 0 {
		fmt.Fprintln(w, "\nFindings:")
		for _, f := range out.Findings {
			location := ""
			if f.Location != "" {
				location = dimColor.Sprintf(" @ %s", f.Location)
			}
			fmt.Fprintf(w, "  [%s] %s%s\n", codeColor.Sprint(f.Code), f.Message, location)
		}
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, batch *worker.BatchResult) {
	invalid := 0
	for _, r := range batch.Results {
		if r.Failed() || !r.Result.Valid {
			invalid++
		}
	}
	fmt.Fprintf(w, "%d document(s), %d invalid, %d finding(s)\n",
		batch.TotalJobs, invalid, batch.FindingCount())
}
