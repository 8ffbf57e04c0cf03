package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/juancollazo-ch/bulk-void-service/internal/models"
	"github.com/juancollazo-ch/bulk-void-service/internal/models/serviceresponse"
	"github.com/juancollazo-ch/bulk-void-service/internal/service"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run finished with fatal or network failures, or was cancelled
	ExitCommandError = 2 // Command error (bad config, no session, invalid flags)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // progress and diagnostics, keeps JSON on Writer clean
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Report outputs a run report.
func (f *OutputFormatter) Report(report *serviceresponse.RunReport) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: report})
	}
	return writeReportText(f.Writer, report)
}

// DryRun outputs the identifiers a run would void.
func (f *OutputFormatter) DryRun(result *serviceresponse.DryRunResult) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: result})
	}

	fmt.Fprintf(f.Writer, "Dry run: %d %s would be voided\n", result.Count, result.Target)
	for _, id := range result.Identifiers {
		fmt.Fprintf(f.Writer, "  %s\n", id)
	}
	return nil
}

// Error outputs a command error in the configured format.
func (f *OutputFormatter) Error(err error) {
	if f.Format == "json" {
		_ = f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: GetExitCode(err), Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(f.errWriter(), "Error: %v\n", err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

// ProgressObserver prints one line per identifier in verbose mode.
func (f *OutputFormatter) ProgressObserver() service.ProgressObserver {
	return service.ObserverFunc(func(e service.ProgressEvent) {
		f.VerboseLog("[%d/%d] %s %s (ETA %s)",
			e.Processed, e.Total, e.Identifier, e.Outcome, service.FormatETA(e.ETA, e.ETAKnown))
	})
}

func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func writeReportText(w io.Writer, r *serviceresponse.RunReport) error {
	status := "finished"
	if r.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(w, "Run %s %s: %d/%d %s processed in %.1fs (throttled: %t)\n",
		r.RunID, status, r.Processed, r.Total, r.Target, r.ElapsedSeconds, r.Throttled)

	for _, kind := range models.AllOutcomeKinds {
		if n := r.Count(kind); n > 0 {
			fmt.Fprintf(w, "  %-28s %d\n", kind.String()+":", n)
		}
	}
	if len(r.Items) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tOUTCOME\tDETAIL")
	for _, item := range r.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", item.Identifier, item.Outcome, item.Outcome.Message)
	}
	return tw.Flush()
}
