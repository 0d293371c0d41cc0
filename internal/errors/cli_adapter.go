package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if ce, ok := AsClassified(err); ok {
		return a.exitCodeFromClassified(ce)
	}

	return 1
}

// exitCodeFromClassified maps Error categories to exit codes.
func (a *CLIErrorAdapter) exitCodeFromClassified(err *Error) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid configuration content
	case CategoryIdentity:
		return 3
	case CategoryTransfer, CategoryFileSystem:
		return 4 // One or more items failed
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryGit:
		return 8 // External system error
	case CategoryInternal:
		return 10 // Internal error
	case CategoryDaemon:
		return 12 // Runtime error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if ce, ok := AsClassified(err); ok && ce == err {
		return a.formatClassified(ce)
	}

	return fmt.Sprintf("Error: %v", err)
}

// formatClassified formats an Error for display.
func (a *CLIErrorAdapter) formatClassified(err *Error) string {
	if a.verbose {
		return err.Error()
	}

	msg := err.Message
	if len(err.Context) > 0 {
		msg = fmt.Sprintf("%s %v", msg, map[string]any(err.Context))
	}
	switch err.Category {
	case CategoryConfig, CategoryValidation, CategoryIdentity:
		return msg
	default:
		return fmt.Sprintf("%s: %s", err.Category, msg)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(a.out, "%s\n", message)
	os.Exit(exitCode)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if ce, ok := AsClassified(err); ok {
		return ce.Category == CategoryInternal ||
			ce.Category == CategoryDaemon ||
			ce.Severity == SeverityFatal
	}

	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	if ce, ok := AsClassified(err); ok {
		level := a.slogLevelFromSeverity(ce.Severity)
		attrs := []slog.Attr{
			slog.String("category", string(ce.Category)),
		}
		if ce.Retryable {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
		if ce.Cause != nil {
			attrs = append(attrs, slog.String("cause", ce.Cause.Error()))
		}

		a.logger.LogAttrs(context.Background(), level, ce.Message, attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

// slogLevelFromSeverity converts Error severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
