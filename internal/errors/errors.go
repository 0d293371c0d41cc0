// Package errors provides a lightweight structured error type (Error) for
// category-based classification, retry semantics and CLI exit codes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a gsb error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryIdentity   ErrorCategory = "identity"

	// External system integration errors
	CategoryGit ErrorCategory = "git"

	// Item processing errors
	CategoryTransfer   ErrorCategory = "transfer"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// Error is a structured error with category, retryability, and context
type Error struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for Error
type ContextFields map[string]any

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithCategory overrides the category (used by classifiers that refine a generic error).
func (e *Error) WithCategory(c ErrorCategory) *Error {
	e.Category = c
	return e
}

// AsRetryable marks the error as retryable.
func (e *Error) AsRetryable() *Error {
	e.Retryable = true
	return e
}

// Build returns the error itself so builder chains read naturally at call sites.
func (e *Error) Build() *Error {
	return e
}

// New creates a new Error
func New(category ErrorCategory, severity ErrorSeverity, message string) *Error {
	return &Error{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// NewError starts a builder for an error-severity Error in the given category.
func NewError(category ErrorCategory, message string) *Error {
	return New(category, SeverityError, message)
}

// Wrap creates a new Error that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *Error {
	return &Error{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable Error that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *Error {
	return Wrap(err, category, severity, message).AsRetryable()
}

// AsClassified extracts the first *Error in err's chain.
func AsClassified(err error) (*Error, bool) {
	var ce *Error
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if ce, ok := AsClassified(err); ok {
		return ce.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if ce, ok := AsClassified(err); ok {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not classified
func GetCategory(err error) ErrorCategory {
	if ce, ok := AsClassified(err); ok {
		return ce.Category
	}
	return CategoryInternal
}

// Re-exported so packages importing this one under the name "errors" keep access to the stdlib helpers.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
