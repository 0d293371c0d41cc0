package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *Error {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *Error {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration file could not be parsed").
		WithContext("path", path)
}

// DuplicateItemPath reports two items whose path_in_repo are equal or nested.
func DuplicateItemPath(first, second string) *Error {
	return New(CategoryValidation, SeverityFatal, "item paths overlap").
		WithContext("path", first).
		WithContext("other", second)
}

// InvalidItem reports an item that fails a load-time rule.
func InvalidItem(path, reason string) *Error {
	return New(CategoryValidation, SeverityFatal, "invalid item").
		WithContext("path", path).
		WithContext("reason", reason)
}

func ValidationFailed(field, reason string) *Error {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Identity errors

func IdentityUnavailable(cause error) *Error {
	return Wrap(cause, CategoryIdentity, SeverityWarning, "device identity unavailable")
}

// Transfer errors

// InvalidHardlinkTarget is reported when a hardlink item's repository path is a directory.
func InvalidHardlinkTarget(item, repoPath string) *Error {
	return New(CategoryValidation, SeverityError, "hardlink item must be a single file").
		WithContext("item", item).
		WithContext("repo_path", repoPath)
}

func SourceMissing(item, path string) *Error {
	return New(CategoryTransfer, SeverityError, "source path does not exist").
		WithContext("item", item).
		WithContext("path", path)
}

func TransferFailed(item string, cause error) *Error {
	return Wrap(cause, CategoryTransfer, SeverityError, "transfer failed").
		WithContext("item", item)
}

// Git errors

func GitTransport(op string, cause error) *Error {
	return WrapRetryable(cause, CategoryGit, SeverityError, "git operation failed").
		WithContext("op", op)
}

func WorkspaceError(operation string, cause error) *Error {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

// DaemonError creates a new daemon error
func DaemonError(message string, cause error) *Error {
	return Wrap(cause, CategoryDaemon, SeverityError, message)
}

// Internal errors

func InternalError(message string, cause error) *Error {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
