package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyItem       = "item"
	KeyRepoPath   = "repo_path"
	KeyLocalPath  = "local_path"
	KeyDevice     = "device"
	KeyAlias      = "alias"
	KeyDirection  = "direction"
	KeyRunID      = "run_id"
	KeyPhase      = "phase"
	KeyReason     = "reason"
	KeyRemote     = "remote"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Item(p string) slog.Attr         { return slog.String(KeyItem, p) }
func RepoPath(p string) slog.Attr     { return slog.String(KeyRepoPath, p) }
func LocalPath(p string) slog.Attr    { return slog.String(KeyLocalPath, p) }
func Device(id string) slog.Attr      { return slog.String(KeyDevice, id) }
func Alias(a string) slog.Attr        { return slog.String(KeyAlias, a) }
func Direction(d string) slog.Attr    { return slog.String(KeyDirection, d) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Remote(r string) slog.Attr       { return slog.String(KeyRemote, r) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Commit shortens a full hash to eight characters.
func Commit(hash string) slog.Attr {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slog.String(KeyCommit, hash)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
