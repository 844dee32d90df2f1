package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyJobID      = "job_id"
	KeyOS         = "os"
	KeyChannel    = "channel"
	KeyStep       = "step"
	KeyOutcome    = "outcome"
	KeyBranch     = "branch"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyCommand    = "command"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func OS(name string) slog.Attr        { return slog.String(KeyOS, name) }
func Channel(name string) slog.Attr   { return slog.String(KeyChannel, name) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Branch(name string) slog.Attr    { return slog.String(KeyBranch, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Command(cmd string) slog.Attr    { return slog.String(KeyCommand, cmd) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
