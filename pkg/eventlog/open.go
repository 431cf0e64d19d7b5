package eventlog

import (
	"log/slog"
	"os"
	"path/filepath"
)

// defaultLogFileName is the file name used under the platform application
// data directory when no explicit path is configured.
const defaultLogFileName = "runtime-events.jsonl"

// OpenDefault opens the file-backed log at the platform-appropriate
// application data location. If that location cannot be created or opened,
// it logs the failure and silently falls back to an in-memory log — the
// authority must keep working even without durability.
func OpenDefault() Log {
	dir, err := os.UserConfigDir()
	if err != nil {
		slog.Warn("eventlog: no user config dir, falling back to memory", "error", err)
		return NewMemoryLog()
	}

	appDir := filepath.Join(dir, "openagents-runtime")
	if err := os.MkdirAll(appDir, 0o700); err != nil {
		slog.Warn("eventlog: cannot create app dir, falling back to memory", "dir", appDir, "error", err)
		return NewMemoryLog()
	}

	path := filepath.Join(appDir, defaultLogFileName)
	fileLog, err := OpenFileLog(path)
	if err != nil {
		slog.Warn("eventlog: cannot open log file, falling back to memory", "path", path, "error", err)
		return NewMemoryLog()
	}
	return fileLog
}

// OpenPath opens the file-backed log at an explicit path. Unlike
// OpenDefault it does not fall back silently: an explicit configuration
// that fails to open is a caller-visible error.
func OpenPath(path string) (Log, error) {
	return OpenFileLog(path)
}
