// Package versioning checks that a persisted event log's format version is
// compatible with the version this binary understands, so an operator
// upgrading the runtime gets a warning instead of silent misreads.
package versioning

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentFormatVersion is the event log and artifact format version this
// build produces and expects to read.
const CurrentFormatVersion = "1.0.0"

// Compatible reports whether persistedVersion (read from an existing log
// or artifact) can be read by a binary built for CurrentFormatVersion.
// Compatibility is same-major: a 1.x log is readable by any 1.y binary.
func Compatible(persistedVersion string) (bool, error) {
	current, err := semver.NewVersion(CurrentFormatVersion)
	if err != nil {
		return false, fmt.Errorf("parse current format version: %w", err)
	}
	persisted, err := semver.NewVersion(persistedVersion)
	if err != nil {
		return false, fmt.Errorf("parse persisted format version %q: %w", persistedVersion, err)
	}
	return persisted.Major() == current.Major(), nil
}

// CheckAndWarn is Compatible plus a call to warn on mismatch (or when a
// version cannot be parsed), for call sites that want to proceed
// best-effort rather than fail closed.
func CheckAndWarn(persistedVersion string, warn func(msg string, args ...interface{})) {
	ok, err := Compatible(persistedVersion)
	if err != nil {
		warn("unable to check event log format version", "error", err)
		return
	}
	if !ok {
		warn("event log format version mismatch", "persisted", persistedVersion, "current", CurrentFormatVersion)
	}
}
