// Package filesize enforces the upload/encode size policy: files over the
// hard ceiling are rejected before any bytes move, large-but-allowed files
// only produce an advisory warning.
package filesize

import "fmt"

const (
	// MaxBytes is the hard ceiling. Anything larger is rejected outright.
	MaxBytes = 50 * 1024 * 1024
	// WarnBytes is the advisory threshold for slow-connection warnings.
	WarnBytes = 10 * 1024 * 1024
)

// Level classifies a size check outcome.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelError
)

// Result carries the outcome of a size check and a human-readable message
// for anything other than a plain pass.
type Result struct {
	Level   Level
	Message string
}

// Policy carries the configured size thresholds. Zero or negative fields
// fall back to the package defaults, so the zero Policy is the built-in
// 50 MB / 10 MB one.
type Policy struct {
	MaxBytes  int64
	WarnBytes int64
}

// Check validates a file size against the policy thresholds. A warning
// never blocks; an error must be surfaced before any upload or encode is
// attempted.
func (p Policy) Check(size int64) Result {
	max := p.MaxBytes
	if max <= 0 {
		max = MaxBytes
	}
	warn := p.WarnBytes
	if warn <= 0 {
		warn = WarnBytes
	}

	if size > max {
		return Result{
			Level:   LevelError,
			Message: fmt.Sprintf("file size exceeds the %s limit, compress or split the file first", Format(max)),
		}
	}
	if size > warn {
		return Result{
			Level:   LevelWarning,
			Message: fmt.Sprintf("large file (%s), transfer may be slow on poor connections", Format(size)),
		}
	}
	return Result{Level: LevelOK}
}

// Check validates a file size against the default policy.
func Check(size int64) Result {
	return Policy{}.Check(size)
}

// Format renders a byte count in human-readable units.
func Format(size int64) string {
	if size == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}
