// Package codes centralizes the stable SIGMAT_E_* error codes surfaced in
// CLI output and JSON reports. Codes are part of the tool's contract: scripts
// match on them, so renaming one is a breaking change.
package codes

import (
	"errors"
	"fmt"
)

const (
	Usage           = "SIGMAT_E_USAGE"
	IO              = "SIGMAT_E_IO"
	Config          = "SIGMAT_E_CONFIG"
	Build           = "SIGMAT_E_BUILD"
	Timeout         = "SIGMAT_E_TIMEOUT"
	Spawn           = "SIGMAT_E_SPAWN"
	OpFailed        = "SIGMAT_E_OP_FAILED"
	MissingArtifact = "SIGMAT_E_MISSING_ARTIFACT"
	LockTimeout     = "SIGMAT_E_LOCK_TIMEOUT"
)

// Error is a coded error. The code travels into JSON reports and progress
// events; the message is for humans only.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or "" when err is nil or uncoded.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
