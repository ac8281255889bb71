// Package config resolves environment-derived settings into an explicit
// struct once, at startup. Nothing below the CLI reads the process
// environment, so tests can pin every knob per case.
package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	// EnvVerbose controls whether implementation-internal diagnostic lines
	// are shown. Read once; filtering is display-only.
	EnvVerbose = "SIGMAT_VERBOSE"
	// EnvLongSignTimeout overrides the 2^32 signing timeout, in seconds.
	EnvLongSignTimeout = "SIGMAT_TIMEOUT_2_32"
)

// DefaultLongSignTimeout matches the observed worst case for 2^32 tree
// materialization with 1024 active epochs.
const DefaultLongSignTimeout = 2400 * time.Second

type Runtime struct {
	Verbose         bool
	LongSignTimeout time.Duration
}

// FromEnv builds the runtime config from a lookup function (os.LookupEnv in
// production). Malformed values fall back to defaults rather than failing:
// a bad verbosity flag must not abort a multi-hour run.
func FromEnv(lookup func(string) (string, bool)) Runtime {
	rt := Runtime{LongSignTimeout: DefaultLongSignTimeout}

	if raw, ok := lookup(EnvVerbose); ok {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "true", "yes", "on":
			rt.Verbose = true
		}
	}
	if raw, ok := lookup(EnvLongSignTimeout); ok {
		if secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && secs > 0 {
			rt.LongSignTimeout = time.Duration(secs) * time.Second
		}
	}
	return rt
}
