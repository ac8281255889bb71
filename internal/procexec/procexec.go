// Package procexec runs one external tool invocation: working directory,
// environment overlay, per-call timeout, bounded output capture, wall-clock
// timing. It knows nothing about signatures; the classifier interprets what
// the process printed.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/interopsig/sigmatrix/internal/codes"
)

// DefaultMaxCaptureBytes bounds each captured channel. Diagnostic-heavy
// builds of the signing tools can emit megabytes of chain dumps.
const DefaultMaxCaptureBytes = 4 << 20

type Spec struct {
	Argv    []string
	Dir     string
	Env     map[string]string // overlaid onto the parent environment
	Timeout time.Duration

	// MaxCaptureBytes caps each of stdout/stderr; 0 means the default.
	MaxCaptureBytes int
}

type Result struct {
	ExitCode int
	Duration time.Duration
	Stdout   string
	Stderr   string
	TimedOut bool

	StdoutTruncated bool
	StderrTruncated bool
}

type boundedCapture struct {
	max int
	mu  sync.Mutex
	buf bytes.Buffer

	truncated bool
}

func (c *boundedCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	_, _ = c.buf.Write(p)
	return len(p), nil
}

func (c *boundedCapture) snapshot() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.truncated
}

// Run executes spec and blocks until exit or timeout. The invoked command
// line is echoed to echoW before execution for traceability. A non-zero exit
// or a timeout is a Result, not an error; errors are reserved for processes
// that could not be started at all (SIGMAT_E_SPAWN).
func Run(ctx context.Context, spec Spec, echoW io.Writer) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, codes.Errorf(codes.Spawn, "missing command argv")
	}
	if echoW == nil {
		echoW = io.Discard
	}
	maxBytes := spec.MaxCaptureBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCaptureBytes
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	fmt.Fprintf(echoW, "$ %s\n", strings.Join(spec.Argv, " "))

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnviron(os.Environ(), spec.Env)

	outCap := &boundedCapture{max: maxBytes}
	errCap := &boundedCapture{max: maxBytes}
	cmd.Stdout = outCap
	cmd.Stderr = errCap

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	stdout, outTrunc := outCap.snapshot()
	stderr, errTrunc := errCap.snapshot()
	res := Result{
		Duration:        duration,
		Stdout:          stdout,
		Stderr:          stderr,
		StdoutTruncated: outTrunc,
		StderrTruncated: errTrunc,
	}

	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	if runErr != nil {
		var ee *exec.ExitError
		if errors.As(runErr, &ee) {
			// Started and exited non-zero: the caller decides what that means.
			return res, nil
		}
		if isStartFailure(runErr) {
			return Result{}, codes.Errorf(codes.Spawn, "cannot start %s: %v", spec.Argv[0], runErr)
		}
		return res, runErr
	}
	return res, nil
}

func isStartFailure(err error) bool {
	// exec.ExitError indicates the process was started; treat that separately.
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return false
	}
	var exErr *exec.Error
	if errors.As(err, &exErr) {
		return true
	}
	var pe *os.PathError
	return errors.As(err, &pe)
}

func mergeEnviron(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	m := map[string]string{}
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	for k, v := range overlay {
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
