// Package implbin ensures each implementation's executable exists before any
// scenario runs, rebuilding on demand or unconditionally. A build failure is
// fatal to the whole run.
package implbin

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/procexec"
)

type Policy string

const (
	// PolicyReuse builds only when the target executable is absent.
	PolicyReuse Policy = "reuse"
	// PolicyRebuild deletes any existing executable and rebuilds, so a
	// stale binary from a prior checkout can never be exercised.
	PolicyRebuild Policy = "rebuild"
)

// Ensure returns the path of a ready-to-run executable for p, building it
// according to policy. Build output streams through echoW like any other
// harness subprocess.
func Ensure(ctx context.Context, p implprofile.Profile, policy Policy, echoW io.Writer) (string, error) {
	if echoW == nil {
		echoW = io.Discard
	}

	switch policy {
	case PolicyReuse:
		if _, err := os.Stat(p.Binary); err == nil {
			return p.Binary, nil
		}
	case PolicyRebuild:
		if err := os.Remove(p.Binary); err != nil && !os.IsNotExist(err) {
			return "", codes.Errorf(codes.Build, "%s: cannot remove stale binary: %v", p.Name, err)
		}
	default:
		return "", codes.Errorf(codes.Build, "%s: unknown binary policy %q", p.Name, policy)
	}

	fmt.Fprintf(echoW, "Building %s (%s)...\n", p.Name, p.Build.Argv[0])
	res, err := procexec.Run(ctx, procexec.Spec{
		Argv:    p.Build.Argv,
		Dir:     p.Build.Dir,
		Timeout: time.Duration(p.BuildTimeoutSeconds()) * time.Second,
	}, echoW)
	if err != nil {
		return "", codes.Errorf(codes.Build, "%s: build did not start: %v", p.Name, err)
	}
	if res.TimedOut {
		return "", codes.Errorf(codes.Build, "%s: build timed out after %ds", p.Name, p.BuildTimeoutSeconds())
	}
	if res.ExitCode != 0 {
		return "", codes.Errorf(codes.Build, "%s: build exited %d", p.Name, res.ExitCode)
	}
	if _, err := os.Stat(p.Binary); err != nil {
		return "", codes.Errorf(codes.Build, "%s: build succeeded but %s is absent", p.Name, p.Binary)
	}
	return p.Binary, nil
}
