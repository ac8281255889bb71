package procexec

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/interopsig/sigmatrix/internal/codes"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh")
	}
}

func TestRun_CapturesBothChannelsAndExitCode(t *testing.T) {
	t.Parallel()
	requireSh(t)

	var echo bytes.Buffer
	res, err := Run(context.Background(), Spec{
		Argv: []string{"/bin/sh", "-c", "echo out-line; echo err-line >&2; exit 3"},
	}, &echo)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "out-line") {
		t.Fatalf("stdout not captured: %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "err-line") {
		t.Fatalf("stderr not captured: %q", res.Stderr)
	}
	if !strings.HasPrefix(echo.String(), "$ /bin/sh -c ") {
		t.Fatalf("command line not echoed: %q", echo.String())
	}
	if res.Duration <= 0 {
		t.Fatalf("duration not measured")
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	requireSh(t)

	res, err := Run(context.Background(), Spec{
		Argv:    []string{"/bin/sh", "-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut")
	}
	if res.ExitCode == 0 {
		t.Fatalf("timed-out process must not report exit 0")
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Spec{
		Argv: []string{"/nonexistent/sigmatrix-no-such-tool"},
	}, nil)
	if !codes.Is(err, codes.Spawn) {
		t.Fatalf("expected %s, got: %v", codes.Spawn, err)
	}
}

func TestRun_EnvOverlayAndDir(t *testing.T) {
	t.Parallel()
	requireSh(t)

	dir := t.TempDir()
	res, err := Run(context.Background(), Spec{
		Argv: []string{"/bin/sh", "-c", "echo $SIGMAT_TEST_VAL; pwd"},
		Dir:  dir,
		Env:  map[string]string{"SIGMAT_TEST_VAL": "overlaid"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stdout, "overlaid") {
		t.Fatalf("env overlay not applied: %q", res.Stdout)
	}
	if !strings.Contains(res.Stdout, dir) {
		t.Fatalf("working directory not honored: %q", res.Stdout)
	}
}

func TestRun_BoundedCapture(t *testing.T) {
	t.Parallel()
	requireSh(t)

	res, err := Run(context.Background(), Spec{
		Argv:            []string{"/bin/sh", "-c", "yes diagnostic | head -c 100000"},
		MaxCaptureBytes: 1024,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Stdout) != 1024 {
		t.Fatalf("capture length = %d, want 1024", len(res.Stdout))
	}
	if !res.StdoutTruncated {
		t.Fatalf("expected truncation flag")
	}
}

func TestRun_MissingArgv(t *testing.T) {
	t.Parallel()

	if _, err := Run(context.Background(), Spec{}, nil); !codes.Is(err, codes.Spawn) {
		t.Fatalf("expected %s, got: %v", codes.Spawn, err)
	}
}
