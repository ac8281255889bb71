// Package cli is the sigmatrix command surface. Subcommands parse their own
// flags, build explicit config, and hand off to internal packages; nothing
// below this package reads the environment or process args.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/interopsig/sigmatrix/internal/codes"
)

type Runner struct {
	Version string
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer

	// LookupEnv defaults to os.LookupEnv; tests inject a map.
	LookupEnv func(string) (string, bool)
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = func() time.Time { return time.Now().UTC() }
	}
	if r.LookupEnv == nil {
		r.LookupEnv = os.LookupEnv
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "run":
		return r.runRun(args[1:])
	case "scenarios":
		return r.runScenarios(args[1:])
	case "inspect":
		return r.runInspect(args[1:])
	case "doctor":
		return r.runDoctor(args[1:])
	case "gc":
		return r.runGC(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown command %q\n", codes.Usage, args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", codes.Usage, msg)
	return 2
}

func (r Runner) failRun(err error) int {
	code := codes.CodeOf(err)
	if code == "" {
		code = codes.IO
	}
	fmt.Fprintf(r.Stderr, "%s: %v\n", code, err)
	return 1
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `sigmatrix - cross-implementation compatibility matrix for hash-based signatures

Usage:
  sigmatrix run [--lifetime 2^8,2^18] [--seed-hex <hex>] [--impls <file>] [flags]
  sigmatrix scenarios [--lifetime 2^8,2^18] [--json]
  sigmatrix inspect [--impls <file>] <skPath> <pkPath> <lifetime>
  sigmatrix doctor [--impls <file>]
  sigmatrix gc [--max-age 168h] [--max-total-bytes N] [--dry-run]
  sigmatrix version

Commands:
  run        Build both tools, run the six-cell sign/verify matrix per lifetime.
  scenarios  Print the resolved scenario set without spawning anything.
  inspect    Ask both tools to deserialize a key pair and compare what they read.
  doctor     Preflight toolchains, binaries, and exchange-dir writability.
  gc         Prune old per-run exchange dirs under the sigmatrix temp root.
  version    Print version.
`)
}
