package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/interopsig/sigmatrix/internal/inspect"
	"github.com/interopsig/sigmatrix/internal/scenario"
)

const inspectTimeout = 3 * time.Minute

func (r Runner) runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	implsPath := fs.String("impls", "", "implementation profile file, YAML or JSON (default built-in rust/zig pair)")
	repoRoot := fs.String("repo-root", ".", "checkout root anchoring the built-in profiles")
	jsonOut := fs.Bool("json", false, "print the comparison as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("inspect: invalid flags")
	}
	if *help {
		printInspectHelp(r.Stdout)
		return 0
	}
	if fs.NArg() != 3 {
		printInspectHelp(r.Stderr)
		return r.failUsage("inspect: want <skPath> <pkPath> <lifetime>")
	}
	skPath, pkPath, lifetime := fs.Arg(0), fs.Arg(1), fs.Arg(2)
	if _, ok := scenario.ClassFor(lifetime); !ok {
		return r.failUsage(fmt.Sprintf("inspect: unsupported lifetime %q", lifetime))
	}

	pair, err := r.loadPair(*implsPath, *repoRoot, "")
	if err != nil {
		return r.failUsage("inspect: " + err.Error())
	}

	rep, err := inspect.CrossCheck(context.Background(), pair.A, pair.B, skPath, pkPath, lifetime, inspectTimeout, r.Stderr)
	if err != nil {
		return r.failRun(err)
	}

	if *jsonOut {
		if code := r.writeJSON(rep); code != 0 {
			return code
		}
	} else {
		fmt.Fprintf(r.Stdout, "%s prefix: %s\n", pair.A.Name, rep.PrefixA)
		fmt.Fprintf(r.Stdout, "%s prefix: %s\n", pair.B.Name, rep.PrefixB)
	}
	if !rep.Match {
		fmt.Fprintf(r.Stderr, "public-key prefixes differ\n")
		return 1
	}
	return 0
}

func printInspectHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sigmatrix inspect [--impls <file>] [--json] <skPath> <pkPath> <lifetime>

Drives both implementations' inspect verb against an on-disk key pair and
compares the public-key prefix each one reports after deserializing.
`)
}
