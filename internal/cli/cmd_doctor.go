package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/interopsig/sigmatrix/internal/doctor"
	"github.com/interopsig/sigmatrix/internal/gc"
)

func (r Runner) runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	implsPath := fs.String("impls", "", "implementation profile file, YAML or JSON (default built-in rust/zig pair)")
	repoRoot := fs.String("repo-root", ".", "checkout root anchoring the built-in profiles")
	exchangeRoot := fs.String("exchange-root", gc.DefaultRoot(), "exchange root to probe for write access")
	jsonOut := fs.Bool("json", false, "print checks as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("doctor: invalid flags")
	}
	if *help {
		printDoctorHelp(r.Stdout)
		return 0
	}

	pair, err := r.loadPair(*implsPath, *repoRoot, *exchangeRoot)
	if err != nil {
		return r.failUsage("doctor: " + err.Error())
	}

	res, err := doctor.Run(doctor.Opts{Pair: pair, ExchangeRoot: *exchangeRoot})
	if err != nil {
		return r.failRun(err)
	}

	if *jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		for _, c := range res.Checks {
			status := "ok"
			if !c.OK {
				status = "FAIL"
			}
			line := fmt.Sprintf("%-24s %s", c.ID, status)
			if c.Message != "" {
				line += "  " + c.Message
			}
			fmt.Fprintln(r.Stdout, line)
		}
	}
	if !res.OK {
		return 1
	}
	return 0
}

func printDoctorHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sigmatrix doctor [--impls <file>] [--repo-root <dir>] [--exchange-root <dir>] [--json]

Checks that a matrix run can succeed: build toolchains on PATH (or prebuilt
binaries present) and a writable exchange root.
`)
}
