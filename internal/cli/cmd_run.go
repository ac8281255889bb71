package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/interopsig/sigmatrix/internal/config"
	"github.com/interopsig/sigmatrix/internal/harness"
	"github.com/interopsig/sigmatrix/internal/ids"
	"github.com/interopsig/sigmatrix/internal/implbin"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/scenario"
)

func (r Runner) runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	lifetimes := fs.String("lifetime", "", "comma-separated lifetime classes (default 2^8,2^18)")
	seedHex := fs.String("seed-hex", scenario.DefaultSeedHex, "key-generation seed, hex")
	timeoutLong := fs.Int64("timeout-2-32", 0, "2^32 signing timeout in seconds (overrides SIGMAT_TIMEOUT_2_32)")
	forceRebuild := fs.Bool("force-rebuild", false, "delete and rebuild both tool binaries")
	implsPath := fs.String("impls", "", "implementation profile file, YAML or JSON (default built-in rust/zig pair)")
	repoRoot := fs.String("repo-root", ".", "checkout root anchoring the built-in profiles")
	exchangeDir := fs.String("exchange-dir", "", "artifact staging dir (default per-run dir under the system temp dir)")
	expectMismatch := fs.Bool("expect-epoch-mismatch", false, "verify at epoch+1 and require every verification to reject")
	jsonOut := fs.Bool("json", false, "print the run report as JSON on stdout")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("run: invalid flags")
	}
	if *help {
		printRunHelp(r.Stdout)
		return 0
	}
	if fs.NArg() != 0 {
		return r.failUsage(fmt.Sprintf("run: unexpected argument %q", fs.Arg(0)))
	}

	requested := scenario.ParseLifetimeCSV(*lifetimes)
	if len(requested) == 0 {
		requested = scenario.DefaultLifetimes
	}
	scenarios, err := scenario.Build(requested, *seedHex)
	if err != nil {
		return r.failUsage("run: " + err.Error())
	}

	rt := config.FromEnv(r.LookupEnv)
	if *timeoutLong > 0 {
		rt.LongSignTimeout = time.Duration(*timeoutLong) * time.Second
	}

	runID, err := ids.NewRunID(r.Now())
	if err != nil {
		return r.failRun(err)
	}
	exchange := *exchangeDir
	if exchange == "" {
		exchange = filepath.Join(os.TempDir(), "sigmatrix", runID)
	}

	pair, err := r.loadPair(*implsPath, *repoRoot, exchange)
	if err != nil {
		return r.failUsage("run: " + err.Error())
	}

	policy := implbin.PolicyReuse
	if *forceRebuild {
		policy = implbin.PolicyRebuild
	}
	var offset uint32
	if *expectMismatch {
		offset = 1
	}

	rep, err := harness.Execute(context.Background(), harness.Options{
		Pair:                  pair,
		Scenarios:             scenarios,
		ExchangeDir:           exchange,
		RunID:                 runID,
		Policy:                policy,
		Runtime:               rt,
		VerifyEpochOffset:     offset,
		ExpectVerifyRejection: *expectMismatch,
		Now:                   r.Now,
	}, r.Stderr)
	if err != nil {
		return r.failRun(err)
	}

	if *jsonOut {
		if code := r.writeJSON(rep); code != 0 {
			return code
		}
	}
	if !rep.OverallOK {
		return 1
	}
	return 0
}

// loadPair resolves the implementation pair. A profile file supplies its own
// private dirs; the built-in pair keeps its keys next to the staged artifacts.
func (r Runner) loadPair(implsPath, repoRoot, exchange string) (implprofile.Pair, error) {
	if implsPath != "" {
		return implprofile.ParseFile(implsPath)
	}
	return implprofile.Defaults(repoRoot, filepath.Join(exchange, "private")), nil
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "SIGMAT_E_IO: failed to encode json\n")
		return 1
	}
	return 0
}

func printRunHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sigmatrix run [--lifetime 2^8,2^18] [--seed-hex <hex>] [--timeout-2-32 <seconds>]
                [--force-rebuild] [--impls <file>] [--repo-root <dir>]
                [--exchange-dir <dir>] [--expect-epoch-mismatch] [--json]

Runs sign, self-verify, and cross-verify for both implementations per
lifetime class. Human progress goes to stderr; --json prints the run
report on stdout. Exit code 0 means every operation passed.
`)
}
