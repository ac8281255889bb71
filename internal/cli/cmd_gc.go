package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/interopsig/sigmatrix/internal/gc"
)

func (r Runner) runGC(args []string) int {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	root := fs.String("root", gc.DefaultRoot(), "run-dir root to prune")
	maxAge := fs.Duration("max-age", 7*24*time.Hour, "delete runs completed longer ago than this (0 disables)")
	maxBytes := fs.Int64("max-total-bytes", 0, "delete oldest runs until the root is under this size (0 disables)")
	dryRun := fs.Bool("dry-run", false, "report what would be deleted without deleting")
	jsonOut := fs.Bool("json", false, "print the result as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("gc: invalid flags")
	}
	if *help {
		printGCHelp(r.Stdout)
		return 0
	}

	res, err := gc.Run(gc.Opts{
		Root:          *root,
		Now:           r.Now(),
		MaxAge:        *maxAge,
		MaxTotalBytes: *maxBytes,
		DryRun:        *dryRun,
	})
	if err != nil {
		return r.failRun(err)
	}

	if *jsonOut {
		return r.writeJSON(res)
	}
	verb := "deleted"
	if res.DryRun {
		verb = "would delete"
	}
	for _, ri := range res.Deleted {
		fmt.Fprintf(r.Stdout, "%s %s (%d bytes)\n", verb, ri.Path, ri.Bytes)
	}
	fmt.Fprintf(r.Stdout, "%d kept, %d %s, %d -> %d bytes\n",
		len(res.Kept), len(res.Deleted), verb, res.TotalBefore, res.TotalAfter)
	return 0
}

func printGCHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sigmatrix gc [--root <dir>] [--max-age 168h] [--max-total-bytes N] [--dry-run] [--json]

Prunes per-run exchange dirs. Only dirs named like run IDs are touched.
`)
}
