package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/interopsig/sigmatrix/internal/scenario"
)

func (r Runner) runScenarios(args []string) int {
	fs := flag.NewFlagSet("scenarios", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	lifetimes := fs.String("lifetime", "", "comma-separated lifetime classes (default 2^8,2^18)")
	seedHex := fs.String("seed-hex", scenario.DefaultSeedHex, "key-generation seed, hex")
	jsonOut := fs.Bool("json", false, "print scenarios as JSON")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("scenarios: invalid flags")
	}
	if *help {
		printScenariosHelp(r.Stdout)
		return 0
	}

	requested := scenario.ParseLifetimeCSV(*lifetimes)
	if len(requested) == 0 {
		requested = scenario.DefaultLifetimes
	}
	cfgs, err := scenario.Build(requested, *seedHex)
	if err != nil {
		return r.failUsage("scenarios: " + err.Error())
	}

	if *jsonOut {
		return r.writeJSON(cfgs)
	}
	for _, c := range cfgs {
		fmt.Fprintf(r.Stdout, "%-12s epoch=%d activeEpochs=%d tag=%s\n", c.Lifetime, c.Epoch, c.NumActiveEpochs, c.Tag())
	}
	return 0
}

func printScenariosHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  sigmatrix scenarios [--lifetime 2^8,2^18] [--seed-hex <hex>] [--json]

Resolves and validates the scenario set without building or spawning
anything.
`)
}
