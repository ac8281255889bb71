// Package summary reduces all operation results and comparator findings into
// the final verdict and the human-readable table.
package summary

import (
	"fmt"
	"io"

	"github.com/interopsig/sigmatrix/internal/schema"
)

// Overall is the logical AND of every operation across every scenario.
// Comparator findings are advisory and deliberately excluded: framing may
// legitimately differ across serialization generations.
func Overall(scenarios []schema.ScenarioReportV1) bool {
	ok := true
	for _, sc := range scenarios {
		for _, op := range sc.Operations {
			ok = ok && op.Succeeded
		}
	}
	return ok
}

// RenderTable writes one row per operation per scenario, plus artifact path
// references and any size-mismatch warnings.
func RenderTable(w io.Writer, scenarios []schema.ScenarioReportV1, labels map[string]string) {
	fmt.Fprintf(w, "\n=== Summary ===\n")
	for _, sc := range scenarios {
		fmt.Fprintf(w, "\n%s (lifetime %s):\n", sc.Label, sc.Lifetime)
		for _, op := range sc.Operations {
			label := labels[op.Key]
			if label == "" {
				label = op.Key
			}
			status := "PASS"
			if !op.Succeeded {
				status = "FAIL"
			}
			note := ""
			if op.Skipped {
				note = "  [skipped]"
			} else if op.ErrorCode != "" && !op.Succeeded {
				note = "  [" + op.ErrorCode + "]"
			}
			fmt.Fprintf(w, "  %-32s %4s  (%.3fs)%s\n", label, status, op.DurationS, note)
		}
		fmt.Fprintf(w, "  A public key: %s\n", sc.Artifacts.APublicKey)
		fmt.Fprintf(w, "  B public key: %s\n", sc.Artifacts.BPublicKey)
		if sc.Comparison != nil {
			for _, f := range sc.Comparison.Findings {
				fmt.Fprintf(w, "  WARNING: %s byte size differs: A=%d B=%d\n", f.Artifact, f.BytesA, f.BytesB)
			}
		}
	}
}

// RenderVerdict prints the closing line mirroring the per-operation output.
func RenderVerdict(w io.Writer, overall bool) {
	if overall {
		fmt.Fprintf(w, "\nCross-implementation signing and verification complete.\n")
		return
	}
	fmt.Fprintf(w, "\nOne or more operations failed.\n")
}
