// Package harness executes a full compatibility run: binary preparation,
// every scenario's six-cell matrix, the post-hoc consistency comparison, and
// report persistence. Execution is strictly sequential; each operation's
// staged output is a later operation's input on disk.
package harness

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/interopsig/sigmatrix/internal/classify"
	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/compare"
	"github.com/interopsig/sigmatrix/internal/config"
	"github.com/interopsig/sigmatrix/internal/implbin"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/matrix"
	"github.com/interopsig/sigmatrix/internal/scenario"
	"github.com/interopsig/sigmatrix/internal/schema"
	"github.com/interopsig/sigmatrix/internal/store"
	"github.com/interopsig/sigmatrix/internal/summary"
)

type Options struct {
	Pair        implprofile.Pair
	Scenarios   []scenario.Config
	ExchangeDir string
	RunID       string
	Policy      implbin.Policy
	Runtime     config.Runtime

	OpTimeout             time.Duration
	VerifyEpochOffset     uint32
	ExpectVerifyRejection bool

	// LockWait bounds how long a run waits for another run holding the
	// same exchange dir.
	LockWait time.Duration

	Now func() time.Time
}

func (o *Options) fill() {
	if o.Policy == "" {
		o.Policy = implbin.PolicyReuse
	}
	if o.LockWait <= 0 {
		o.LockWait = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
}

func lockPath(exchangeDir string) string {
	return filepath.Join(exchangeDir, ".lock")
}

func reportPath(exchangeDir string) string {
	return filepath.Join(exchangeDir, "run.report.json")
}

func progressPath(exchangeDir string) string {
	return filepath.Join(exchangeDir, "progress.jsonl")
}

// Execute runs the whole matrix. Build failures return an error before any
// scenario executes; per-operation failures are recorded in the report and
// reflected in OverallOK, never returned as errors.
func Execute(ctx context.Context, opts Options, echoW io.Writer) (schema.RunReportJSONV1, error) {
	opts.fill()
	if echoW == nil {
		echoW = io.Discard
	}

	rep := schema.RunReportJSONV1{
		SchemaVersion: 1,
		RunID:         opts.RunID,
		ImplA:         opts.Pair.A.Name,
		ImplB:         opts.Pair.B.Name,
		StartedAt:     opts.Now().Format(time.RFC3339Nano),
	}

	// Binaries are prepared once, process-wide, before the first scenario.
	if _, err := implbin.Ensure(ctx, opts.Pair.A, opts.Policy, echoW); err != nil {
		return rep, err
	}
	if _, err := implbin.Ensure(ctx, opts.Pair.B, opts.Policy, echoW); err != nil {
		return rep, err
	}

	runner := matrix.NewRunner(opts.Pair.A, opts.Pair.B, matrix.Options{
		ExchangeDir:           opts.ExchangeDir,
		RunID:                 opts.RunID,
		OpTimeout:             opts.OpTimeout,
		LongSignTimeout:       opts.Runtime.LongSignTimeout,
		VerifyEpochOffset:     opts.VerifyEpochOffset,
		ExpectVerifyRejection: opts.ExpectVerifyRejection,
		Classifier:            classify.New(opts.Runtime.Verbose),
		ProgressPath:          progressPath(opts.ExchangeDir),
		Now:                   opts.Now,
	}, echoW)

	if err := os.MkdirAll(opts.ExchangeDir, 0o755); err != nil {
		return rep, codes.Errorf(codes.IO, "create exchange dir: %v", err)
	}
	runErr := store.WithDirLock(lockPath(opts.ExchangeDir), opts.LockWait, func() error {
		for _, cfg := range opts.Scenarios {
			scRep, set, err := runner.RunScenario(ctx, cfg)
			if err != nil {
				return err
			}
			cmp, err := compare.Run(set, opts.Pair.A, opts.Pair.B, cfg)
			if err != nil {
				return err
			}
			scRep.Comparison = &cmp
			rep.Scenarios = append(rep.Scenarios, scRep)
		}
		return nil
	})
	if runErr != nil {
		return rep, runErr
	}

	rep.OverallOK = summary.Overall(rep.Scenarios)
	rep.CompletedAt = opts.Now().Format(time.RFC3339Nano)

	summary.RenderTable(echoW, rep.Scenarios, runner.OperationLabels())
	summary.RenderVerdict(echoW, rep.OverallOK)

	if err := store.WriteJSONAtomic(reportPath(opts.ExchangeDir), rep); err != nil {
		return rep, err
	}
	return rep, nil
}
