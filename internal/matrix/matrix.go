// Package matrix sequences the six operations of one compatibility scenario:
// both implementations sign, both verify themselves, and each verifies the
// other. Operations run strictly in order because every verify consumes
// artifacts a prior sign staged onto disk.
package matrix

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/interopsig/sigmatrix/internal/classify"
	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/procexec"
	"github.com/interopsig/sigmatrix/internal/scenario"
	"github.com/interopsig/sigmatrix/internal/schema"
	"github.com/interopsig/sigmatrix/internal/staging"
	"github.com/interopsig/sigmatrix/internal/store"
)

const (
	// DefaultOpTimeout bounds keygen/sign/verify calls.
	DefaultOpTimeout = 3 * time.Minute
	// DefaultLongSignTimeout bounds 2^32 signing, whose tree
	// materialization cost scales with the active-epoch count.
	DefaultLongSignTimeout = 40 * time.Minute
)

type Options struct {
	ExchangeDir string
	RunID       string

	OpTimeout       time.Duration
	LongSignTimeout time.Duration

	// VerifyEpochOffset shifts every verify to epoch+offset. Combined with
	// ExpectVerifyRejection it expresses the negative scenario (verification
	// at a wrong epoch must fail) without touching the sequencing below.
	VerifyEpochOffset     uint32
	ExpectVerifyRejection bool

	Classifier classify.Classifier

	// ProgressPath, when set, receives one JSONL event per operation.
	ProgressPath string

	Now func() time.Time
}

func (o *Options) fill() {
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.LongSignTimeout <= 0 {
		o.LongSignTimeout = DefaultLongSignTimeout
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
}

// Runner drives the matrix for one implementation pair. It owns every
// OperationResult it produces; artifact slots are shared with the
// subprocesses read-only after staging.
type Runner struct {
	A    implprofile.Profile
	B    implprofile.Profile
	Opts Options

	echoW io.Writer
}

func NewRunner(a, b implprofile.Profile, opts Options, echoW io.Writer) *Runner {
	opts.fill()
	if echoW == nil {
		echoW = io.Discard
	}
	return &Runner{A: a, B: b, Opts: opts, echoW: echoW}
}

// RunScenario executes the six-cell matrix for cfg. Per-operation failures
// are recorded, not returned; the error path is reserved for harness-level
// filesystem trouble (unresettable staging area and the like).
func (r *Runner) RunScenario(ctx context.Context, cfg scenario.Config) (schema.ScenarioReportV1, staging.Set, error) {
	fmt.Fprintf(r.echoW, "\n=== Scenario: %s ===\n", cfg.Label)

	set := staging.ForScenario(r.Opts.ExchangeDir, r.A, r.B, cfg)
	if err := set.Reset(r.Opts.ExchangeDir); err != nil {
		return schema.ScenarioReportV1{}, set, err
	}

	rep := schema.ScenarioReportV1{
		Lifetime: cfg.Lifetime,
		Tag:      cfg.Tag(),
		Label:    cfg.Label,
		Epoch:    cfg.Epoch,
		Artifacts: schema.ArtifactPathsV1{
			APublicKey: set.APublicKey,
			ASignature: set.ASignature,
			BPublicKey: set.BPublicKey,
			BSignature: set.BSignature,
		},
	}

	record := func(res schema.OperationResultV1) {
		rep.Operations = append(rep.Operations, res)
		r.emitProgress(cfg, res)
		status := "PASS"
		if !res.Succeeded {
			status = "FAIL"
		}
		fmt.Fprintf(r.echoW, "%s  (%0.3fs)\n", status, res.DurationS)
	}

	// Operations 1-3: implementation A signs, then self- and cross-verify.
	aSign := r.runSign(ctx, schema.OpASign, r.A, cfg, set.APublicKey, set.ASignature)
	record(aSign)
	record(r.runVerifyGated(ctx, schema.OpASelfVerify, r.A, cfg, set.APublicKey, set.ASignature, aSign))
	record(r.runVerifyGated(ctx, schema.OpAToBVerify, r.B, cfg, set.APublicKey, set.ASignature, aSign))

	// Operations 4-6: the mirror half, completing bidirectional validation.
	bSign := r.runSign(ctx, schema.OpBSign, r.B, cfg, set.BPublicKey, set.BSignature)
	record(bSign)
	record(r.runVerifyGated(ctx, schema.OpBSelfVerify, r.B, cfg, set.BPublicKey, set.BSignature, bSign))
	record(r.runVerifyGated(ctx, schema.OpBToAVerify, r.A, cfg, set.BPublicKey, set.BSignature, bSign))

	return rep, set, nil
}

func (r *Runner) signTimeout(cfg scenario.Config) time.Duration {
	if cfg.Lifetime == "2^32" {
		return r.Opts.LongSignTimeout
	}
	return r.Opts.OpTimeout
}

// runSign performs the keygen+sign operation for one implementation and
// stages its outputs. argv-v2 tools split keygen from sign; both calls
// belong to the same matrix cell.
func (r *Runner) runSign(ctx context.Context, key string, p implprofile.Profile, cfg scenario.Config, pkSlot, sigSlot string) schema.OperationResultV1 {
	fmt.Fprintf(r.echoW, "\n-- %s key generation & signing (%s) --\n", p.Name, cfg.Lifetime)

	res := schema.OperationResultV1{Key: key}
	if err := staging.PrepareImpl(p, cfg); err != nil {
		res.ErrorCode = codes.IO
		return res
	}

	timeout := r.signTimeout(cfg)
	if p.Generation == implprofile.GenArgvV2 {
		keygen := r.exec(ctx, p, p.KeygenArgv(cfg), timeout)
		res.DurationS += keygen.Duration.Seconds()
		if !r.execOK(&res, keygen) {
			return res
		}
		// A failed keygen must fail the cell even though sign could still
		// exit zero against stale key material in the private dir.
		if !classify.SignAccepted(keygen.ExitCode) {
			res.ExitCode = keygen.ExitCode
			res.Stdout = keygen.Stdout
			res.Stderr = keygen.Stderr
			res.ErrorCode = codes.OpFailed
			return res
		}
	}

	sign := r.exec(ctx, p, p.SignArgv(cfg), timeout)
	res.DurationS += sign.Duration.Seconds()
	res.ExitCode = sign.ExitCode
	res.Stdout = sign.Stdout
	res.Stderr = sign.Stderr
	if !r.execOK(&res, sign) {
		return res
	}
	if !classify.SignAccepted(sign.ExitCode) {
		res.ErrorCode = codes.OpFailed
		return res
	}

	// Stage strictly after sign: the tool may regenerate its public key as
	// a side effect of signing, and the slot must hold the key that
	// actually matches the signature.
	if err := staging.StageSignOutputs(p, cfg, pkSlot, sigSlot); err != nil {
		res.Succeeded = false
		res.ErrorCode = codes.CodeOf(err)
		if res.ErrorCode == "" {
			res.ErrorCode = codes.IO
		}
		fmt.Fprintf(r.echoW, "%v\n", err)
		return res
	}
	fmt.Fprintf(r.echoW, "%s public key staged to: %s\n", p.Name, pkSlot)
	fmt.Fprintf(r.echoW, "%s signature staged to : %s\n", p.Name, sigSlot)
	res.Succeeded = true
	return res
}

// runVerifyGated skips the verify entirely when the sign it depends on
// failed: the cell is marked failed without spawning a subprocess.
func (r *Runner) runVerifyGated(ctx context.Context, key string, verifier implprofile.Profile, cfg scenario.Config, pkPath, sigPath string, gate schema.OperationResultV1) schema.OperationResultV1 {
	label := r.operationLabel(key)
	fmt.Fprintf(r.echoW, "\n-- %s (%s) --\n", label, cfg.Lifetime)

	res := schema.OperationResultV1{Key: key}
	if !gate.Succeeded {
		res.Skipped = true
		res.SkipReason = fmt.Sprintf("prerequisite %s failed", gate.Key)
		fmt.Fprintf(r.echoW, "skipped: %s\n", res.SkipReason)
		return res
	}

	if err := staging.RequireSlots(pkPath, sigPath); err != nil {
		res.ErrorCode = codes.CodeOf(err)
		fmt.Fprintf(r.echoW, "%v\n", err)
		return res
	}

	epoch := cfg.Epoch + r.Opts.VerifyEpochOffset
	run := r.exec(ctx, verifier, verifier.VerifyArgv(cfg, pkPath, sigPath, epoch), r.Opts.OpTimeout)
	res.DurationS = run.Duration.Seconds()
	res.ExitCode = run.ExitCode
	res.Stdout = run.Stdout
	res.Stderr = run.Stderr
	if !r.execOK(&res, run) {
		return res
	}

	accepted := classify.VerifyAccepted(run.ExitCode, run.Stdout, run.Stderr)
	if r.Opts.ExpectVerifyRejection {
		// Negative mode: the operation passes when the tool rejects.
		res.Succeeded = !accepted
	} else {
		res.Succeeded = accepted
	}
	if !res.Succeeded {
		res.ErrorCode = codes.OpFailed
	}
	return res
}

type execOutcome struct {
	procexec.Result
	spawnErr error
}

func (r *Runner) exec(ctx context.Context, p implprofile.Profile, argv []string, timeout time.Duration) execOutcome {
	res, err := procexec.Run(ctx, procexec.Spec{
		Argv:    argv,
		Dir:     p.WorkDir,
		Timeout: timeout,
	}, r.echoW)
	if err != nil {
		return execOutcome{spawnErr: err}
	}
	r.echoOutput(p, res)
	return execOutcome{Result: res}
}

// execOK folds spawn errors and timeouts into res. Returns false when the
// operation already failed at the process level.
func (r *Runner) execOK(res *schema.OperationResultV1, out execOutcome) bool {
	if out.spawnErr != nil {
		res.ErrorCode = codes.CodeOf(out.spawnErr)
		if res.ErrorCode == "" {
			res.ErrorCode = codes.Spawn
		}
		fmt.Fprintf(r.echoW, "%v\n", out.spawnErr)
		return false
	}
	if out.TimedOut {
		res.ErrorCode = codes.Timeout
		return false
	}
	return true
}

func (r *Runner) echoOutput(p implprofile.Profile, res procexec.Result) {
	cl := r.Opts.Classifier
	cl.NoisePrefixes = append(cl.NoisePrefixes, p.NoisePrefixes...)
	if out := cl.Display(res.Stdout); out != "" {
		fmt.Fprint(r.echoW, ensureNewline(out))
	}
	if errOut := cl.Display(res.Stderr); errOut != "" {
		fmt.Fprint(r.echoW, ensureNewline(errOut))
	}
}

func ensureNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// operationLabel renders the summary/table label for a matrix cell using
// the configured implementation names.
func (r *Runner) operationLabel(key string) string {
	a, b := r.A.Name, r.B.Name
	switch key {
	case schema.OpASign:
		return fmt.Sprintf("%s sign (keygen)", a)
	case schema.OpASelfVerify:
		return fmt.Sprintf("%s sign → %s verify", a, a)
	case schema.OpAToBVerify:
		return fmt.Sprintf("%s sign → %s verify", a, b)
	case schema.OpBSign:
		return fmt.Sprintf("%s sign (keygen)", b)
	case schema.OpBSelfVerify:
		return fmt.Sprintf("%s sign → %s verify", b, b)
	case schema.OpBToAVerify:
		return fmt.Sprintf("%s sign → %s verify", b, a)
	default:
		return key
	}
}

// OperationLabels maps every matrix cell to its display label, in execution
// order. The summary table reuses this.
func (r *Runner) OperationLabels() map[string]string {
	out := make(map[string]string, len(schema.OperationOrderV1))
	for _, key := range schema.OperationOrderV1 {
		out[key] = r.operationLabel(key)
	}
	return out
}

func (r *Runner) emitProgress(cfg scenario.Config, res schema.OperationResultV1) {
	if r.Opts.ProgressPath == "" {
		return
	}
	status := "fail"
	if res.Succeeded {
		status = "pass"
	} else if res.Skipped {
		status = "skip"
	}
	_ = store.AppendJSONL(r.Opts.ProgressPath, schema.ProgressEventV1{
		SchemaVersion: 1,
		RunID:         r.Opts.RunID,
		ScenarioTag:   cfg.Tag(),
		Operation:     res.Key,
		Status:        status,
		DurationMs:    int64(res.DurationS * 1000),
		At:            r.Opts.Now().Format(time.RFC3339Nano),
	})
}
