package matrix

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/interopsig/sigmatrix/internal/classify"
	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/scenario"
	"github.com/interopsig/sigmatrix/internal/schema"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh")
	}
}

// fakeToolScript emulates an argv-v1 signing tool: sign derives deterministic
// artifacts from its arguments, verify recomputes and compares. Two fakes
// given the same seed are bit-compatible, which is exactly the property the
// matrix exists to check.
const fakeToolScript = `#!/bin/sh
cmd="$1"; shift
case "$cmd" in
sign)
  msg="$1"; pk="$2"; sig="$3"; seed="$4"; epoch="$5"
  printf 'PK:%s' "$seed" > "$pk"
  printf 'SIG:%s:%s:%s' "$seed" "$msg" "$epoch" > "$sig"
  echo "DEBUG: tree built"
  ;;
verify)
  msg="$1"; pk="$2"; sig="$3"; epoch="$4"
  seed=$(cut -d: -f2 "$pk")
  want="SIG:$seed:$msg:$epoch"
  got=$(cat "$sig")
  if [ "$got" = "$want" ]; then
    echo "VERIFY_RESULT:true"
  else
    echo "VERIFY_RESULT:false"
  fi
  ;;
esac
exit 0
`

func writeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	return path
}

func fakePair(t *testing.T, scriptA, scriptB string) (implprofile.Profile, implprofile.Profile, string) {
	t.Helper()
	root := t.TempDir()
	a := implprofile.Profile{
		Name:       "alpha",
		Binary:     writeTool(t, root, "alpha-tool", scriptA),
		PrivateDir: filepath.Join(root, "private", "alpha"),
		Generation: implprofile.GenArgvV1,
		Build:      implprofile.BuildSpec{Argv: []string{"true"}},
	}
	b := implprofile.Profile{
		Name:       "beta",
		Binary:     writeTool(t, root, "beta-tool", scriptB),
		PrivateDir: filepath.Join(root, "private", "beta"),
		Generation: implprofile.GenArgvV1,
		Build:      implprofile.BuildSpec{Argv: []string{"true"}},
	}
	return a, b, filepath.Join(root, "exchange")
}

func smallScenario(t *testing.T) scenario.Config {
	t.Helper()
	cfgs, err := scenario.Build([]string{"2^8"}, scenario.DefaultSeedHex)
	if err != nil {
		t.Fatalf("scenario.Build: %v", err)
	}
	return cfgs[0]
}

func TestRunScenario_AllSixPass(t *testing.T) {
	t.Parallel()
	requireSh(t)

	a, b, exchange := fakePair(t, fakeToolScript, fakeToolScript)
	var echo bytes.Buffer
	r := NewRunner(a, b, Options{
		ExchangeDir: exchange,
		RunID:       "20260830-120000Z-abcdef",
		Classifier:  classify.New(false),
	}, &echo)

	rep, set, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if len(rep.Operations) != 6 {
		t.Fatalf("expected 6 operations, got %d", len(rep.Operations))
	}
	for i, op := range rep.Operations {
		if op.Key != schema.OperationOrderV1[i] {
			t.Fatalf("operation %d out of order: %s", i, op.Key)
		}
		if !op.Succeeded {
			t.Fatalf("operation %s failed: %+v", op.Key, op)
		}
	}
	for _, p := range []string{set.APublicKey, set.ASignature, set.BPublicKey, set.BSignature} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("staged artifact missing: %s", p)
		}
	}
	if !strings.Contains(echo.String(), "$ "+a.Binary) {
		t.Fatalf("command echo missing from output")
	}
	if strings.Contains(echo.String(), "DEBUG: tree built") {
		t.Fatalf("diagnostic noise leaked into display output")
	}
}

func TestRunScenario_CrossVerifyDetectsIncompatibleArtifacts(t *testing.T) {
	t.Parallel()
	requireSh(t)

	// beta frames its signature differently, so cross-verification fails in
	// both directions while both self-verifies pass.
	broken := strings.ReplaceAll(fakeToolScript, "SIG:%s:%s:%s", "BSIG:%s:%s:%s")
	broken = strings.ReplaceAll(broken, `want="SIG:`, `want="BSIG:`)
	a, b, exchange := fakePair(t, fakeToolScript, broken)
	r := NewRunner(a, b, Options{ExchangeDir: exchange, Classifier: classify.New(false)}, nil)

	rep, _, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	got := map[string]bool{}
	for _, op := range rep.Operations {
		got[op.Key] = op.Succeeded
	}
	if !got[schema.OpASign] || !got[schema.OpASelfVerify] || !got[schema.OpBSign] || !got[schema.OpBSelfVerify] {
		t.Fatalf("self operations should pass: %+v", got)
	}
	if got[schema.OpAToBVerify] || got[schema.OpBToAVerify] {
		t.Fatalf("cross operations should fail: %+v", got)
	}
}

func TestRunScenario_SignFailureGatesDependentVerifies(t *testing.T) {
	t.Parallel()
	requireSh(t)

	marker := filepath.Join(t.TempDir(), "verify-ran")
	failingSign := fmt.Sprintf(`#!/bin/sh
case "$1" in
sign) echo "keygen exploded" >&2; exit 1 ;;
verify) echo ran >> %q; echo "VERIFY_RESULT:true" ;;
esac
`, marker)
	a, b, exchange := fakePair(t, failingSign, fakeToolScript)
	r := NewRunner(a, b, Options{ExchangeDir: exchange, Classifier: classify.New(false)}, nil)

	rep, _, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}

	byKey := map[string]schema.OperationResultV1{}
	for _, op := range rep.Operations {
		byKey[op.Key] = op
	}
	if byKey[schema.OpASign].Succeeded {
		t.Fatalf("a_sign should have failed")
	}
	for _, key := range []string{schema.OpASelfVerify, schema.OpAToBVerify} {
		op := byKey[key]
		if op.Succeeded || !op.Skipped {
			t.Fatalf("%s should be skipped and failed: %+v", key, op)
		}
	}
	// B's half of the matrix is independent and still runs.
	for _, key := range []string{schema.OpBSign, schema.OpBSelfVerify} {
		if !byKey[key].Succeeded {
			t.Fatalf("%s should pass despite a_sign failure: %+v", key, byKey[key])
		}
	}
	// b_to_a runs A's verify verb, which works in this fake.
	if !byKey[schema.OpBToAVerify].Succeeded {
		t.Fatalf("b_to_a should pass: %+v", byKey[schema.OpBToAVerify])
	}
	// A's verify verb ran exactly once (b_to_a); the two gated cells never
	// spawned it.
	mb, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if got := strings.Count(string(mb), "ran"); got != 1 {
		t.Fatalf("A verify spawned %d times, want 1", got)
	}
}

func TestRunScenario_KeygenFailureFailsSignCell(t *testing.T) {
	t.Parallel()
	requireSh(t)

	// Staged-generation tool whose keygen exits non-zero while sign exits
	// zero. Stale key material from an earlier run sits in the private dir;
	// the cell must still fail instead of staging it.
	badKeygen := `#!/bin/sh
case "$1" in
keygen) echo "keygen exploded" >&2; exit 1 ;;
sign) exit 0 ;;
verify) echo "VERIFY_RESULT:true" ;;
esac
exit 0
`
	a, b, exchange := fakePair(t, badKeygen, fakeToolScript)
	a.Generation = implprofile.GenArgvV2
	cfg := smallScenario(t)
	tag := cfg.Tag()
	if err := os.MkdirAll(a.PrivateDir, 0o755); err != nil {
		t.Fatalf("mkdir private: %v", err)
	}
	for _, stale := range []string{a.PrivatePublicKeyPath(tag), a.PrivateSignaturePath(tag)} {
		if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
			t.Fatalf("seed stale artifact: %v", err)
		}
	}

	r := NewRunner(a, b, Options{ExchangeDir: exchange, Classifier: classify.New(false)}, nil)
	rep, set, err := r.RunScenario(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}

	aSign := rep.Operations[0]
	if aSign.Succeeded {
		t.Fatalf("keygen exit 1 must fail the sign cell: %+v", aSign)
	}
	if aSign.ErrorCode != codes.OpFailed {
		t.Fatalf("error code = %s, want %s", aSign.ErrorCode, codes.OpFailed)
	}
	for _, op := range rep.Operations[1:3] {
		if !op.Skipped {
			t.Fatalf("%s should be gated by the failed sign: %+v", op.Key, op)
		}
	}
	// The stale key must never reach the exchange slot.
	if _, err := os.Stat(set.APublicKey); !os.IsNotExist(err) {
		t.Fatalf("stale public key was staged")
	}
}

func TestRunScenario_SignClaimsSuccessButWritesNothing(t *testing.T) {
	t.Parallel()
	requireSh(t)

	liar := `#!/bin/sh
case "$1" in
sign) echo "all good" ;;
verify) echo "VERIFY_RESULT:true" ;;
esac
exit 0
`
	a, b, exchange := fakePair(t, liar, fakeToolScript)
	r := NewRunner(a, b, Options{ExchangeDir: exchange, Classifier: classify.New(false)}, nil)

	rep, _, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	aSign := rep.Operations[0]
	if aSign.Succeeded {
		t.Fatalf("zero exit without artifacts must fail the operation")
	}
	if aSign.ErrorCode != codes.MissingArtifact {
		t.Fatalf("error code = %s, want %s", aSign.ErrorCode, codes.MissingArtifact)
	}
}

func TestRunScenario_SignTimeout(t *testing.T) {
	t.Parallel()
	requireSh(t)

	slow := `#!/bin/sh
case "$1" in
sign) sleep 5 ;;
verify) echo "VERIFY_RESULT:true" ;;
esac
`
	a, b, exchange := fakePair(t, slow, fakeToolScript)
	r := NewRunner(a, b, Options{
		ExchangeDir: exchange,
		OpTimeout:   100 * time.Millisecond,
		Classifier:  classify.New(false),
	}, nil)

	rep, _, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	aSign := rep.Operations[0]
	if aSign.Succeeded || aSign.ErrorCode != codes.Timeout {
		t.Fatalf("expected timeout failure, got %+v", aSign)
	}
	if !rep.Operations[1].Skipped {
		t.Fatalf("a_self should be skipped after sign timeout")
	}
}

func TestRunScenario_EpochMismatchNegativeMode(t *testing.T) {
	t.Parallel()
	requireSh(t)

	a, b, exchange := fakePair(t, fakeToolScript, fakeToolScript)
	r := NewRunner(a, b, Options{
		ExchangeDir:           exchange,
		VerifyEpochOffset:     1,
		ExpectVerifyRejection: true,
		Classifier:            classify.New(false),
	}, nil)

	rep, _, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	for _, op := range rep.Operations {
		if !op.Succeeded {
			t.Fatalf("negative-mode operation %s should pass (signature rejected as expected): %+v", op.Key, op)
		}
	}
}

func TestRunScenario_GlyphGenerationVerifier(t *testing.T) {
	t.Parallel()
	requireSh(t)

	glyph := strings.ReplaceAll(fakeToolScript, `echo "VERIFY_RESULT:true"`, `echo "Signature valid ✅"`)
	glyph = strings.ReplaceAll(glyph, `echo "VERIFY_RESULT:false"`, `echo "Signature invalid"`)
	a, b, exchange := fakePair(t, fakeToolScript, glyph)
	r := NewRunner(a, b, Options{ExchangeDir: exchange, Classifier: classify.New(false)}, nil)

	rep, _, err := r.RunScenario(context.Background(), smallScenario(t))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	for _, op := range rep.Operations {
		if !op.Succeeded {
			t.Fatalf("mixed-generation matrix should pass, %s failed: %+v", op.Key, op)
		}
	}
}

func TestRunScenario_ProgressEvents(t *testing.T) {
	t.Parallel()
	requireSh(t)

	a, b, exchange := fakePair(t, fakeToolScript, fakeToolScript)
	progress := filepath.Join(t.TempDir(), "progress.jsonl")
	r := NewRunner(a, b, Options{
		ExchangeDir:  exchange,
		RunID:        "20260830-120000Z-abcdef",
		ProgressPath: progress,
		Classifier:   classify.New(false),
	}, nil)

	if _, _, err := r.RunScenario(context.Background(), smallScenario(t)); err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	b2, err := os.ReadFile(progress)
	if err != nil {
		t.Fatalf("read progress: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b2)), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 progress events, got %d", len(lines))
	}
}
