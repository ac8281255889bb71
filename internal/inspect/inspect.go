// Package inspect drives both implementations' diagnostic inspect verb
// against the same key pair on disk and cross-checks the public-key prefix
// they report. It is a human aid for debugging deserialization drift and
// never participates in pass/fail determination.
package inspect

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/procexec"
)

const prefixMarker = "Public key (first 8 bytes)"

type Report struct {
	PrefixA string `json:"prefixA"`
	PrefixB string `json:"prefixB"`
	Match   bool   `json:"match"`
}

// PublicKeyPrefix extracts the reported prefix from an inspect invocation's
// combined output. Two report formats exist in the wild:
//
//	Public key (first 8 bytes): [db, 0c, 25, 12, f4, 7f, 26, 09]
//	Public key (first 8 bytes): db0c2512f47f2609
//
// Both normalize to bare lowercase hex. Some tools print diagnostics on
// stderr only, so both channels are scanned.
func PublicKeyPrefix(stdout, stderr string) (string, bool) {
	for _, line := range strings.Split(stdout+"\n"+stderr, "\n") {
		idx := strings.Index(line, prefixMarker)
		if idx < 0 {
			continue
		}
		rest := line[idx+len(prefixMarker):]
		rest = strings.TrimPrefix(strings.TrimSpace(rest), ":")
		if normalized := Normalize(rest); normalized != "" {
			return normalized, true
		}
	}
	return "", false
}

// Normalize strips bracket/separator framing and lowercases, leaving only
// hex digits.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
			b.WriteRune(r)
		case r == '[', r == ']', r == ',', r == ' ', r == '\t':
			// framing
		default:
			return ""
		}
	}
	return b.String()
}

// CrossCheck runs inspect on both implementations and compares what they
// deserialized. A missing prefix line is a failed inspect, not a crash.
func CrossCheck(ctx context.Context, a, b implprofile.Profile, skPath, pkPath, lifetime string, timeout time.Duration, echoW io.Writer) (Report, error) {
	prefixA, err := runOne(ctx, a, skPath, pkPath, lifetime, timeout, echoW)
	if err != nil {
		return Report{}, err
	}
	prefixB, err := runOne(ctx, b, skPath, pkPath, lifetime, timeout, echoW)
	if err != nil {
		return Report{}, err
	}
	return Report{
		PrefixA: prefixA,
		PrefixB: prefixB,
		Match:   prefixA == prefixB,
	}, nil
}

func runOne(ctx context.Context, p implprofile.Profile, skPath, pkPath, lifetime string, timeout time.Duration, echoW io.Writer) (string, error) {
	res, err := procexec.Run(ctx, procexec.Spec{
		Argv:    p.InspectArgv(skPath, pkPath, lifetime),
		Dir:     p.WorkDir,
		Timeout: timeout,
	}, echoW)
	if err != nil {
		return "", err
	}
	if res.TimedOut {
		return "", codes.Errorf(codes.Timeout, "%s inspect timed out", p.Name)
	}
	if res.ExitCode != 0 {
		return "", codes.Errorf(codes.OpFailed, "%s inspect exited %d", p.Name, res.ExitCode)
	}
	prefix, ok := PublicKeyPrefix(res.Stdout, res.Stderr)
	if !ok {
		return "", codes.Errorf(codes.OpFailed, "%s inspect printed no public-key prefix", p.Name)
	}
	return prefix, nil
}
