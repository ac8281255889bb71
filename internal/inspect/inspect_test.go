package inspect

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/implprofile"
)

func TestPublicKeyPrefix_BracketedFormat(t *testing.T) {
	t.Parallel()

	stderr := "Key metadata\nPublic key (first 8 bytes): [db, 0c, 25, 12, f4, 7f, 26, 09]\n"
	got, ok := PublicKeyPrefix("", stderr)
	if !ok || got != "db0c2512f47f2609" {
		t.Fatalf("PublicKeyPrefix = %q, %v", got, ok)
	}
}

func TestPublicKeyPrefix_BareHexFormat(t *testing.T) {
	t.Parallel()

	stdout := "Public key (first 8 bytes): db0c2512f47f2609\n"
	got, ok := PublicKeyPrefix(stdout, "")
	if !ok || got != "db0c2512f47f2609" {
		t.Fatalf("PublicKeyPrefix = %q, %v", got, ok)
	}
}

func TestPublicKeyPrefix_MissingLine(t *testing.T) {
	t.Parallel()

	if _, ok := PublicKeyPrefix("no prefix here\n", ""); ok {
		t.Fatalf("expected no match")
	}
}

func TestNormalize_RejectsNonHexPayload(t *testing.T) {
	t.Parallel()

	if got := Normalize("not hex at all"); got != "" {
		t.Fatalf("Normalize = %q, want empty", got)
	}
	if got := Normalize("[AB, cd]"); got != "abcd" {
		t.Fatalf("Normalize = %q, want abcd", got)
	}
}

func inspectProfile(t *testing.T, name, script string) implprofile.Profile {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, name)
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	return implprofile.Profile{
		Name:       name,
		Binary:     bin,
		PrivateDir: filepath.Join(dir, "private"),
		Generation: implprofile.GenArgvV1,
	}
}

func TestCrossCheck(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh")
	}

	a := inspectProfile(t, "rusty", `#!/bin/sh
echo "Public key (first 8 bytes): [db, 0c, 25, 12, f4, 7f, 26, 09]" >&2
`)
	b := inspectProfile(t, "ziggy", `#!/bin/sh
echo "Public key (first 8 bytes): db0c2512f47f2609"
`)

	rep, err := CrossCheck(context.Background(), a, b, "/k/sk.ssz", "/k/pk.ssz", "2^32", time.Minute, nil)
	if err != nil {
		t.Fatalf("CrossCheck: %v", err)
	}
	if !rep.Match {
		t.Fatalf("prefixes should match: %+v", rep)
	}

	c := inspectProfile(t, "silent", "#!/bin/sh\necho metadata only\n")
	_, err = CrossCheck(context.Background(), a, c, "/k/sk.ssz", "/k/pk.ssz", "2^32", time.Minute, nil)
	if !codes.Is(err, codes.OpFailed) {
		t.Fatalf("expected %s for missing prefix, got: %v", codes.OpFailed, err)
	}
}
