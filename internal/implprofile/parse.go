package implprofile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/interopsig/sigmatrix/internal/codes"
	"gopkg.in/yaml.v3"
)

// FileV1 is the on-disk profile pair format, YAML or JSON by extension.
// Exactly two implementations: the first is implementation A in the matrix,
// the second is implementation B.
type FileV1 struct {
	Version         int       `json:"version" yaml:"version"`
	Implementations []Profile `json:"implementations" yaml:"implementations"`
}

type Pair struct {
	A Profile
	B Profile
}

func ParseFile(path string) (Pair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pair{}, err
	}

	var f FileV1
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Pair{}, codes.Errorf(codes.Config, "invalid implementation profile yaml: %v", err)
		}
	default:
		if err := json.Unmarshal(raw, &f); err != nil {
			return Pair{}, codes.Errorf(codes.Config, "invalid implementation profile json: %v", err)
		}
	}

	if f.Version == 0 {
		// Allow omission as v1 for early ergonomics.
		f.Version = 1
	}
	if f.Version != 1 {
		return Pair{}, codes.Errorf(codes.Config, "unsupported implementation profile version (expected 1)")
	}
	return validatePair(f.Implementations)
}

func validatePair(impls []Profile) (Pair, error) {
	if len(impls) != 2 {
		return Pair{}, codes.Errorf(codes.Config,
			"expected exactly 2 implementations, got %d", len(impls))
	}
	for i := range impls {
		if err := impls[i].validate(); err != nil {
			return Pair{}, err
		}
	}
	if impls[0].Name == impls[1].Name {
		return Pair{}, codes.Errorf(codes.Config,
			"implementations must have distinct names, both are %q", impls[0].Name)
	}
	return Pair{A: impls[0], B: impls[1]}, nil
}

// Defaults are the two tools the harness grew up against: the Rust
// remote-signing tool and the Zig one, both speaking the combined positional
// generation. repoRoot anchors the relative paths.
func Defaults(repoRoot, privateRoot string) Pair {
	rustDir := filepath.Join(repoRoot, "benchmark", "rust_benchmark")
	pair, err := validatePair([]Profile{
		{
			Name:       "rust",
			Binary:     filepath.Join(rustDir, "target", "release", "remote_hashsig_tool"),
			WorkDir:    rustDir,
			PrivateDir: filepath.Join(privateRoot, "rust"),
			Generation: GenArgvV1,
			Build: BuildSpec{
				Argv: []string{"cargo", "build", "--release", "--bin", "remote_hashsig_tool"},
				Dir:  rustDir,
			},
		},
		{
			Name:       "zig",
			Binary:     filepath.Join(repoRoot, "zig-out", "bin", "zig-remote-hash-tool"),
			WorkDir:    repoRoot,
			PrivateDir: filepath.Join(privateRoot, "zig"),
			Generation: GenArgvV1,
			Build: BuildSpec{
				Argv: []string{"zig", "build", "zig-remote-hash-tool", "-Doptimize=ReleaseFast"},
				Dir:  repoRoot,
			},
		},
	})
	if err != nil {
		// Defaults are static; a validation failure here is a programming error.
		panic(err)
	}
	return pair
}
