// Package implprofile describes the two signing-tool implementations under
// test: where their binaries live, how to rebuild them, and which
// protocol-message generation their command line speaks. The harness treats
// the tools as opaque executables; profiles are the entire contract.
package implprofile

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/ids"
	"github.com/interopsig/sigmatrix/internal/scenario"
)

// Protocol generations. The argument order and the presence of the format
// flag changed between tool generations; the verb set did not.
const (
	// GenArgvV1 is the combined positional form: sign performs keygen+sign
	// in one call and takes explicit output paths.
	GenArgvV1 = "argv-v1"
	// GenArgvV2 is the staged form: keygen writes a key pair to a fixed
	// private location, sign reads it back, and both take an --ssz flag.
	GenArgvV2 = "argv-v2"
)

func IsValidGeneration(s string) bool {
	return s == GenArgvV1 || s == GenArgvV2
}

type BuildSpec struct {
	Argv           []string `json:"argv" yaml:"argv"`
	Dir            string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	TimeoutSeconds int64    `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
}

type Profile struct {
	Name       string    `json:"name" yaml:"name"`
	Binary     string    `json:"binary" yaml:"binary"`
	WorkDir    string    `json:"workDir,omitempty" yaml:"workDir,omitempty"`
	PrivateDir string    `json:"privateDir" yaml:"privateDir"`
	Generation string    `json:"generation,omitempty" yaml:"generation,omitempty"`
	Build      BuildSpec `json:"build" yaml:"build"`

	// NoisePrefixes extend the classifier's default diagnostic filter for
	// this implementation's output.
	NoisePrefixes []string `json:"noisePrefixes,omitempty" yaml:"noisePrefixes,omitempty"`
}

// DefaultBuildTimeoutSeconds covers release builds of either tool.
const DefaultBuildTimeoutSeconds = 600

func (p Profile) BuildTimeoutSeconds() int64 {
	if p.Build.TimeoutSeconds > 0 {
		return p.Build.TimeoutSeconds
	}
	return DefaultBuildTimeoutSeconds
}

// Private artifact paths. Each implementation writes keygen/sign outputs
// only here; the staging protocol copies them into the shared exchange dir.
// Extensions follow the serialization generation: textual key + binary
// signature for argv-v1, uniform SSZ for argv-v2.

func (p Profile) PrivatePublicKeyPath(tag string) string {
	if p.Generation == GenArgvV2 {
		return filepath.Join(p.PrivateDir, fmt.Sprintf("pk_%s.ssz", tag))
	}
	return filepath.Join(p.PrivateDir, fmt.Sprintf("public_%s.key.json", tag))
}

func (p Profile) PrivateSignaturePath(tag string) string {
	if p.Generation == GenArgvV2 {
		return filepath.Join(p.PrivateDir, fmt.Sprintf("sig_%s.ssz", tag))
	}
	return filepath.Join(p.PrivateDir, fmt.Sprintf("signature_%s.bin", tag))
}

func (p Profile) PrivateSecretKeyPath(tag string) string {
	if p.Generation == GenArgvV2 {
		return filepath.Join(p.PrivateDir, fmt.Sprintf("sk_%s.ssz", tag))
	}
	return filepath.Join(p.PrivateDir, fmt.Sprintf("secret_%s.key.json", tag))
}

// LifetimeFilePath is the side-channel file argv-v2 tools read the lifetime
// class from at sign/verify time.
func (p Profile) LifetimeFilePath() string {
	return filepath.Join(p.PrivateDir, "lifetime.txt")
}

// KeygenArgv is only meaningful for argv-v2; argv-v1 tools fold key
// generation into sign.
func (p Profile) KeygenArgv(cfg scenario.Config) []string {
	return []string{p.Binary, "keygen", cfg.SeedHex, cfg.Lifetime, "--ssz"}
}

func (p Profile) SignArgv(cfg scenario.Config) []string {
	if p.Generation == GenArgvV2 {
		return []string{p.Binary, "sign", cfg.Message, formatUint32(cfg.Epoch), "--ssz"}
	}
	return []string{
		p.Binary,
		"sign",
		cfg.Message,
		p.PrivatePublicKeyPath(cfg.Tag()),
		p.PrivateSignaturePath(cfg.Tag()),
		cfg.SeedHex,
		formatUint32(cfg.Epoch),
		strconv.FormatUint(cfg.NumActiveEpochs, 10),
		strconv.FormatUint(cfg.StartEpoch, 10),
		cfg.Lifetime,
	}
}

// VerifyArgv takes explicit artifact paths in both generations; that is what
// makes cross-feeding the other implementation's artifacts possible.
func (p Profile) VerifyArgv(cfg scenario.Config, pkPath, sigPath string, epoch uint32) []string {
	if p.Generation == GenArgvV2 {
		return []string{p.Binary, "verify", sigPath, pkPath, cfg.Message, formatUint32(epoch), "--ssz"}
	}
	return []string{p.Binary, "verify", cfg.Message, pkPath, sigPath, formatUint32(epoch), cfg.Lifetime}
}

func (p Profile) InspectArgv(skPath, pkPath, lifetime string) []string {
	return []string{p.Binary, "inspect", skPath, pkPath, lifetime}
}

func formatUint32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func (p *Profile) validate() error {
	p.Name = ids.SanitizeComponent(strings.TrimSpace(p.Name))
	if p.Name == "" {
		return codes.Errorf(codes.Config, "implementation profile missing name")
	}
	if strings.TrimSpace(p.Binary) == "" {
		return codes.Errorf(codes.Config, "implementation %q missing binary path", p.Name)
	}
	if strings.TrimSpace(p.PrivateDir) == "" {
		return codes.Errorf(codes.Config, "implementation %q missing privateDir", p.Name)
	}
	if p.Generation == "" {
		p.Generation = GenArgvV1
	}
	if !IsValidGeneration(p.Generation) {
		return codes.Errorf(codes.Config,
			"implementation %q has unknown generation %q (expected %s|%s)", p.Name, p.Generation, GenArgvV1, GenArgvV2)
	}
	if len(p.Build.Argv) == 0 {
		return codes.Errorf(codes.Config, "implementation %q missing build argv", p.Name)
	}
	return nil
}
