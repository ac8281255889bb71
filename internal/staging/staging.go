// Package staging implements the artifact exchange protocol between the two
// implementations. Each tool writes only into its private directory; after a
// successful sign the harness copies the artifacts into the shared,
// tag-qualified exchange location that the other tool's verify reads from.
package staging

import (
	"os"
	"path/filepath"

	"github.com/interopsig/sigmatrix/internal/codes"
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/scenario"
	"github.com/interopsig/sigmatrix/internal/store"
)

// Set holds the four shared slots for one scenario. Slots are paths, not
// handles: the implementations consume them via the filesystem.
type Set struct {
	APublicKey string
	ASignature string
	BPublicKey string
	BSignature string
}

func (s Set) paths() []string {
	return []string{s.APublicKey, s.ASignature, s.BPublicKey, s.BSignature}
}

// slotPath derives the exchange name from the implementation's own private
// file name, which already embeds the scenario tag and the serialization
// extension. Prefixing the implementation name keeps the two sides apart.
func slotPath(exchangeDir string, p implprofile.Profile, privatePath string) string {
	return filepath.Join(exchangeDir, p.Name+"_"+filepath.Base(privatePath))
}

// ForScenario allocates the slot paths for cfg. No files are created; slots
// are populated by StageSignOutputs.
func ForScenario(exchangeDir string, a, b implprofile.Profile, cfg scenario.Config) Set {
	tag := cfg.Tag()
	return Set{
		APublicKey: slotPath(exchangeDir, a, a.PrivatePublicKeyPath(tag)),
		ASignature: slotPath(exchangeDir, a, a.PrivateSignaturePath(tag)),
		BPublicKey: slotPath(exchangeDir, b, b.PrivatePublicKeyPath(tag)),
		BSignature: slotPath(exchangeDir, b, b.PrivateSignaturePath(tag)),
	}
}

// Reset deletes any slot files left over from a prior run with the same tag.
// Stale artifacts would otherwise let a verify pass against output the
// current run never produced.
func (s Set) Reset(exchangeDir string) error {
	if err := os.MkdirAll(exchangeDir, 0o755); err != nil {
		return err
	}
	for _, p := range s.paths() {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// PrepareImpl sets up an implementation's private directory for a scenario.
// argv-v2 tools additionally read the lifetime class from a side file.
func PrepareImpl(p implprofile.Profile, cfg scenario.Config) error {
	if err := os.MkdirAll(p.PrivateDir, 0o755); err != nil {
		return err
	}
	if p.Generation == implprofile.GenArgvV2 {
		if err := store.WriteFileAtomic(p.LifetimeFilePath(), []byte(cfg.Lifetime)); err != nil {
			return err
		}
	}
	return nil
}

// StageSignOutputs copies a successful sign's public key and signature from
// the implementation's private directory into the given slots. It must run
// after sign completes, never before: signing can regenerate the public-key
// artifact, and staging earlier would capture a stale key.
func StageSignOutputs(p implprofile.Profile, cfg scenario.Config, pkSlot, sigSlot string) error {
	tag := cfg.Tag()
	if err := stageOne(p.PrivatePublicKeyPath(tag), pkSlot, p.Name, "public key"); err != nil {
		return err
	}
	return stageOne(p.PrivateSignaturePath(tag), sigSlot, p.Name, "signature")
}

func stageOne(src, dst, implName, kind string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return codes.Errorf(codes.MissingArtifact,
			"%s reported success but produced no %s at %s", implName, kind, src)
	} else if err != nil {
		return err
	}
	if _, err := store.CopyFile(src, dst); err != nil {
		return err
	}
	return nil
}

// RequireSlots checks that every listed slot file exists before a verify
// consumes it. A deleted artifact surfaces as a missing-artifact failure of
// that operation, not a crash.
func RequireSlots(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return codes.Errorf(codes.MissingArtifact, "expected staged artifact missing: %s", p)
		} else if err != nil {
			return err
		}
	}
	return nil
}
