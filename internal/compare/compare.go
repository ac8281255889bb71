// Package compare detects silent serialization-format drift: after the
// matrix completes it measures corresponding artifacts from both
// implementations against each other. Findings are advisory, since two tools
// at different serialization generations legitimately frame keys differently,
// but a mismatch between same-format tools is a compatibility bug.
package compare

import (
	"github.com/interopsig/sigmatrix/internal/implprofile"
	"github.com/interopsig/sigmatrix/internal/scenario"
	"github.com/interopsig/sigmatrix/internal/schema"
	"github.com/interopsig/sigmatrix/internal/staging"
	"github.com/interopsig/sigmatrix/internal/store"
)

// Run compares byte sizes of public keys, signatures, and, when both exist
// on disk, secret keys. Secret keys never leave the private directories, so
// they are read from there rather than from the exchange.
func Run(set staging.Set, a, b implprofile.Profile, cfg scenario.Config) (schema.ComparisonReportV1, error) {
	var rep schema.ComparisonReportV1

	tag := cfg.Tag()
	pairs := []struct {
		artifact     string
		pathA, pathB string
		sizeA, sizeB *int64
	}{
		{"public_key", set.APublicKey, set.BPublicKey, &rep.PublicKeyA, &rep.PublicKeyB},
		{"signature", set.ASignature, set.BSignature, &rep.SignatureA, &rep.SignatureB},
		{"secret_key", a.PrivateSecretKeyPath(tag), b.PrivateSecretKeyPath(tag), &rep.SecretKeyA, &rep.SecretKeyB},
	}

	for _, pair := range pairs {
		sizeA, okA, err := store.FileSize(pair.pathA)
		if err != nil {
			return rep, err
		}
		sizeB, okB, err := store.FileSize(pair.pathB)
		if err != nil {
			return rep, err
		}
		if !okA || !okB {
			// One side absent: nothing to compare. Missing sign outputs
			// already failed their own operation.
			continue
		}
		*pair.sizeA = sizeA
		*pair.sizeB = sizeB
		if sizeA != sizeB {
			rep.Findings = append(rep.Findings, schema.SizeMismatchV1{
				Artifact: pair.artifact,
				BytesA:   sizeA,
				BytesB:   sizeB,
			})
		}
	}
	return rep, nil
}
