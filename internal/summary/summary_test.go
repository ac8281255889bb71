package summary

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/interopsig/sigmatrix/internal/schema"
)

func sampleScenarios() []schema.ScenarioReportV1 {
	return []schema.ScenarioReportV1{
		{
			Lifetime: "2^8",
			Tag:      "2pow8",
			Label:    "Lifetime 2^8",
			Operations: []schema.OperationResultV1{
				{Key: schema.OpASign, Succeeded: true, DurationS: 0.412},
				{Key: schema.OpASelfVerify, Succeeded: true, DurationS: 0.031},
				{Key: schema.OpAToBVerify, Succeeded: true, DurationS: 0.044},
				{Key: schema.OpBSign, Succeeded: true, DurationS: 0.388},
				{Key: schema.OpBSelfVerify, Succeeded: true, DurationS: 0.029},
				{Key: schema.OpBToAVerify, Succeeded: true, DurationS: 0.041},
			},
			Artifacts: schema.ArtifactPathsV1{
				APublicKey: "/exchange/rust_public_2pow8.key.json",
				ASignature: "/exchange/rust_signature_2pow8.bin",
				BPublicKey: "/exchange/zig_public_2pow8.key.json",
				BSignature: "/exchange/zig_signature_2pow8.bin",
			},
			Comparison: &schema.ComparisonReportV1{
				PublicKeyA: 48, PublicKeyB: 48,
				SignatureA: 3116, SignatureB: 3116,
			},
		},
		{
			Lifetime: "2^18",
			Tag:      "2pow18",
			Label:    "Lifetime 2^18",
			Operations: []schema.OperationResultV1{
				{Key: schema.OpASign, Succeeded: false, DurationS: 180.002, ErrorCode: "SIGMAT_E_TIMEOUT"},
				{Key: schema.OpASelfVerify, Skipped: true, SkipReason: "prerequisite a_sign failed"},
				{Key: schema.OpAToBVerify, Skipped: true, SkipReason: "prerequisite a_sign failed"},
				{Key: schema.OpBSign, Succeeded: true, DurationS: 42.110},
				{Key: schema.OpBSelfVerify, Succeeded: true, DurationS: 0.301},
				{Key: schema.OpBToAVerify, Succeeded: false, DurationS: 0.288, ErrorCode: "SIGMAT_E_OP_FAILED"},
			},
			Artifacts: schema.ArtifactPathsV1{
				APublicKey: "/exchange/rust_public_2pow18.key.json",
				ASignature: "/exchange/rust_signature_2pow18.bin",
				BPublicKey: "/exchange/zig_public_2pow18.key.json",
				BSignature: "/exchange/zig_signature_2pow18.bin",
			},
			Comparison: &schema.ComparisonReportV1{
				PublicKeyA: 48, PublicKeyB: 52,
				Findings: []schema.SizeMismatchV1{
					{Artifact: "public_key", BytesA: 48, BytesB: 52},
				},
			},
		},
	}
}

func sampleLabels() map[string]string {
	return map[string]string{
		schema.OpASign:       "rust sign (keygen)",
		schema.OpASelfVerify: "rust sign → rust verify",
		schema.OpAToBVerify:  "rust sign → zig verify",
		schema.OpBSign:       "zig sign (keygen)",
		schema.OpBSelfVerify: "zig sign → zig verify",
		schema.OpBToAVerify:  "zig sign → rust verify",
	}
}

func TestOverall(t *testing.T) {
	t.Parallel()

	scenarios := sampleScenarios()
	if Overall(scenarios) {
		t.Fatalf("failed operations must flip overall to false")
	}
	if !Overall(scenarios[:1]) {
		t.Fatalf("all-pass scenario must be overall true")
	}
}

func TestOverall_ComparatorFindingsAreAdvisory(t *testing.T) {
	t.Parallel()

	sc := sampleScenarios()[0]
	sc.Comparison = &schema.ComparisonReportV1{
		Findings: []schema.SizeMismatchV1{{Artifact: "signature", BytesA: 1, BytesB: 2}},
	}
	if !Overall([]schema.ScenarioReportV1{sc}) {
		t.Fatalf("a comparator finding alone must not fail the run")
	}
}

func TestRenderTable_Golden(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	RenderTable(&buf, sampleScenarios(), sampleLabels())
	RenderVerdict(&buf, Overall(sampleScenarios()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "summary_table", buf.Bytes())
}
