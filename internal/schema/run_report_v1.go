package schema

// RunReportJSONV1 is the machine-readable result of one full matrix run,
// persisted to <exchange>/run.report.json and printed on stdout with --json.
type RunReportJSONV1 struct {
	SchemaVersion int                `json:"schemaVersion"`
	RunID         string             `json:"runId"`
	StartedAt     string             `json:"startedAt"`
	CompletedAt   string             `json:"completedAt"`
	ImplA         string             `json:"implA"`
	ImplB         string             `json:"implB"`
	OverallOK     bool               `json:"overallOk"`
	Scenarios     []ScenarioReportV1 `json:"scenarios"`
}

type ScenarioReportV1 struct {
	Lifetime   string              `json:"lifetime"`
	Tag        string              `json:"tag"`
	Label      string              `json:"label"`
	Epoch      uint32              `json:"epoch"`
	Operations []OperationResultV1 `json:"operations"`
	Artifacts  ArtifactPathsV1     `json:"artifacts"`
	Comparison *ComparisonReportV1 `json:"comparison,omitempty"`
}

// ArtifactPathsV1 references the staged exchange files for one scenario.
type ArtifactPathsV1 struct {
	APublicKey string `json:"aPublicKey"`
	ASignature string `json:"aSignature"`
	BPublicKey string `json:"bPublicKey"`
	BSignature string `json:"bSignature"`
}

// ComparisonReportV1 records byte-size agreement between the two
// implementations' artifacts. Findings are advisory: they never flip
// OverallOK, but a mismatch is a strong drift signal and is surfaced in the
// summary table.
type ComparisonReportV1 struct {
	PublicKeyA int64            `json:"publicKeyBytesA"`
	PublicKeyB int64            `json:"publicKeyBytesB"`
	SignatureA int64            `json:"signatureBytesA"`
	SignatureB int64            `json:"signatureBytesB"`
	SecretKeyA int64            `json:"secretKeyBytesA,omitempty"`
	SecretKeyB int64            `json:"secretKeyBytesB,omitempty"`
	Findings   []SizeMismatchV1 `json:"findings,omitempty"`
}

type SizeMismatchV1 struct {
	Artifact string `json:"artifact"` // public_key|signature|secret_key
	BytesA   int64  `json:"bytesA"`
	BytesB   int64  `json:"bytesB"`
}
