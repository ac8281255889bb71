package schema

import "strings"

// Operation keys identify the six cells of the sign/verify matrix. The order
// of OperationOrderV1 is load-bearing: it is both the execution order and the
// summary row order.
const (
	OpASign       = "a_sign"
	OpASelfVerify = "a_self"
	OpAToBVerify  = "a_to_b"
	OpBSign       = "b_sign"
	OpBSelfVerify = "b_self"
	OpBToAVerify  = "b_to_a"
)

var OperationOrderV1 = []string{
	OpASign,
	OpASelfVerify,
	OpAToBVerify,
	OpBSign,
	OpBSelfVerify,
	OpBToAVerify,
}

func IsValidOperationV1(s string) bool {
	switch strings.TrimSpace(s) {
	case OpASign, OpASelfVerify, OpAToBVerify, OpBSign, OpBSelfVerify, OpBToAVerify:
		return true
	default:
		return false
	}
}

// OperationResultV1 is the persisted outcome of one subprocess invocation.
// Stdout/stderr are retained raw for diagnostics; display filtering happens
// at render time, never here.
type OperationResultV1 struct {
	Key        string  `json:"key"`
	Succeeded  bool    `json:"succeeded"`
	DurationS  float64 `json:"durationSeconds"`
	ExitCode   int     `json:"exitCode"`
	ErrorCode  string  `json:"errorCode,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"`
	SkipReason string  `json:"skipReason,omitempty"`
	Stdout     string  `json:"stdout,omitempty"`
	Stderr     string  `json:"stderr,omitempty"`
}
