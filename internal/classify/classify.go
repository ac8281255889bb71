// Package classify turns raw subprocess output into an operator-facing
// display form and a success verdict. The two concerns are independent:
// noise filtering only ever affects display, never the verdict.
package classify

import "strings"

// Verify success tokens, newest generation first. The two implementations
// drift across protocol-message generations, so all of these stay accepted:
//
//	SIGMAT_RESULT:v1:verify:ok=true   structured, machine-parseable
//	VERIFY_RESULT:true                colon-delimited legacy form
//	✅                                 decorative-glyph form
const (
	StructuredVerifyOK     = "SIGMAT_RESULT:v1:verify:ok=true"
	StructuredVerifyFailed = "SIGMAT_RESULT:v1:verify:ok=false"
	LegacyVerifyOK         = "VERIFY_RESULT:true"
	GlyphVerifyOK          = "✅"
)

// DefaultNoisePrefixes match the implementation-internal diagnostic lines the
// signing tools emit during tree materialization.
var DefaultNoisePrefixes = []string{
	"DEBUG:",
	"RUST_DEBUG:",
	"ZIG_DEBUG:",
	"TRACE:",
}

type Classifier struct {
	// NoisePrefixes are matched against the start of each trimmed line.
	NoisePrefixes []string
	// Verbose disables filtering entirely (resolved once at startup from
	// SIGMAT_VERBOSE, passed in explicitly so tests can set it per case).
	Verbose bool
}

func New(verbose bool) Classifier {
	return Classifier{NoisePrefixes: DefaultNoisePrefixes, Verbose: verbose}
}

// Display strips diagnostic-marker lines from text unless verbose mode is on.
// Success determination never reads the filtered form.
func (c Classifier) Display(text string) string {
	if c.Verbose || text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if c.isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (c Classifier) isNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range c.NoisePrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// VerifyAccepted reports whether a verify subprocess affirmed the signature.
// It requires BOTH a zero exit code and an affirmative token in the combined
// unfiltered output: a verify tool can exit cleanly while rejecting the
// signature, and that is a failed operation, not an error.
func VerifyAccepted(exitCode int, stdout, stderr string) bool {
	if exitCode != 0 {
		return false
	}
	blob := stdout + stderr
	// The structured line wins when present; a negative structured verdict
	// must not be rescued by a stray glyph elsewhere in the output.
	if strings.Contains(blob, StructuredVerifyFailed) {
		return false
	}
	if strings.Contains(blob, StructuredVerifyOK) {
		return true
	}
	return strings.Contains(blob, LegacyVerifyOK) || strings.Contains(blob, GlyphVerifyOK)
}

// SignAccepted reports success for keygen/sign operations. These have no
// boolean verdict, so a zero exit code is sufficient.
func SignAccepted(exitCode int) bool {
	return exitCode == 0
}
