// Package scenario models one compatibility test configuration: a key
// lifetime class, the message and epoch to exercise, and the deterministic
// seed handed to both implementations.
package scenario

import (
	"fmt"
	"strings"

	"github.com/interopsig/sigmatrix/internal/codes"
)

// SeedHexLen is the fixed length of the deterministic seed in hex characters.
const SeedHexLen = 68

// DefaultSeedHex is "42" repeated to the seed length.
var DefaultSeedHex = strings.Repeat("42", SeedHexLen/2)

// DefaultMessage is the payload signed in every scenario unless overridden.
const DefaultMessage = "Cross-language benchmark message"

// Class describes one supported key lifetime class. Capacity is the maximum
// epoch count implied by the tree height; DefaultActiveEpochs scales with the
// class so the exercised range is representative without making the smallest
// class pay 2^18 tree costs.
type Class struct {
	Lifetime            string
	Capacity            uint64
	DefaultActiveEpochs uint64
}

var classes = []Class{
	{Lifetime: "2^8", Capacity: 1 << 8, DefaultActiveEpochs: 2},
	{Lifetime: "2^18", Capacity: 1 << 18, DefaultActiveEpochs: 256},
	{Lifetime: "2^32", Capacity: 1 << 32, DefaultActiveEpochs: 1024},
}

// DefaultLifetimes are the classes exercised when none are requested on the
// command line. 2^32 is opt-in: its signing step runs for tens of minutes.
var DefaultLifetimes = []string{"2^8", "2^18"}

func ClassFor(lifetime string) (Class, bool) {
	for _, c := range classes {
		if c.Lifetime == lifetime {
			return c, true
		}
	}
	return Class{}, false
}

func SupportedLifetimes() []string {
	out := make([]string, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.Lifetime)
	}
	return out
}

// Config is immutable once built; one Config drives exactly one six-cell
// matrix.
type Config struct {
	Lifetime        string `json:"lifetime"`
	Label           string `json:"label"`
	Message         string `json:"message"`
	Epoch           uint32 `json:"epoch"`
	StartEpoch      uint64 `json:"startEpoch"`
	NumActiveEpochs uint64 `json:"numActiveEpochs"`
	SeedHex         string `json:"seedHex"`
}

// Tag is the collision-free path component derived from the lifetime class
// ("2^8" -> "2pow8"). Staged artifact names embed it so scenarios in the same
// run never overwrite each other.
func (c Config) Tag() string {
	return strings.ReplaceAll(c.Lifetime, "^", "pow")
}

// Build produces one Config per requested lifetime class with class-scaled
// defaults. Requested classes are deduplicated preserving first occurrence.
func Build(lifetimes []string, seedHex string) ([]Config, error) {
	if err := ValidateSeedHex(seedHex); err != nil {
		return nil, err
	}
	if len(lifetimes) == 0 {
		return nil, codes.Errorf(codes.Config, "at least one lifetime must be specified")
	}

	seen := map[string]bool{}
	out := make([]Config, 0, len(lifetimes))
	for _, raw := range lifetimes {
		lifetime := strings.TrimSpace(raw)
		if lifetime == "" || seen[lifetime] {
			continue
		}
		seen[lifetime] = true

		cls, ok := ClassFor(lifetime)
		if !ok {
			return nil, codes.Errorf(codes.Config,
				"unsupported lifetime %q (choose from: %s)", lifetime, strings.Join(SupportedLifetimes(), ", "))
		}
		cfg := Config{
			Lifetime:        lifetime,
			Label:           fmt.Sprintf("Lifetime %s", lifetime),
			Message:         DefaultMessage,
			Epoch:           0,
			StartEpoch:      0,
			NumActiveEpochs: cls.DefaultActiveEpochs,
			SeedHex:         seedHex,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	if len(out) == 0 {
		return nil, codes.Errorf(codes.Config, "at least one lifetime must be specified")
	}
	return out, nil
}

// Validate enforces the capacity and range invariants. It runs before any
// subprocess is spawned.
func (c Config) Validate() error {
	cls, ok := ClassFor(c.Lifetime)
	if !ok {
		return codes.Errorf(codes.Config, "unsupported lifetime %q", c.Lifetime)
	}
	if err := ValidateSeedHex(c.SeedHex); err != nil {
		return err
	}
	if c.Message == "" {
		return codes.Errorf(codes.Config, "scenario message must not be empty")
	}
	if c.NumActiveEpochs == 0 {
		return codes.Errorf(codes.Config, "numActiveEpochs must be positive")
	}
	if c.NumActiveEpochs > cls.Capacity {
		return codes.Errorf(codes.Config,
			"numActiveEpochs %d exceeds lifetime %s capacity %d", c.NumActiveEpochs, c.Lifetime, cls.Capacity)
	}
	if c.StartEpoch+c.NumActiveEpochs > cls.Capacity {
		return codes.Errorf(codes.Config,
			"active range [%d, %d) exceeds lifetime %s capacity %d",
			c.StartEpoch, c.StartEpoch+c.NumActiveEpochs, c.Lifetime, cls.Capacity)
	}
	epoch := uint64(c.Epoch)
	if epoch < c.StartEpoch || epoch >= c.StartEpoch+c.NumActiveEpochs {
		return codes.Errorf(codes.Config,
			"epoch %d outside active range [%d, %d)", epoch, c.StartEpoch, c.StartEpoch+c.NumActiveEpochs)
	}
	return nil
}

func ValidateSeedHex(seedHex string) error {
	if len(seedHex) != SeedHexLen {
		return codes.Errorf(codes.Config,
			"seed must be exactly %d hex chars, got %d", SeedHexLen, len(seedHex))
	}
	for _, r := range seedHex {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return codes.Errorf(codes.Config, "seed contains non-hex character %q", r)
		}
	}
	return nil
}

// ParseLifetimeCSV splits a comma-separated lifetime list, dropping empty
// parts. Validation happens in Build.
func ParseLifetimeCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
