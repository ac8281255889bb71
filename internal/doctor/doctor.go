// Package doctor preflights a matrix run: are the build toolchains on PATH,
// are the tool binaries present or buildable, is the exchange root writable.
// Every check is reported; OK is the conjunction of the required ones.
package doctor

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/interopsig/sigmatrix/internal/implprofile"
)

type Check struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Result struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

type Opts struct {
	Pair         implprofile.Pair
	ExchangeRoot string
}

func Run(opts Opts) (Result, error) {
	res := Result{OK: true}
	add := func(c Check, required bool) {
		res.Checks = append(res.Checks, c)
		if required && !c.OK {
			res.OK = false
		}
	}

	// Write access: create and remove a probe file under the exchange root.
	if err := os.MkdirAll(opts.ExchangeRoot, 0o755); err != nil {
		add(Check{ID: "exchange_write_access", OK: false, Message: err.Error()}, true)
	} else {
		probe := filepath.Join(opts.ExchangeRoot, ".doctor.tmp")
		if err := os.WriteFile(probe, []byte("ok\n"), 0o644); err != nil {
			add(Check{ID: "exchange_write_access", OK: false, Message: err.Error()}, true)
		} else {
			_ = os.Remove(probe)
			add(Check{ID: "exchange_write_access", OK: true}, true)
		}
	}

	for _, p := range []implprofile.Profile{opts.Pair.A, opts.Pair.B} {
		checkImpl(p, add)
	}
	return res, nil
}

// checkImpl reports binary presence and toolchain availability for one
// implementation. A present binary makes the toolchain advisory: a
// reuse-policy run never invokes the build.
func checkImpl(p implprofile.Profile, add func(Check, bool)) {
	binaryPresent := false
	if info, err := os.Stat(p.Binary); err == nil && !info.IsDir() {
		binaryPresent = true
		add(Check{ID: "binary_" + p.Name, OK: true}, false)
	} else {
		add(Check{ID: "binary_" + p.Name, OK: true, Message: "not built yet (ok, will build)"}, false)
	}

	tool := p.Build.Argv[0]
	if _, err := exec.LookPath(tool); err == nil {
		add(Check{ID: "toolchain_" + p.Name, OK: true}, false)
	} else if binaryPresent {
		add(Check{ID: "toolchain_" + p.Name, OK: true, Message: tool + " not on PATH (ok, binary already built)"}, false)
	} else {
		add(Check{ID: "toolchain_" + p.Name, OK: false, Message: tool + " not on PATH and no prebuilt binary"}, true)
	}
}
