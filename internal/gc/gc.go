// Package gc prunes per-run exchange dirs. The default run layout allocates
// one dir per run under the sigmatrix temp root; nothing deletes them at run
// end because staged artifacts are the whole point of a debugging session.
package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/interopsig/sigmatrix/internal/ids"
	"github.com/interopsig/sigmatrix/internal/schema"
	"github.com/interopsig/sigmatrix/internal/store"
)

// DefaultRoot is where the run command places exchange dirs when
// --exchange-dir is not given.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "sigmatrix")
}

type RunInfo struct {
	RunID       string    `json:"runId"`
	Path        string    `json:"path"`
	CompletedAt time.Time `json:"completedAt"`
	Bytes       int64     `json:"bytes"`
}

type Result struct {
	OK          bool      `json:"ok"`
	Root        string    `json:"root"`
	DryRun      bool      `json:"dryRun"`
	Deleted     []RunInfo `json:"deleted,omitempty"`
	Kept        []RunInfo `json:"kept,omitempty"`
	TotalBefore int64     `json:"totalBeforeBytes"`
	TotalAfter  int64     `json:"totalAfterBytes"`
}

type Opts struct {
	Root          string
	Now           time.Time
	MaxAge        time.Duration
	MaxTotalBytes int64
	DryRun        bool
}

// Run deletes run dirs older than MaxAge, then the oldest remaining ones
// until the root is under MaxTotalBytes. Only dirs whose name is a valid run
// ID are considered; anything else under the root is left alone.
func Run(opts Opts) (Result, error) {
	root := opts.Root
	if root == "" {
		root = DefaultRoot()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{OK: true, Root: root, DryRun: opts.DryRun}, nil
		}
		return Result{}, err
	}

	var runs []RunInfo
	for _, e := range entries {
		if !e.IsDir() || !ids.IsValidRunID(e.Name()) {
			continue
		}
		runDir := filepath.Join(root, e.Name())
		size, _ := dirSize(runDir)
		runs = append(runs, RunInfo{
			RunID:       e.Name(),
			Path:        runDir,
			CompletedAt: runTimestamp(runDir),
			Bytes:       size,
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CompletedAt.Equal(runs[j].CompletedAt) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].CompletedAt.Before(runs[j].CompletedAt)
	})

	var total int64
	for _, r := range runs {
		total += r.Bytes
	}
	res := Result{OK: true, Root: root, DryRun: opts.DryRun, TotalBefore: total, TotalAfter: total}

	shouldDelete := make(map[string]bool)
	if opts.MaxAge > 0 {
		cutoff := now.Add(-opts.MaxAge)
		for _, r := range runs {
			if !r.CompletedAt.IsZero() && r.CompletedAt.Before(cutoff) {
				shouldDelete[r.RunID] = true
				total -= r.Bytes
			}
		}
	}

	// Size pressure: drop the oldest runs until under the threshold.
	if opts.MaxTotalBytes > 0 {
		for _, r := range runs {
			if total <= opts.MaxTotalBytes {
				break
			}
			if shouldDelete[r.RunID] {
				continue
			}
			shouldDelete[r.RunID] = true
			total -= r.Bytes
		}
	}

	for _, r := range runs {
		if shouldDelete[r.RunID] {
			res.Deleted = append(res.Deleted, r)
			res.TotalAfter -= r.Bytes
			if !opts.DryRun {
				_ = os.RemoveAll(r.Path)
			}
		} else {
			res.Kept = append(res.Kept, r)
		}
	}
	return res, nil
}

// runTimestamp prefers the persisted report's completion time. A dir without
// a report (crashed or in-flight run) is dated by its last progress event,
// and failing that by its mtime, so the age rule still applies eventually.
func runTimestamp(runDir string) time.Time {
	raw, err := os.ReadFile(filepath.Join(runDir, "run.report.json"))
	if err == nil {
		var rep schema.RunReportJSONV1
		if json.Unmarshal(raw, &rep) == nil && rep.CompletedAt != "" {
			if ts, err := time.Parse(time.RFC3339Nano, rep.CompletedAt); err == nil {
				return ts
			}
		}
	}
	if ts := lastProgressAt(runDir); !ts.IsZero() {
		return ts
	}
	if info, err := os.Stat(runDir); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}

func lastProgressAt(runDir string) time.Time {
	var last time.Time
	_ = store.ScanJSONL(filepath.Join(runDir, "progress.jsonl"),
		func() any { return &schema.ProgressEventV1{} },
		func(v any) error {
			if ts, err := time.Parse(time.RFC3339Nano, v.(*schema.ProgressEventV1).At); err == nil {
				last = ts
			}
			return nil
		})
	return last
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
