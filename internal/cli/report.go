package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/calvinalkan/udstore/internal/fs"
)

// writeReport marshals payload and atomically replaces <outDir>/<name>.json.
//
// The directory is guarded by an flock so concurrent ud invocations writing
// to the same report directory do not interleave; the report file itself is
// replaced via temp file + rename, so readers never see a partial report.
func writeReport(fsys fs.FS, outDir, name string, payload any) (string, error) {
	if err := fsys.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	lock, err := fs.NewLocker(fsys).TryLock(filepath.Join(outDir, ".ud.lock"))
	if err != nil {
		return "", fmt.Errorf("locking report dir: %w", err)
	}
	defer lock.Close()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	path := filepath.Join(outDir, name+".json")

	if err := fsys.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	return path, nil
}

// report is the envelope written by bench and stress.
type report[T any] struct {
	Command    string    `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	Workers    int       `json:"workers"`
	Iterations int       `json:"iterations"`
	Results    []T       `json:"results"`
}
