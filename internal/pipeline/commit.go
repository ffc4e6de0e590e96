package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StagedFile is one output of a run.
type StagedFile struct {
	Path string
	Data []byte
}

// Commit writes every file or none of them. Each file is first staged as a temp
// file next to its destination; destinations are only renamed into place once
// all temp files exist.
func Commit(files []StagedFile) error {
	type staged struct {
		tmp  string
		dest string
	}
	done := make([]staged, 0, len(files))
	cleanup := func() {
		for _, s := range done {
			_ = os.Remove(s.tmp)
		}
	}

	for _, f := range files {
		tmp, err := stageFile(f.Path, f.Data)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", f.Path, err)
		}
		done = append(done, staged{tmp: tmp, dest: f.Path})
	}

	for i, s := range done {
		if err := os.Rename(s.tmp, s.dest); err != nil {
			for _, rest := range done[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("commit %s: %w", s.dest, err)
		}
	}
	return nil
}

func stageFile(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_"+filepath.Base(path)+"_*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	return tmpName, nil
}

// BackupPath returns <dir>/<base>_YYYYMMDD_HHMMSS<ext> for path.
func BackupPath(path string, at time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_%s%s", base, at.Format("20060102_150405"), ext))
}

// BackupContentStore copies the current content store to a timestamped
// sibling. A missing store returns ("", nil).
func BackupContentStore(path string, at time.Time) (string, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	dst := BackupPath(path, at)
	if err := Commit([]StagedFile{{Path: dst, Data: blob}}); err != nil {
		return "", err
	}
	return dst, nil
}
