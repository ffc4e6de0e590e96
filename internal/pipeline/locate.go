package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrInputNotFound = errors.New("input file not found")

// LocateInput resolves the tabular input. A fixed path wins; otherwise the most
// recently modified file in dir matching pattern is used.
func LocateInput(path, dir, pattern string) (string, error) {
	if strings.TrimSpace(path) != "" {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrInputNotFound, path)
		}
		return path, nil
	}

	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: no input path or directory configured", ErrInputNotFound)
	}
	if strings.TrimSpace(pattern) == "" {
		pattern = "*.csv"
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: directory %s", ErrInputNotFound, dir)
	}
	if err != nil {
		return "", err
	}

	type candidate struct {
		path    string
		modTime int64
	}
	var found []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("bad input pattern %q: %w", pattern, err)
		}
		if !ok || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime().UnixNano()})
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w: nothing matches %s in %s", ErrInputNotFound, pattern, dir)
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].modTime != found[j].modTime {
			return found[i].modTime > found[j].modTime
		}
		return found[i].path > found[j].path
	})
	return found[0].path, nil
}
