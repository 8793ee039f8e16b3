// Package materialize writes feature files pulled from the remote service
// to disk.
package materialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
)

// ErrOutsideTarget is returned for a path that would be written outside the
// target directory.
var ErrOutsideTarget = errors.New("path escapes target directory")

// Materialize writes every file in files below targetDir, creating
// directories as needed, and returns the relative paths in sorted order.
// With dryRun nothing is touched and the paths that would be written are
// returned. All paths are checked before anything is written.
func Materialize(files map[string]string, targetDir string, dryRun bool) ([]string, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	targets := make(map[string]string, len(paths))
	for _, p := range paths {
		target, err := resolve(targetDir, p)
		if err != nil {
			return nil, err
		}
		targets[p] = target
	}

	if dryRun {
		return paths, nil
	}

	written := make([]string, 0, len(paths))
	for _, p := range paths {
		target := targets[p]
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, fmt.Errorf("creating directory for %s: %w", p, err)
		}
		if err := atomic.WriteFile(target, strings.NewReader(files[p])); err != nil {
			return written, fmt.Errorf("writing %s: %w", p, err)
		}
		if err := os.Chmod(target, 0644); err != nil {
			return written, fmt.Errorf("setting mode on %s: %w", p, err)
		}
		written = append(written, p)
	}
	return written, nil
}

func resolve(targetDir, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideTarget)
	}
	target := filepath.Join(targetDir, filepath.FromSlash(rel))
	within, err := filepath.Rel(targetDir, target)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) || within == "." {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideTarget)
	}
	return target, nil
}
