package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches every feature file below the analyzed directory.
const DefaultPattern = "**/*.feature"

// ParseFile reads dir/file and returns its ParsedFeature. Read and parse
// failures are returned as the error variant, never as a Go error.
func ParseFile(dir, file string, opts Options) ParsedFeature {
	content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
	if err != nil {
		return ParsedFeature{File: file, Error: fmt.Sprintf("%s: %v", file, err)}
	}
	doc, errs := Parse(file, content)
	return Transform(doc, file, content, errs, opts)
}

// Analyze expands pattern below dir and parses every matching file.
// Files are parsed concurrently; results come back in sorted path order.
// Features without a title are dropped with a warning.
func Analyze(pattern, dir string, opts Options) ([]ParsedFeature, error) {
	files, err := Glob(pattern, dir, opts.Exclude)
	if err != nil {
		return nil, err
	}

	log := opts.logger()
	results := make([]ParsedFeature, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Debug("parsing feature file", "file", file)
			results[i] = ParseFile(dir, file, opts)
		}()
	}
	wg.Wait()

	features := make([]ParsedFeature, 0, len(results))
	for _, f := range results {
		if !f.HasError() && f.Name == "" {
			log.Warn("skipping feature without a name", "file", f.File)
			continue
		}
		features = append(features, f)
	}
	return features, nil
}

// Glob returns the slash-separated paths below dir matching pattern,
// minus anything matching one of the exclude patterns.
func Glob(pattern, dir string, exclude []string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")

	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		skip, err := excluded(m, exclude)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(m)))
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

func excluded(file string, patterns []string) (bool, error) {
	for _, p := range patterns {
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")
		ok, err := doublestar.Match(p, file)
		if err != nil {
			return false, fmt.Errorf("bad exclude pattern %s: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
