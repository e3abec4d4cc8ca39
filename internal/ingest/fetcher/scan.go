package fetcher

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Directories that never hold first-party source worth tracing.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	".idea":        true,
	".vscode":      true,
}

const binarySniffBytes = 8 * 1024

// candidate is one file that survived the walk filters. Content is already
// read so the fan-out stage only hashes and stores.
type candidate struct {
	path    string
	content []byte
}

type skipReason string

const (
	skipBinary    skipReason = "binary"
	skipTooLarge  skipReason = "too_large"
	skipReadError skipReason = "read_error"
)

// walkTree enumerates candidate files under workDir, applying the exclusion,
// size and binary filters. Per-file problems are tallied, never fatal.
func walkTree(workDir string, maxSize int64) ([]candidate, map[skipReason]int) {
	skips := map[skipReason]int{}
	var out []candidate

	_ = filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skips[skipReadError]++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(workDir, path)
		if relErr != nil {
			skips[skipReadError]++
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, infoErr := d.Info()
		if infoErr != nil {
			skips[skipReadError]++
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > maxSize {
			skips[skipTooLarge]++
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			skips[skipReadError]++
			return nil
		}
		if isBinary(content) {
			skips[skipBinary]++
			return nil
		}
		out = append(out, candidate{path: rel, content: content})
		return nil
	})
	return out, skips
}

// readCandidates loads an explicit path list from workDir with the same
// filters as the full walk. Missing files are treated as removed.
func readCandidates(workDir string, paths []string, maxSize int64) ([]candidate, map[skipReason]int) {
	skips := map[skipReason]int{}
	out := make([]candidate, 0, len(paths))
	for _, p := range paths {
		if isExcludedPath(p) {
			continue
		}
		full := filepath.Join(workDir, filepath.FromSlash(p))
		info, err := os.Stat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > maxSize {
			skips[skipTooLarge]++
			continue
		}
		content, err := os.ReadFile(full)
		if err != nil {
			skips[skipReadError]++
			continue
		}
		if isBinary(content) {
			skips[skipBinary]++
			continue
		}
		out = append(out, candidate{path: filepath.ToSlash(p), content: content})
	}
	return out, skips
}

func isExcludedPath(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if excludedDirs[part] {
			return true
		}
	}
	return false
}

// isBinary sniffs for a NUL byte in the first 8 KiB.
func isBinary(content []byte) bool {
	n := len(content)
	if n > binarySniffBytes {
		n = binarySniffBytes
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
