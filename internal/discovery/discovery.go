// Package discovery walks a repository tree and produces an ordered list
// of absolute file paths, pruning ignored directories. It never reads
// file contents.
package discovery

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// defaultIgnoreDirs is the minimum set of directory names pruned from
// every walk, regardless of configuration.
var defaultIgnoreDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"target":       {},
	"bin":          {},
	"out":          {},
	".next":        {},
	".cortex":      {},
	"coverage":     {},
	".semindex":    {},
}

// Walker discovers files under a root directory.
type Walker struct {
	root           string
	ignorePatterns []glob.Glob
}

// New creates a Walker rooted at root. ignoreGlobs are additional glob
// patterns (matched against root-relative, slash-separated paths) that
// prune a directory or skip a file on top of the fixed ignore set.
func New(root string, ignoreGlobs []string) (*Walker, error) {
	w := &Walker{root: root}
	for _, pattern := range ignoreGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		w.ignorePatterns = append(w.ignorePatterns, g)
	}
	return w, nil
}

// Walk returns every non-ignored file under the root, in depth-first,
// alphabetical-within-directory order. Symbolic links to directories are
// never followed; symbolic links to files are returned as-is (the caller
// stats and reads through them normally).
func (w *Walker) Walk() ([]string, error) {
	var files []string
	err := w.walkDir(w.root, &files)
	return files, err
}

func (w *Walker) walkDir(dir string, files *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		relPath, err := filepath.Rel(w.root, fullPath)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if entry.IsDir() {
			if w.shouldIgnoreDir(entry.Name(), relPath) {
				continue
			}
			if err := w.walkDir(fullPath, files); err != nil {
				return err
			}
			continue
		}

		// Symlinks to directories must not be followed; os.ReadDir
		// reports a symlink's DirEntry.IsDir() as false (it reflects
		// the link itself, not its target), so resolve explicitly.
		if entry.Type()&os.ModeSymlink != 0 {
			info, statErr := os.Stat(fullPath)
			if statErr == nil && info.IsDir() {
				continue
			}
		}

		if w.shouldIgnoreFile(relPath) {
			continue
		}

		*files = append(*files, fullPath)
	}

	return nil
}

func (w *Walker) shouldIgnoreDir(name, relPath string) bool {
	if _, ok := defaultIgnoreDirs[name]; ok {
		return true
	}
	if w.matchesAny(relPath) {
		return true
	}
	return w.matchesAny(relPath + "/**")
}

func (w *Walker) shouldIgnoreFile(relPath string) bool {
	return w.matchesAny(relPath)
}

func (w *Walker) matchesAny(path string) bool {
	for _, pattern := range w.ignorePatterns {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}
