package checker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// walkLimit bounds how many entries a probe will visit so a pathological
// tree cannot eat the whole run budget.
const walkLimit = 50000

// FilesystemChecker probes the local working tree: does the root exist, are
// the required files present, and how big is the tree.
type FilesystemChecker struct {
	root     string
	required []string
}

// NewFilesystem creates a filesystem checker rooted at root. An empty root
// defaults to the current directory.
func NewFilesystem(root string, requiredFiles []string) *FilesystemChecker {
	if root == "" {
		root = "."
	}
	return &FilesystemChecker{root: root, required: requiredFiles}
}

func (c *FilesystemChecker) Name() Source { return SourceFilesystem }

// Configured is always true: the filesystem checker needs no credentials,
// which is why emergency mode can rely on it.
func (c *FilesystemChecker) Configured() bool { return true }

func (c *FilesystemChecker) Check(ctx context.Context) Result {
	start := time.Now()

	info, err := os.Stat(c.root)
	if err != nil {
		return Failed(SourceFilesystem, fmt.Sprintf("stat root %s: %v", c.root, err), time.Since(start))
	}
	if !info.IsDir() {
		return Failed(SourceFilesystem, fmt.Sprintf("root %s is not a directory", c.root), time.Since(start))
	}

	facts := map[string]any{"root_exists": true}

	missing := 0
	for _, name := range c.required {
		_, err := os.Stat(filepath.Join(c.root, name))
		exists := err == nil
		facts[fmt.Sprintf("file_%s_exists", name)] = exists
		if !exists {
			missing++
		}
	}
	facts["required_files_missing"] = missing

	var files, dirs, visited int
	truncated := false
	walkErr := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable subtree lowers confidence but does not fail the probe.
			return fs.SkipDir
		}
		visited++
		if visited > walkLimit {
			truncated = true
			return fs.SkipAll
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return fs.SkipDir
			}
			dirs++
		} else {
			files++
		}
		return nil
	})
	if walkErr != nil && ctx.Err() != nil {
		return TimedOut(SourceFilesystem, time.Since(start))
	}

	facts["file_count"] = files
	facts["dir_count"] = dirs

	confidence := 1.0
	if truncated {
		facts["truncated"] = true
		confidence = 0.8
	}
	return Degraded(SourceFilesystem, confidence, facts, time.Since(start))
}
