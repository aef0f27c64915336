package checker

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// VCSChecker probes the git repository state: is the path a repository,
// which branch and commit is checked out, and how many files are uncommitted.
type VCSChecker struct {
	repoPath string
	gitPath  string
}

// NewVCS creates a version-control checker for the repository at repoPath.
// An empty repoPath defaults to the current directory.
func NewVCS(repoPath string) *VCSChecker {
	if repoPath == "" {
		repoPath = "."
	}
	gitPath, _ := exec.LookPath("git")
	return &VCSChecker{repoPath: repoPath, gitPath: gitPath}
}

func (c *VCSChecker) Name() Source { return SourceVCS }

// Configured reports whether a git binary is available. Without one the
// source cannot be consulted at all, which is a configuration gap rather
// than a reality-detection failure.
func (c *VCSChecker) Configured() bool { return c.gitPath != "" }

func (c *VCSChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if c.gitPath == "" {
		return Unavailable(SourceVCS, "git binary not found in PATH")
	}

	inside, err := c.git(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		if ctx.Err() != nil {
			return TimedOut(SourceVCS, time.Since(start))
		}
		// Not a repository is a valid observation, not a probe failure.
		return OK(SourceVCS, map[string]any{"is_repo": false}, time.Since(start))
	}
	if strings.TrimSpace(inside) != "true" {
		return OK(SourceVCS, map[string]any{"is_repo": false}, time.Since(start))
	}

	facts := map[string]any{"is_repo": true}
	confidence := 1.0

	if branch, err := c.git(ctx, "branch", "--show-current"); err == nil {
		facts["branch"] = strings.TrimSpace(branch)
	} else {
		confidence = 0.8
	}

	if head, err := c.git(ctx, "rev-parse", "HEAD"); err == nil {
		facts["head_commit"] = strings.TrimSpace(head)
	} else {
		// Repository with no commits yet.
		facts["head_commit"] = ""
		confidence = 0.8
	}

	status, err := c.git(ctx, "status", "--porcelain")
	if err != nil {
		if ctx.Err() != nil {
			return TimedOut(SourceVCS, time.Since(start))
		}
		return Failed(SourceVCS, fmt.Sprintf("git status: %v", err), time.Since(start))
	}
	uncommitted := countPorcelainEntries(status)
	facts["uncommitted_files"] = uncommitted
	facts["clean"] = uncommitted == 0

	return Degraded(SourceVCS, confidence, facts, time.Since(start))
}

func (c *VCSChecker) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	cmd.Dir = c.repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// countPorcelainEntries counts entries in `git status --porcelain` output.
func countPorcelainEntries(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
