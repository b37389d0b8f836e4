// Package gitinfo answers the single question the Key Builder needs of a
// workspace's VCS state: its current HEAD commit, if any. A narrow
// os/exec shell-out rather than a full git plumbing library, because the
// only operation needed — "is this a git repo, and if so what's HEAD" —
// doesn't justify pulling in go-git's object model (see DESIGN.md).
package gitinfo

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// HeadCommit returns the current HEAD commit hash of the git repository
// rooted at (or containing) dir. ok is false if dir is not inside a git
// working tree or git is unavailable.
func HeadCommit(dir string) (commit string, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	commit = strings.TrimSpace(string(out))
	if commit == "" {
		return "", false
	}
	return commit, true
}

// DetectVCS returns a best-effort VCS type tag for a workspace root, used
// to populate WorkspaceRecord.VCS. It never shells out — a marker-file
// check is enough to populate the metadata field.
func DetectVCS(rootHasGitDir bool) string {
	if rootHasGitDir {
		return "git"
	}
	return "none"
}
