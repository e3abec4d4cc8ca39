package gitsource

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChangeStatus mirrors git's name-status letters, reduced to what the
// fetcher cares about.
type ChangeStatus string

const (
	ChangeAdded    ChangeStatus = "added"
	ChangeModified ChangeStatus = "modified"
	ChangeRemoved  ChangeStatus = "removed"
)

type ChangedFile struct {
	Path   string
	Status ChangeStatus
}

// Provider gives the fetcher clone/diff access to a repository working tree.
type Provider interface {
	// CloneOrUpdate ensures dest holds a checkout of url and returns dest.
	CloneOrUpdate(ctx context.Context, url, dest, branch string) error
	HeadSHA(ctx context.Context, repoPath string) (string, error)
	ListFiles(ctx context.Context, repoPath, commitSHA string) ([]string, error)
	ChangedPaths(ctx context.Context, repoPath, oldSHA, newSHA string) ([]ChangedFile, error)
	ReadFile(ctx context.Context, repoPath, commitSHA, filePath string) ([]byte, error)
}

// GitCLI implements Provider with the git binary.
type GitCLI struct{}

func NewGitCLI() *GitCLI { return &GitCLI{} }

func (g *GitCLI) CloneOrUpdate(ctx context.Context, url, dest, branch string) error {
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		args := []string{"-C", dest, "fetch", "origin"}
		if out, err := exec.CommandContext(ctx, "git", args...).CombinedOutput(); err != nil {
			return fmt.Errorf("git fetch %s: %w: %s", dest, err, strings.TrimSpace(string(out)))
		}
		ref := "origin/HEAD"
		if branch != "" {
			ref = "origin/" + branch
		}
		if out, err := exec.CommandContext(ctx, "git", "-C", dest, "reset", "--hard", ref).CombinedOutput(); err != nil {
			return fmt.Errorf("git reset %s: %w: %s", dest, err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)
	if out, err := exec.CommandContext(ctx, "git", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s: %w: %s", url, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (g *GitCLI) HeadSHA(ctx context.Context, repoPath string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", repoPath, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (g *GitCLI) ListFiles(ctx context.Context, repoPath, commitSHA string) ([]string, error) {
	args := []string{"-C", repoPath, "ls-tree", "-r", "--name-only"}
	if commitSHA != "" {
		args = append(args, commitSHA)
	} else {
		args = append(args, "HEAD")
	}
	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-tree: %w", err)
	}
	var result []string
	for _, f := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if f = strings.TrimSpace(f); f != "" {
			result = append(result, f)
		}
	}
	return result, nil
}

func (g *GitCLI) ChangedPaths(ctx context.Context, repoPath, oldSHA, newSHA string) ([]ChangedFile, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", repoPath, "diff", "--name-status", oldSHA, newSHA).Output()
	if err != nil {
		return nil, fmt.Errorf("git diff %s..%s: %w", oldSHA, newSHA, err)
	}
	var files []ChangedFile
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		status := parseStatus(parts[0])
		// Renames report "R<score> old new"; the new path is the live one.
		path := parts[len(parts)-1]
		files = append(files, ChangedFile{Path: path, Status: status})
	}
	return files, nil
}

func (g *GitCLI) ReadFile(ctx context.Context, repoPath, commitSHA, filePath string) ([]byte, error) {
	if commitSHA == "" {
		return os.ReadFile(filepath.Join(repoPath, filePath))
	}
	ref := fmt.Sprintf("%s:%s", commitSHA, filePath)
	out, err := exec.CommandContext(ctx, "git", "-C", repoPath, "show", ref).Output()
	if err != nil {
		return nil, fmt.Errorf("git show %s: %w", ref, err)
	}
	return out, nil
}

func parseStatus(s string) ChangeStatus {
	switch {
	case strings.HasPrefix(s, "A"):
		return ChangeAdded
	case strings.HasPrefix(s, "D"):
		return ChangeRemoved
	default:
		return ChangeModified
	}
}
