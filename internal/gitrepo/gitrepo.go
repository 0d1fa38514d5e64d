// Package gitrepo wraps the command-line git executable for reading repository
// history and working-tree state. Using the git binary rather than a Go git
// library keeps behavior identical to what the user sees in their terminal and
// works with every repository configuration.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Sentinel errors surfaced to the CLI.
var (
	// ErrNotARepository indicates the path is not inside a git work tree.
	ErrNotARepository = errors.New("not a git repository")

	// ErrBinaryFile indicates a file's content is not valid UTF-8 text.
	ErrBinaryFile = errors.New("binary file")
)

// Field and record separators used in git pretty formats. Unit/record
// separators cannot appear in commit metadata, unlike newlines.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Commit holds the metadata sprout extracts for one commit.
type Commit struct {
	Hash    string
	Author  string
	Email   string
	When    time.Time
	Subject string
	Body    string
}

// Touch records one historical modification of a path, used for reviewer
// scoring.
type Touch struct {
	Author string
	Email  string
	When   time.Time
}

// Info summarizes a repository.
type Info struct {
	Root         string
	Branch       string
	Dirty        bool
	TotalCommits int
}

// Repo provides read and write access to a single git repository.
type Repo struct {
	root   string
	runner Runner
	logger *zap.Logger
}

// Option configures a Repo.
type Option func(*Repo)

// WithRunner replaces the command runner, primarily for tests.
func WithRunner(r Runner) Option {
	return func(repo *Repo) { repo.runner = r }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(repo *Repo) { repo.logger = l }
}

// Open locates the repository containing path, searching parent directories
// the way git itself does. Returns ErrNotARepository when none is found.
func Open(ctx context.Context, path string, opts ...Option) (*Repo, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		path = wd
	}

	repo := &Repo{runner: execRunner{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(repo)
	}

	out, err := repo.runner.Run(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s (run 'git init' or move into an existing repository)", ErrNotARepository, path)
	}
	repo.root = strings.TrimSpace(out)

	repo.logger.Debug("opened repository", zap.String("root", repo.root))
	return repo, nil
}

// Root returns the repository's top-level directory.
func (r *Repo) Root() string {
	return r.root
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.runner.Run(ctx, r.root, args...)
}

// IsDirty reports whether the repository has uncommitted changes, including
// untracked files.
func (r *Repo) IsDirty(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// StagedDiff returns the diff of staged changes (HEAD vs index), the
// equivalent of `git diff --cached --unified=3`.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	return r.git(ctx, "diff", "--cached", "--unified=3")
}

// UnstagedDiff returns the diff of the working tree against the index.
func (r *Repo) UnstagedDiff(ctx context.Context) (string, error) {
	return r.git(ctx, "diff", "--unified=3")
}

// AllChanges returns staged and unstaged diffs combined. When both are
// present they are separated by a blank line.
func (r *Repo) AllChanges(ctx context.Context) (string, error) {
	staged, err := r.StagedDiff(ctx)
	if err != nil {
		return "", err
	}
	unstaged, err := r.UnstagedDiff(ctx)
	if err != nil {
		return "", err
	}

	if staged != "" && unstaged != "" {
		return staged + "\n\n" + unstaged, nil
	}
	if staged != "" {
		return staged, nil
	}
	return unstaged, nil
}

// ChangedFiles returns the deduplicated union of staged, unstaged, and
// untracked paths, sorted for stable output.
func (r *Repo) ChangedFiles(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	for _, args := range [][]string{
		{"diff", "--cached", "--name-only"},
		{"diff", "--name-only"},
		{"ls-files", "--others", "--exclude-standard"},
	} {
		out, err := r.git(ctx, args...)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				seen[line] = struct{}{}
			}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// StageAll stages every change in the work tree, like `git add -A`.
func (r *Repo) StageAll(ctx context.Context) error {
	_, err := r.git(ctx, "add", "-A")
	return err
}

// Commit creates a commit from the staged changes.
func (r *Repo) Commit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("commit message must not be empty")
	}
	_, err := r.git(ctx, "commit", "-m", message)
	return err
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// UserEmail returns the configured committer email, or "" when unset.
func (r *Repo) UserEmail(ctx context.Context) string {
	out, err := r.git(ctx, "config", "user.email")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Info returns basic repository information.
func (r *Repo) Info(ctx context.Context) (Info, error) {
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		return Info{}, err
	}
	dirty, err := r.IsDirty(ctx)
	if err != nil {
		return Info{}, err
	}

	total := 0
	if out, err := r.git(ctx, "rev-list", "--count", "HEAD"); err == nil {
		total, _ = strconv.Atoi(strings.TrimSpace(out))
	}

	return Info{Root: r.root, Branch: branch, Dirty: dirty, TotalCommits: total}, nil
}

// Log returns up to limit commits, newest first. limit <= 0 means no bound.
func (r *Repo) Log(ctx context.Context, limit int) ([]Commit, error) {
	args := []string{"log", "--pretty=format:%H" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%at" + fieldSep + "%s" + fieldSep + "%b" + recordSep}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}

	out, err := r.git(ctx, args...)
	if err != nil {
		// An empty repository has no HEAD to log.
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}

	return parseLog(out), nil
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimLeft(record, "\n")
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 6)
		if len(fields) != 6 {
			continue
		}
		unix, _ := strconv.ParseInt(fields[3], 10, 64)
		commits = append(commits, Commit{
			Hash:    fields[0],
			Author:  fields[1],
			Email:   fields[2],
			When:    time.Unix(unix, 0).UTC(),
			Subject: fields[4],
			Body:    strings.TrimSpace(fields[5]),
		})
	}
	return commits
}

// CommitFiles returns the paths touched by a commit.
func (r *Repo) CommitFiles(ctx context.Context, hash string) ([]string, error) {
	out, err := r.git(ctx, "show", "--name-only", "--pretty=format:", hash)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// CommitDiff returns the patch introduced by a single commit.
func (r *Repo) CommitDiff(ctx context.Context, hash string) (string, error) {
	return r.git(ctx, "show", "--pretty=format:", "--unified=3", hash)
}

// DiffAgainst returns the diff of HEAD against the merge base with base,
// the three-dot form used for pull requests.
func (r *Repo) DiffAgainst(ctx context.Context, base string) (string, error) {
	return r.git(ctx, "diff", base+"...HEAD", "--unified=3")
}

// SubjectsSince returns commit subjects on HEAD but not on base, newest first.
func (r *Repo) SubjectsSince(ctx context.Context, base string) ([]string, error) {
	out, err := r.git(ctx, "log", base+"..HEAD", "--pretty=format:%s")
	if err != nil {
		return nil, err
	}

	var subjects []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			subjects = append(subjects, line)
		}
	}
	return subjects, nil
}

// FileLog returns recent touches of a path, newest first.
func (r *Repo) FileLog(ctx context.Context, path string, limit int) ([]Touch, error) {
	args := []string{"log", "--pretty=format:%an" + fieldSep + "%ae" + fieldSep + "%at"}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}
	args = append(args, "--follow", "--", path)

	out, err := r.git(ctx, args...)
	if err != nil {
		return nil, err
	}

	var touches []Touch
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), fieldSep, 3)
		if len(fields) != 3 {
			continue
		}
		unix, _ := strconv.ParseInt(fields[2], 10, 64)
		touches = append(touches, Touch{
			Author: fields[0],
			Email:  fields[1],
			When:   time.Unix(unix, 0).UTC(),
		})
	}
	return touches, nil
}

// FileContent reads a work-tree file relative to the repository root.
// Returns ErrBinaryFile for content that is not valid UTF-8.
func (r *Repo) FileContent(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, path))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrBinaryFile, path)
	}
	return string(data), nil
}
