// Package archive implements the repository workflows: cloning a GitHub
// repository into a downloadable zip, and pushing an uploaded zip as a
// commit to a GitHub branch. All git work shells out to the git binary.
package archive

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// GitRunner executes a git command in dir (the process working directory
// when empty) and returns its stdout and stderr. Injectable for tests.
type GitRunner func(ctx context.Context, dir string, args ...string) (stdout, stderr string, err error)

// ErrInvalidRepoURL rejects anything that is not an https GitHub remote.
var ErrInvalidRepoURL = errors.New("repository URL must start with https://github.com/")

// Service owns the working directories and the git runner.
type Service struct {
	clonesDir   string
	archivesDir string
	uploadsDir  string
	log         zerolog.Logger
	git         GitRunner
}

// Option modifies a Service at construction time.
type Option func(*Service)

// WithGitRunner overrides how git commands are executed (for tests).
func WithGitRunner(run GitRunner) Option {
	return func(s *Service) {
		s.git = run
	}
}

// NewService creates the archive service over the given working directories.
func NewService(clonesDir, archivesDir, uploadsDir string, log zerolog.Logger, options ...Option) *Service {
	s := &Service{
		clonesDir:   clonesDir,
		archivesDir: archivesDir,
		uploadsDir:  uploadsDir,
		log:         log,
		git:         execGit,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// ArchivePath resolves an archive name produced by Clone to its path on
// disk. Names carrying path separators or traversal are rejected.
func (s *Service) ArchivePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".zip") {
		return "", errors.Errorf("invalid archive name %q", name)
	}
	path := filepath.Join(s.archivesDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "archive %q not found", name)
	}
	return path, nil
}

func execGit(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// redactCredential scrubs the access token from text destined for logs or
// user-facing messages. git happily echoes the remote URL, credentials
// included, into stderr.
func redactCredential(text, token string) string {
	if token == "" {
		return text
	}
	return strings.ReplaceAll(text, token, "***")
}

// githubRepoPath extracts "owner/repo" from an https GitHub URL.
func githubRepoPath(repoURL string) (string, error) {
	if !strings.HasPrefix(repoURL, "https://github.com/") {
		return "", ErrInvalidRepoURL
	}
	repoPath := strings.TrimPrefix(repoURL, "https://github.com/")
	repoPath = strings.TrimSuffix(strings.Trim(repoPath, "/"), ".git")
	if repoPath == "" || !strings.Contains(repoPath, "/") {
		return "", errors.Errorf("repository URL %q missing owner/name", repoURL)
	}
	return repoPath, nil
}
