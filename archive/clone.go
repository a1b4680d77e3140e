package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// CloneResult reports what Clone produced.
type CloneResult struct {
	ArchiveName string
	Reused      bool // true when a healthy existing clone was reused
}

// Clone fetches the repository with the caller's access token, packages
// the working tree (minus .git) into a zip under the archives directory,
// and removes the clone. An existing directory that is still a git work
// tree is reused; anything else is wiped and cloned fresh.
func (s *Service) Clone(ctx context.Context, repoURL, accessToken string) (CloneResult, error) {
	repoPath, err := githubRepoPath(repoURL)
	if err != nil {
		return CloneResult{}, err
	}
	repoName := path.Base(repoPath)

	if err := ensureDir(s.clonesDir); err != nil {
		return CloneResult{}, errors.Wrap(err, "create clones dir")
	}
	if err := ensureDir(s.archivesDir); err != nil {
		return CloneResult{}, errors.Wrap(err, "create archives dir")
	}

	target := filepath.Join(s.clonesDir, repoName)
	cloneNeeded := true

	if _, err := os.Stat(target); err == nil {
		if _, _, err := s.git(ctx, target, "rev-parse", "--is-inside-work-tree"); err == nil {
			cloneNeeded = false
		} else {
			s.log.Warn().Str("path", target).Msg("existing directory is not a git work tree, re-cloning")
			if err := os.RemoveAll(target); err != nil {
				return CloneResult{}, errors.Wrap(err, "remove stale clone")
			}
		}
	}

	if cloneNeeded {
		remote := fmt.Sprintf("https://oauth2:%s@github.com/%s.git", accessToken, repoPath)
		if _, stderr, err := s.git(ctx, "", "clone", remote, target); err != nil {
			defer os.RemoveAll(target)
			return CloneResult{}, errors.New(translateCloneError(redactCredential(stderr, accessToken), repoURL))
		}
	}

	archiveName := repoName + ".zip"
	if err := zipTree(target, filepath.Join(s.archivesDir, archiveName)); err != nil {
		return CloneResult{}, errors.Wrap(err, "package repository")
	}

	if err := os.RemoveAll(target); err != nil {
		s.log.Warn().Err(err).Str("path", target).Msg("failed to clean up clone")
	}

	s.log.Info().Str("repo", repoPath).Str("archive", archiveName).Bool("reused", !cloneNeeded).Msg("repository archived")
	return CloneResult{ArchiveName: archiveName, Reused: !cloneNeeded}, nil
}

func translateCloneError(stderr, repoURL string) string {
	switch {
	case strings.Contains(stderr, "Authentication failed"):
		return "failed to clone repository: authentication failed; the access token may be invalid, expired, or missing permissions for this repository"
	case strings.Contains(stderr, "not found"):
		return fmt.Sprintf("failed to clone repository: repository not found at %s; check the URL and permissions", repoURL)
	default:
		return fmt.Sprintf("failed to clone repository: %s", strings.TrimSpace(stderr))
	}
}
