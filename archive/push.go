package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PushRequest carries everything needed to commit an uploaded archive to a
// GitHub branch. Author identity and credential come from the caller's
// session claims.
type PushRequest struct {
	Archive       []byte
	TargetRepoURL string
	Branch        string
	CommitMessage string
	AuthorName    string
	AuthorEmail   string
	AccessToken   string
}

func (r *PushRequest) validate() error {
	if len(r.Archive) == 0 {
		return errors.New("no source code zip provided")
	}
	if strings.TrimSpace(r.Branch) == "" {
		return errors.New("branch name is required")
	}
	if r.CommitMessage == "" {
		return errors.New("commit message is required")
	}
	if r.AuthorName == "" || r.AuthorEmail == "" || r.AccessToken == "" {
		return errors.New("session identity is incomplete")
	}
	return nil
}

// Push extracts the uploaded zip into a fresh workspace and pushes it as a
// single commit to the target branch, creating the branch upstream when it
// does not exist yet. The workspace is removed regardless of outcome.
func (s *Service) Push(ctx context.Context, req PushRequest) (retErr error) {
	if err := req.validate(); err != nil {
		return err
	}
	repoPath, err := githubRepoPath(req.TargetRepoURL)
	if err != nil {
		return err
	}
	branch := strings.TrimSpace(req.Branch)

	if err := ensureDir(s.uploadsDir); err != nil {
		return errors.Wrap(err, "create uploads dir")
	}
	workspace := filepath.Join(s.uploadsDir, "upload-"+uuid.NewString())
	if err := ensureDir(workspace); err != nil {
		return errors.Wrap(err, "create workspace")
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			s.log.Warn().Err(err).Str("path", workspace).Msg("failed to clean up workspace")
		}
	}()

	if err := extractZip(req.Archive, workspace); err != nil {
		return errors.Wrap(err, "extract uploaded zip")
	}

	run := func(args ...string) (string, error) {
		stdout, stderr, err := s.git(ctx, workspace, args...)
		if err != nil {
			msg := redactCredential(strings.TrimSpace(stderr), req.AccessToken)
			return "", errors.Wrapf(err, "git %s: %s", args[0], msg)
		}
		return stdout, nil
	}

	if _, err := run("init"); err != nil {
		return err
	}
	// Per-repo author identity from the session; never --global.
	if _, err := run("config", "user.name", req.AuthorName); err != nil {
		return err
	}
	if _, err := run("config", "user.email", req.AuthorEmail); err != nil {
		return err
	}

	remote := fmt.Sprintf("https://%s:%s@github.com/%s.git", req.AuthorName, req.AccessToken, repoPath)
	if _, err := run("remote", "add", "origin", remote); err != nil {
		return err
	}

	if _, err := run("add", "."); err != nil {
		return err
	}

	status, err := run("status", "--porcelain")
	if err != nil {
		return err
	}
	if strings.TrimSpace(status) == "" {
		tracked, err := run("ls-files")
		if err != nil {
			return err
		}
		if strings.TrimSpace(tracked) == "" {
			return errors.New("the zip contains no committable files")
		}
	}

	if _, err := run("commit", "-m", req.CommitMessage, "--allow-empty"); err != nil {
		return err
	}
	if _, err := run("branch", "-M", branch); err != nil {
		return err
	}

	// An error here means the remote branch does not exist (or the probe
	// itself failed); either way the push below creates the upstream.
	if _, _, err := s.git(ctx, workspace, "ls-remote", "--exit-code", "--heads", "origin", branch); err == nil {
		if _, err := run("fetch", "origin", branch); err != nil {
			s.log.Warn().Err(err).Str("branch", branch).Msg("fetch before push failed, pushing anyway")
		} else if _, err := run("branch", "--set-upstream-to=origin/"+branch, branch); err != nil {
			s.log.Warn().Err(err).Str("branch", branch).Msg("set-upstream failed, pushing anyway")
		}
	}

	if _, stderr, err := s.git(ctx, workspace, "push", "--set-upstream", "origin", branch); err != nil {
		return errors.New(translatePushError(redactCredential(stderr, req.AccessToken), branch))
	}

	s.log.Info().Str("repo", repoPath).Str("branch", branch).Msg("pushed uploaded archive")
	return nil
}

// translatePushError maps well-known git stderr patterns to messages a
// user can act on.
func translatePushError(stderr, branch string) string {
	switch {
	case strings.Contains(stderr, "non-fast-forward"):
		return fmt.Sprintf("push rejected as non-fast-forward: branch %q has upstream commits this upload does not include; push to a new branch or reconcile first", branch)
	case strings.Contains(stderr, "Authentication failed"):
		return "push failed: authentication failed; the access token may be invalid, expired, or missing push permission for this repository"
	case strings.Contains(stderr, "src refspec") && strings.Contains(stderr, "does not match any"):
		return fmt.Sprintf("push failed: no local branch %q to push; the branch may not have been created or nothing was committed", branch)
	case strings.Contains(stderr, "remote end hung up unexpectedly"):
		return "push failed: the remote hung up unexpectedly; this can happen with very large pushes, network problems, or server-side limits"
	case strings.Contains(stderr, "everything up-to-date"):
		return fmt.Sprintf("push failed: everything up-to-date, no new changes for branch %q", branch)
	default:
		return fmt.Sprintf("push failed: %s", strings.TrimSpace(stderr))
	}
}
