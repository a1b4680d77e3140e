package server_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/reporover/reporover/archive"
	"github.com/reporover/reporover/githubapi"
	"github.com/reporover/reporover/internal/config"
	"github.com/reporover/reporover/server"
	"github.com/reporover/reporover/session"
)

// stubGit fakes just enough git behavior for the handler flows: clones
// materialize a file, status reports staged changes, ls-remote reports the
// branch as absent.
func stubGit(_ context.Context, dir string, args ...string) (string, string, error) {
	switch args[0] {
	case "clone":
		target := args[2]
		if err := os.MkdirAll(target, 0o755); err != nil {
			return "", "", err
		}
		return "", "", os.WriteFile(filepath.Join(target, "main.go"), []byte("package main\n"), 0o644)
	case "status":
		return " A main.go\n", "", nil
	case "ls-remote":
		return "", "", errors.New("exit status 2")
	}
	return "", "", nil
}

type serverFixture struct {
	srv      *server.Server
	sessions *session.Manager
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	identityAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ghp_valid" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
			return
		}
		switch r.URL.Path {
		case "/user":
			_, _ = w.Write([]byte(`{"id": 42, "login": "octocat", "email": ""}`))
		case "/user/emails":
			_, _ = w.Write([]byte(`[{"email": "octo@example.com", "primary": true, "verified": true}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(identityAPI.Close)

	cfg := &config.Config{
		Environment: "development",
		AppName:     "RepoRover",
		ListenAddr:  ":0",
		LogLevel:    "disabled",
		Session: config.SessionConfig{
			Secret:     testSecret,
			TTL:        time.Hour,
			CookieName: session.DefaultCookieName,
		},
		GitHub: config.GitHubConfig{APIBaseURL: identityAPI.URL},
		Gate: config.GateConfig{
			Exclusions: []string{"/static/", "/favicon.ico", "/healthz", "/metrics"},
		},
		Dirs: config.DirsConfig{
			Clones:   t.TempDir(),
			Archives: t.TempDir(),
			Uploads:  t.TempDir(),
			Static:   t.TempDir(),
		},
	}

	codec, err := session.NewCodec(cfg.Session.Secret, cfg.Session.TTL)
	require.NoError(t, err)
	store := session.NewCookieStore(cfg.Session.CookieName, false, cfg.Session.TTL)
	sessions, err := session.NewManager(codec, store, zerolog.Nop())
	require.NoError(t, err)

	archives := archive.NewService(cfg.Dirs.Clones, cfg.Dirs.Archives, cfg.Dirs.Uploads, zerolog.Nop(), archive.WithGitRunner(stubGit))

	srv, err := server.New(cfg, zerolog.Nop(), sessions, githubapi.NewClient(cfg.GitHub.APIBaseURL), archives)
	require.NoError(t, err)

	return &serverFixture{srv: srv, sessions: sessions}
}

func (f *serverFixture) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	err := f.sessions.Create(rec, session.Claims{
		UserID:      "42",
		Name:        "octocat",
		Email:       "octo@example.com",
		AccessToken: "ghp_valid",
	})
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func (f *serverFixture) loginForm(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	t.Run("valid token creates a session and redirects home", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.loginForm(t, url.Values{"token": {"ghp_valid"}})

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)

		// The fresh cookie opens the landing page.
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookies[0])
		page := httptest.NewRecorder()
		f.srv.ServeHTTP(page, req)

		require.Equal(t, http.StatusOK, page.Code)
		require.Contains(t, page.Body.String(), "octocat")
		require.Contains(t, page.Body.String(), "octo@example.com")
	})

	t.Run("redirect_to returns the user where they started", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.loginForm(t, url.Values{"token": {"ghp_valid"}, "redirect_to": {"/api/clone"}})

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/api/clone", rec.Header().Get("Location"))
	})

	t.Run("offsite redirect_to is dropped", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.loginForm(t, url.Values{"token": {"ghp_valid"}, "redirect_to": {"//evil.example.com/"}})

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("bad credential renders an inline error", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.loginForm(t, url.Values{"token": {"ghp_bogus"}})

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Bad credentials")
		require.Empty(t, rec.Result().Cookies())
	})

	t.Run("missing token renders an inline error", func(t *testing.T) {
		f := newServerFixture(t)
		rec := f.loginForm(t, url.Values{})

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "required")
	})
}

func TestLogout(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(f.sessionCookie(t))
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared, "logout must clear the session cookie")
}

func TestGateOnServer(t *testing.T) {
	f := newServerFixture(t)

	t.Run("root without session redirects to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("healthz is never gated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("login page renders without a session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "personal access token")
	})
}

func TestCloneAndDownload(t *testing.T) {
	f := newServerFixture(t)
	cookie := f.sessionCookie(t)

	t.Run("unauthenticated clone is redirected by the gate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/clone", strings.NewReader(`{"repoUrl": "https://github.com/octocat/hello-world"}`))
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login?redirect_to=%2Fapi%2Fclone", rec.Header().Get("Location"))
	})

	t.Run("clone then download", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/clone", strings.NewReader(`{"repoUrl": "https://github.com/octocat/hello-world"}`))
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Success     bool   `json:"success"`
			ZipFileName string `json:"zipFileName"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.True(t, resp.Success)
		require.Equal(t, "hello-world.zip", resp.ZipFileName)

		dl := httptest.NewRequest(http.MethodGet, "/api/archives/hello-world.zip", nil)
		dl.AddCookie(cookie)
		dlRec := httptest.NewRecorder()
		f.srv.ServeHTTP(dlRec, dl)

		require.Equal(t, http.StatusOK, dlRec.Code)
		require.Equal(t, "application/zip", dlRec.Header().Get("Content-Type"))
	})

	t.Run("unknown archive is a 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/archives/missing.zip", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid repo url reported to the caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/clone", strings.NewReader(`{"repoUrl": "https://gitlab.com/x/y"}`))
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Contains(t, rec.Body.String(), "https://github.com/")
	})
}

func TestPushEndpoint(t *testing.T) {
	f := newServerFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("zipFile", "src.zip")
	require.NoError(t, err)
	_, err = part.Write(zipPayload(t))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("targetRepoUrl", "https://github.com/octocat/hello-world"))
	require.NoError(t, mw.WriteField("branch", "main"))
	require.NoError(t, mw.WriteField("commitMessage", "Upload sources"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/push", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(f.sessionCookie(t))

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "pushed successfully")
}

// zipPayload builds a minimal in-memory source archive.
func zipPayload(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("main.go")
	require.NoError(t, err)
	_, err = w.Write([]byte("package main\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
