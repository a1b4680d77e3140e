package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/reporover/reporover/githubapi"
	"github.com/reporover/reporover/session"
)

const contentTypeHTML = "text/html; charset=utf-8"

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	Error      string
	RedirectTo string
	Name       string // Preserve display name on error
	Email      string // Preserve email on error
}

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := LoginPageData{
			RedirectTo: safeRedirectPath(r.URL.Query().Get("redirect_to")),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			s.log.Err(err).Msg("failed to render login page")
		}
	}, nil
}

// LoginSubmitHandler processes the login form (POST /login): the supplied
// personal access token is verified against the upstream identity API
// exactly once, and a session is created only from verified output.
func (s *Server) LoginSubmitHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, err
	}

	renderError := func(w http.ResponseWriter, data LoginPageData) {
		w.Header().Set("Content-Type", contentTypeHTML)
		w.WriteHeader(http.StatusUnauthorized)
		if err := tmpl.Execute(w, data); err != nil {
			s.log.Err(err).Msg("failed to render login error")
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		data := LoginPageData{
			RedirectTo: safeRedirectPath(r.FormValue("redirect_to")),
			Name:       r.FormValue("name"),
			Email:      r.FormValue("email"),
		}

		token := strings.TrimSpace(r.FormValue("token"))
		if token == "" {
			data.Error = "Personal access token is required."
			renderError(w, data)
			return
		}

		user, err := s.identity.VerifyCredential(r.Context(), token)
		if err != nil {
			s.log.Warn().Err(err).Msg("credential verification failed")
			data.Error = "Invalid personal access token or insufficient scopes (requires read:user): " + err.Error()
			renderError(w, data)
			return
		}

		// Best effort: needs the user:email scope, and the login still
		// works without it.
		emails, err := s.identity.ListVerifiedEmails(r.Context(), token)
		if err != nil {
			s.log.Debug().Err(err).Msg("could not list verified emails, falling back")
		}

		claims := session.Claims{
			UserID:      strconv.FormatInt(user.ID, 10),
			Name:        user.Login,
			Email:       githubapi.ResolveEmail(user, emails, data.Email),
			AccessToken: token,
		}
		if err := s.sessions.Create(w, claims); err != nil {
			s.log.Err(err).Msg("failed to create session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		target := data.RedirectTo
		if target == "" {
			target = RouteRoot
		}
		s.log.Info().Str("user", user.Login).Msg("login succeeded")
		http.Redirect(w, r, target, http.StatusSeeOther)
	}, nil
}

// LogoutHandler destroys the session (POST /logout). The token itself is
// not revoked server-side; it simply stops being presented and expires.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Destroy(w)
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// safeRedirectPath keeps post-login redirects on this site: only rooted
// paths survive, so redirect_to can never become an open redirect.
func safeRedirectPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return ""
	}
	return p
}
