package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reporover/reporover/session"
)

// Decision is the outcome of evaluating one request against the gate.
type Decision struct {
	// Redirect is the target URL when the request must be redirected;
	// empty means the request is allowed through.
	Redirect string
}

// Allowed reports whether the request proceeds to its handler.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Decide is the pure allow/redirect rule applied to every gated request:
//
//   - the login page bounces an already-authenticated user to the root,
//     and lets everyone else through;
//   - any other path without a session redirects to the login page,
//     carrying the requested path in redirect_to (omitted for the root,
//     where there is nowhere more specific to return to);
//   - any other path with a session is allowed.
func Decide(path string, authenticated bool) Decision {
	if isLoginPath(path) {
		if authenticated {
			return Decision{Redirect: RouteRoot}
		}
		return Decision{}
	}
	if !authenticated {
		target := RouteLogin
		if path != RouteRoot {
			target += "?redirect_to=" + url.QueryEscape(path)
		}
		return Decision{Redirect: target}
	}
	return Decision{}
}

func isLoginPath(path string) bool {
	return path == RouteLogin || strings.HasPrefix(path, RouteLogin+"/")
}

// SessionGate intercepts every inbound request except declared exclusions,
// deciding allow/redirect from session presence. Requests allowed through
// with a valid session get the session refreshed and the verified claims
// attached to the request context. Every failure mode on the way — bad
// cookie, expired token — degrades to "treat as unauthenticated".
type SessionGate struct {
	sessions   *session.Manager
	exclusions []string
	log        zerolog.Logger
}

// NewSessionGate creates the gate. Exclusions ending in "/" match as path
// prefixes; all others match exactly.
func NewSessionGate(sessions *session.Manager, exclusions []string, log zerolog.Logger) *SessionGate {
	return &SessionGate{
		sessions:   sessions,
		exclusions: exclusions,
		log:        log,
	}
}

// Excluded reports whether the path bypasses the gate entirely.
func (g *SessionGate) Excluded(path string) bool {
	for _, e := range g.exclusions {
		if strings.HasSuffix(e, "/") {
			if strings.HasPrefix(path, e) {
				return true
			}
			continue
		}
		if path == e {
			return true
		}
	}
	return false
}

// Middleware applies the gate to every request.
func (g *SessionGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if g.Excluded(path) {
			next.ServeHTTP(w, r)
			return
		}

		claims := g.sessions.FromRequest(r)
		decision := Decide(path, claims.Complete())
		if !decision.Allowed() {
			g.log.Debug().Str("path", path).Str("redirect", decision.Redirect).Msg("gate redirect")
			http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
			return
		}

		if claims != nil {
			// Touch the session: same claims, fresh expiry window.
			claims = g.sessions.Refresh(w, r)
			r = r.WithContext(session.WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}
