package server

import (
	"encoding/json"
	"net/http"

	"github.com/reporover/reporover/session"
)

// IndexPageData contains data for rendering the landing page
type IndexPageData struct {
	Name  string
	Email string
}

// IndexHandler renders the authenticated landing page (GET /). The gate
// guarantees a session is present by the time this runs.
func (s *Server) IndexHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("index.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims := session.FromContext(r.Context())
		if claims == nil {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		err := tmpl.Execute(w, IndexPageData{Name: claims.Name, Email: claims.Email})
		if err != nil {
			s.log.Err(err).Msg("failed to render index page")
		}
	}, nil
}

// HealthzHandler reports liveness (GET /healthz); never gated.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
