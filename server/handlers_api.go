package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reporover/reporover/archive"
	"github.com/reporover/reporover/session"
)

// maxUploadBytes caps the size of an uploaded source archive.
const maxUploadBytes = 64 << 20

type apiResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	ZipFileName string `json:"zipFileName,omitempty"`
}

type cloneRequest struct {
	RepoURL string `json:"repoUrl"`
}

// CloneHandler clones a repository and packages it (POST /api/clone).
func (s *Server) CloneHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := session.FromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "user not authenticated or access token missing"})
			return
		}

		var req cloneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
			return
		}

		res, err := s.archives.Clone(r.Context(), req.RepoURL, claims.AccessToken)
		if err != nil {
			s.log.Warn().Err(err).Str("repo", req.RepoURL).Msg("clone failed")
			writeJSON(w, http.StatusBadGateway, apiResponse{Message: err.Error()})
			return
		}

		message := "repository cloned and archived"
		if res.Reused {
			message = "repository was already present; archived"
		}
		writeJSON(w, http.StatusOK, apiResponse{
			Success:     true,
			Message:     message,
			ZipFileName: res.ArchiveName,
		})
	}
}

// DownloadArchiveHandler serves a previously created archive
// (GET /api/archives/{archive}).
func (s *Server) DownloadArchiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "archive")
		path, err := s.archives.ArchivePath(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		http.ServeFile(w, r, path)
	}
}

// PushHandler commits an uploaded archive to a branch (POST /api/push).
// The commit author and credential come from the session claims; an
// absent session is a terminal failure, never retried.
func (s *Server) PushHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := session.FromContext(r.Context())
		if claims == nil {
			writeJSON(w, http.StatusUnauthorized, apiResponse{Message: "user not fully authenticated or session data incomplete"})
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid multipart form"})
			return
		}

		file, _, err := r.FormFile("zipFile")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "no source code zip file provided"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Message: "failed to read uploaded file"})
			return
		}
		if len(data) > maxUploadBytes {
			writeJSON(w, http.StatusRequestEntityTooLarge, apiResponse{Message: "uploaded archive is too large"})
			return
		}

		err = s.archives.Push(r.Context(), archive.PushRequest{
			Archive:       data,
			TargetRepoURL: r.FormValue("targetRepoUrl"),
			Branch:        r.FormValue("branch"),
			CommitMessage: r.FormValue("commitMessage"),
			AuthorName:    claims.Name,
			AuthorEmail:   claims.Email,
			AccessToken:   claims.AccessToken,
		})
		if err != nil {
			s.log.Warn().Err(err).Msg("push failed")
			writeJSON(w, http.StatusBadGateway, apiResponse{Message: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "code pushed successfully"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
