package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/admin"
	"github.com/sells-group/sample-labeler/internal/ingest"
)

// multipartMemory is the part of an upload held in memory before spilling
// to disk.
const multipartMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("file exceeds the %d MB upload limit", s.cfg.MaxUploadBytes>>20),
			})
			return
		}
		badRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "no file uploaded")
		return
	}
	defer file.Close() //nolint:errcheck

	if _, err := ingest.DetectFormat(header.Filename); err != nil {
		writeError(w, r, err)
		return
	}

	path, err := s.saveUpload(file, strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		writeError(w, r, err)
		return
	}

	taskID := s.runner.Start(s.bg, path, true)
	zap.L().Info("server: upload accepted",
		zap.String("task_id", taskID),
		zap.String("filename", header.Filename),
		zap.Int64("bytes", header.Size),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// saveUpload copies an uploaded file into the upload directory under a
// generated name so client file names never reach the filesystem.
func (s *Server) saveUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", eris.Wrap(err, "server: create upload dir")
	}
	path := filepath.Join(s.cfg.UploadDir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "server: create upload file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()     //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(err, "server: save upload")
	}
	if err := dst.Close(); err != nil {
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(err, "server: save upload")
	}
	return path, nil
}

func (s *Server) handleUploadProgress(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.runner.Tracker().Get(chi.URLParam(r, "task"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	scope, err := admin.ParseExportScope(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, n, err := s.exporter.ExportFile(r.Context(), s.cfg.ExportDir, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	zap.L().Info("server: export written", zap.String("path", path), zap.Int("rows", n))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.admin.ClearSamples(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.Dashboard(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context(), userFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in admin.NewUser
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.users.Create(r.Context(), userFrom(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	var in admin.UserUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := s.users.Update(r.Context(), userFrom(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logins.flush()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid user id")
		return
	}
	u, err := s.users.Toggle(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logins.flush()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleBrandsForCategory(w http.ResponseWriter, r *http.Request) {
	brands, err := s.admin.BrandsForCategory(r.Context(), userFrom(r.Context()), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"brands": brands})
}

// handleScopeOptions returns the category and brand lists offered by the
// user forms.
func (s *Server) handleScopeOptions(w http.ResponseWriter, r *http.Request) {
	actor := userFrom(r.Context())
	cats, err := s.admin.Categories(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	brands, err := s.admin.Brands(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats, "brands": brands})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}
