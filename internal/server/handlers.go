package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"pulseboard/internal/core"
	"pulseboard/internal/manifest"
	"pulseboard/internal/render"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ThemeSummary is one row of /api/themes.
type ThemeSummary struct {
	Theme      string `json:"theme"`
	LatestDate string `json:"latest_date"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"data_dir": "ok"}
	if info, err := os.Stat(s.config.DataDir); err != nil || !info.IsDir() {
		checks["data_dir"] = "missing"
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// loadManifest reads the manifest the same tolerant way generate does.
func (s *Server) loadManifest() core.Manifest {
	m, err := manifest.Load(render.ManifestPath(s.config.DataDir))
	if err != nil {
		s.log.Warn("manifest unreadable, serving empty manifest", "error", err)
	}
	return m
}

// handleManifest handles GET /api/manifest
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.loadManifest())
}

// handleListThemes handles GET /api/themes
func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	m := s.loadManifest()

	out := make([]ThemeSummary, 0, len(m.Themes))
	for theme, entry := range m.Themes {
		out = append(out, ThemeSummary{Theme: theme, LatestDate: entry.LatestDate})
	}
	slices.SortFunc(out, func(a, b ThemeSummary) int { return strings.Compare(a.Theme, b.Theme) })

	s.respondJSON(w, http.StatusOK, out)
}

// handleGetTheme handles GET /api/themes/{theme}. The document date comes
// from the manifest, exactly as the dashboard resolves it.
func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme := chi.URLParam(r, "theme")
	if theme == "" || filepath.Base(theme) != theme || strings.HasPrefix(theme, ".") {
		s.respondError(w, http.StatusBadRequest, "invalid theme name")
		return
	}

	entry, ok := s.loadManifest().Themes[theme]
	if !ok || entry.LatestDate == "" {
		s.respondError(w, http.StatusNotFound, "theme not in manifest: "+theme)
		return
	}

	data, err := os.ReadFile(render.ThemeDocumentPath(s.config.DataDir, entry.LatestDate, theme))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "theme document missing: "+theme)
			return
		}
		s.log.Error("Failed to read theme document", "theme", theme, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to read theme document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
