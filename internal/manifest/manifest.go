// Package manifest tracks the latest generated date per theme.
package manifest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"maps"
	"os"
	"time"

	"pulseboard/internal/core"
	"pulseboard/internal/render"
)

// Empty returns a manifest with no themes.
func Empty() core.Manifest {
	return core.Manifest{GeneratedAtUTC: "", Themes: map[string]core.ManifestEntry{}}
}

// Load reads the manifest at path. A missing or unreadable file yields an
// empty manifest; the returned error is informational only.
func Load(path string) (core.Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Empty(), err
	}

	var m core.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Empty(), err
	}
	if m.Themes == nil {
		m.Themes = map[string]core.ManifestEntry{}
	}
	return m, nil
}

// Merge returns a new manifest where every theme in succeeded points at date.
// Entries for other themes are carried over unchanged. prev is not modified.
func Merge(prev core.Manifest, succeeded []string, date string, now time.Time) core.Manifest {
	themes := make(map[string]core.ManifestEntry, len(prev.Themes)+len(succeeded))
	maps.Copy(themes, prev.Themes)
	for _, theme := range succeeded {
		themes[theme] = core.ManifestEntry{LatestDate: date}
	}
	return core.Manifest{
		GeneratedAtUTC: core.FormatTimestamp(now),
		Themes:         themes,
	}
}

// Save writes the manifest in the standard JSON layout.
func Save(path string, m core.Manifest) error {
	return render.WriteJSON(path, m)
}
