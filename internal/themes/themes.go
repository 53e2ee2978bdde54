// Package themes reads the theme -> tickers mapping that drives a run.
package themes

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Theme is a curated topic bucket with its ordered ticker list.
type Theme struct {
	Name    string
	Tickers []string
}

// ErrNoThemes is returned when the file defines no themes at all.
var ErrNoThemes = errors.New("no themes defined")

// Load reads a JSON or YAML mapping file. File key order is kept because it is
// the order themes are processed in.
func Load(path string) ([]Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read themes file %s: %w", path, err)
	}
	list, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse themes file %s: %w", path, err)
	}
	return list, nil
}

// Parse decodes the mapping. A null ticker list is treated as empty.
func Parse(data []byte) ([]Theme, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, ErrNoThemes
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of theme to tickers, got %s", kindName(root.Kind))
	}

	seen := make(map[string]bool, len(root.Content)/2)
	out := make([]Theme, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := strings.TrimSpace(root.Content[i].Value)
		if name == "" {
			return nil, fmt.Errorf("line %d: empty theme name", root.Content[i].Line)
		}
		if seen[name] {
			return nil, fmt.Errorf("line %d: duplicate theme %q", root.Content[i].Line, name)
		}
		seen[name] = true

		var tickers []string
		if err := root.Content[i+1].Decode(&tickers); err != nil {
			return nil, fmt.Errorf("theme %q: tickers must be a list of strings: %w", name, err)
		}
		if tickers == nil {
			tickers = []string{}
		}
		out = append(out, Theme{Name: name, Tickers: tickers})
	}

	if len(out) == 0 {
		return nil, ErrNoThemes
	}
	return out, nil
}

// Filter keeps only the named themes, preserving file order. An empty filter keeps all.
func Filter(list []Theme, only []string) []Theme {
	if len(only) == 0 {
		return list
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[strings.TrimSpace(n)] = true
	}
	out := make([]Theme, 0, len(list))
	for _, t := range list {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an unsupported node"
	}
}
