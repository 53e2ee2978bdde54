// Package dedupe canonicalizes article URLs and removes repeated stories.
package dedupe

import (
	"net/url"
	"strings"

	"pulseboard/internal/core"
)

// trackingParams are dropped from query strings, compared case-insensitively.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"utm_id":       true,
	"gclid":        true,
	"fbclid":       true,
	"mc_cid":       true,
	"mc_eid":       true,
	"ref":          true,
	"ref_src":      true,
	"igshid":       true,
}

// CanonicalURL removes tracking parameters, the fragment and trailing slashes.
// Input that is not an absolute URL is returned trimmed but otherwise untouched.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Opaque != "" {
		return trimmed
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		u.RawQuery = stripTracking(u.RawQuery)
	}
	u.ForceQuery = false

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String()
}

// stripTracking drops tracking pairs and keeps the rest in their original order
// and encoding.
func stripTracking(raw string) string {
	pairs := strings.Split(raw, "&")
	kept := pairs[:0]
	dropped := false
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if trackingParams[strings.ToLower(key)] {
			dropped = true
			continue
		}
		kept = append(kept, pair)
	}
	if !dropped {
		return raw
	}
	return strings.Join(kept, "&")
}

// NormalizeText trims, lowercases and collapses whitespace runs to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key returns the identity key for a story and its canonical URL. An empty key
// means the story can be identified neither by URL nor by title.
func Key(rawURL, title, source string) (key, canonical string) {
	canonical = CanonicalURL(rawURL)
	if canonical != "" {
		return "url:" + canonical, canonical
	}
	if t := NormalizeText(title); t != "" {
		return "t:" + t + "|s:" + NormalizeText(source), canonical
	}
	return "", canonical
}

// By keeps the first item for every identity key, in input order. keyOf returns
// the item's key and a copy of the item to emit; an empty key drops the item.
func By[T any](items []T, keyOf func(T) (string, T)) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key, emit := keyOf(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, emit)
	}
	return out
}

// Articles deduplicates normalized articles and rewrites their URLs to canonical form.
func Articles(articles []core.Article) []core.Article {
	return By(articles, func(a core.Article) (string, core.Article) {
		key, canonical := Key(a.URL, a.Title, a.Source)
		a.URL = canonical
		return key, a
	})
}

// UniqueStrings keeps the first of each case and whitespace insensitive value,
// skipping blanks. Returned values are the original, unnormalized strings.
func UniqueStrings(items []string) []string {
	return By(items, func(s string) (string, string) {
		return NormalizeText(s), s
	})
}
