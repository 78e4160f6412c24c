package models

import "strings"

// PlaceholderImage is served for places without a usable image.
const PlaceholderImage = "/assets/static/images/NoImage.png"

// nullImage is the literal the recommendation backend sends for a missing image.
const nullImage = "null"

// Place is a single recommendation candidate. Name is the identity within a
// result set and across the selection set.
type Place struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Category    string `json:"category,omitempty"`
	Region      string `json:"region,omitempty"`
	Description string `json:"description,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// MatchesKeyword reports whether the place is classified by keyword through
// either its type or its category.
func (p Place) MatchesKeyword(keyword string) bool {
	return p.Type == keyword || p.Category == keyword
}

// Summary joins description and reason the way the list row displays them.
func (p Place) Summary() string {
	return strings.TrimSpace(p.Description + " " + p.Reason)
}

// Subtitle is the "type · region" line under the place name.
func (p Place) Subtitle() string {
	switch {
	case p.Type == "":
		return p.Region
	case p.Region == "":
		return p.Type
	}
	return p.Type + " · " + p.Region
}

// ImageSrc returns the image to render for the place.
func (p Place) ImageSrc() string {
	return ResolveImage(p.ImageURL)
}

// ResolveImage applies the image fallback contract: an empty URL or the
// literal "null" resolves to PlaceholderImage, anything else is kept as is.
func ResolveImage(url string) string {
	if url == "" || url == nullImage {
		return PlaceholderImage
	}
	return url
}

// ResultSet is an ordered list of places; order is display order.
type ResultSet []Place

// Clone returns a copy that shares no backing array with rs. A nil set
// clones to an empty, non-nil set.
func (rs ResultSet) Clone() ResultSet {
	out := make(ResultSet, len(rs))
	copy(out, rs)
	return out
}

// Names returns the place names in order.
func (rs ResultSet) Names() []string {
	names := make([]string, 0, len(rs))
	for _, p := range rs {
		names = append(names, p.Name)
	}
	return names
}

// Find looks a place up by name.
func (rs ResultSet) Find(name string) (Place, bool) {
	for _, p := range rs {
		if p.Name == name {
			return p, true
		}
	}
	return Place{}, false
}

// FilterByKeyword returns the subsequence of rs classified by keyword,
// preserving relative order. rs is not modified.
func (rs ResultSet) FilterByKeyword(keyword string) ResultSet {
	out := make(ResultSet, 0, len(rs))
	for _, p := range rs {
		if p.MatchesKeyword(keyword) {
			out = append(out, p)
		}
	}
	return out
}

// DedupeByName drops later duplicates of a name, keeping first occurrences
// in order.
func (rs ResultSet) DedupeByName() ResultSet {
	seen := make(map[string]struct{}, len(rs))
	out := make(ResultSet, 0, len(rs))
	for _, p := range rs {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out
}
