package core

import "strings"

// Provider describes one third-party integration target. Every provider goes
// through the same connect workflow; only these fields differ.
type Provider struct {
	Name         string // canonical name, used to tag credential bundles
	Slug         string // backend endpoint segment: /integrations/{slug}/...
	Label        string // display label
	WindowWidth  int
	WindowHeight int
}

func (p Provider) IsZero() bool {
	return p.Slug == ""
}

// Matches reports whether value names this provider by name, slug or label.
func (p Provider) Matches(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	return strings.EqualFold(v, p.Name) || strings.EqualFold(v, p.Slug) || strings.EqualFold(v, p.Label)
}

func (p Provider) AuthorizationTitle() string {
	return p.Label + " Authorization"
}
