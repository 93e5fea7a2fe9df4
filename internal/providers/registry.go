package providers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/janekbaraniewski/integrationdeck/internal/core"
	"github.com/samber/lo"
)

var ErrUnknownProvider = errors.New("unknown provider")

var (
	Notion = core.Provider{
		Name:         "Notion",
		Slug:         "notion",
		Label:        "Notion",
		WindowWidth:  600,
		WindowHeight: 600,
	}
	Airtable = core.Provider{
		Name:         "Airtable",
		Slug:         "airtable",
		Label:        "Airtable",
		WindowWidth:  600,
		WindowHeight: 600,
	}
	HubSpot = core.Provider{
		Name:         "HubSpot",
		Slug:         "hubspot",
		Label:        "HubSpot",
		WindowWidth:  800,
		WindowHeight: 800,
	}
)

// AllProviders returns the supported set in display order.
func AllProviders() []core.Provider {
	return []core.Provider{Notion, Airtable, HubSpot}
}

func Names() []string {
	return lo.Map(AllProviders(), func(p core.Provider, _ int) string { return p.Name })
}

// Lookup resolves a provider by name, slug or label, case-insensitively.
func Lookup(value string) (core.Provider, error) {
	p, ok := lo.Find(AllProviders(), func(p core.Provider) bool { return p.Matches(value) })
	if !ok {
		return core.Provider{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownProvider, strings.TrimSpace(value), strings.Join(Names(), ", "))
	}
	return p, nil
}
