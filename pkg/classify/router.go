// Package classify routes articles to sectors by keyword matching.
package classify

import (
	"strings"

	"hadashot/pkg/config"
	"hadashot/pkg/domain"
)

// Router assigns articles to sectors using keyword matching. Sectors are
// checked in configuration declaration order, first match wins; articles
// matching nothing get the default sector.
type Router struct {
	sectors       []sectorKeywords
	defaultSector domain.Sector
}

type sectorKeywords struct {
	name     domain.Sector
	keywords []string
}

// NewRouter builds a router from the configured sectors. Keywords are
// lower-cased once here so Categorize stays allocation-light.
func NewRouter(sectors []config.SectorConfig, defaultSector domain.Sector) *Router {
	r := &Router{defaultSector: defaultSector}
	for _, s := range sectors {
		if len(s.Keywords) == 0 {
			continue
		}
		kw := make([]string, len(s.Keywords))
		for i, k := range s.Keywords {
			kw[i] = strings.ToLower(k)
		}
		r.sectors = append(r.sectors, sectorKeywords{name: domain.Sector(s.Name), keywords: kw})
	}
	return r
}

// Categorize returns the first sector with any keyword present as a
// substring of the lower-cased title and description, or the default sector.
// Pure function, no I/O.
func (r *Router) Categorize(title, description string) domain.Sector {
	text := strings.ToLower(title + " " + description)

	for _, s := range r.sectors {
		for _, kw := range s.keywords {
			if strings.Contains(text, kw) {
				return s.name
			}
		}
	}

	return r.defaultSector
}
