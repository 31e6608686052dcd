package assets

import "hadashot/pkg/domain"

// placeholders maps sectors to their stock placeholder images, used when no
// fallback URL is configured
var placeholders = map[domain.Sector]string{
	domain.SectorFarming:     "https://via.placeholder.com/800x450/e8f5e9/1b5e20?text=Agriculture",
	domain.SectorTech:        "https://via.placeholder.com/800x450/e3f2fd/0d47a1?text=Technology",
	domain.SectorPolitics:    "https://via.placeholder.com/800x450/f3e5f5/4a148c?text=Politics",
	domain.SectorHospitality: "https://via.placeholder.com/800x450/fff3e0/e65100?text=Hospitality",
	domain.SectorGeneral:     "https://via.placeholder.com/800x450/ffffff/333333?text=Israel+News",
}

// Placeholder returns the placeholder image for a category, defaulting to
// the general one for unknown sectors
func Placeholder(category domain.Sector) string {
	if url, ok := placeholders[category]; ok {
		return url
	}
	return placeholders[domain.SectorGeneral]
}
