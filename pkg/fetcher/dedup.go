package fetcher

import "hadashot/pkg/domain"

// Dedupe collapses articles by identity key (URL, else external ID),
// preserving first-seen order. Articles without any identity key are
// dropped since they can neither be deduplicated nor upserted later.
func Dedupe(articles []domain.RawArticle) []domain.RawArticle {
	seen := make(map[string]struct{}, len(articles))
	result := make([]domain.RawArticle, 0, len(articles))

	for _, a := range articles {
		key := a.Key()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, a)
	}

	return result
}
