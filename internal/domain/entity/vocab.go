package entity

// CountryCodes is the closed 22-country vocabulary for PublishedArticle.Countries.
// Unknown codes produced by the Tagger (C10) are dropped rather than stored.
var CountryCodes = map[string]bool{
	"US": true, "GB": true, "FR": true, "DE": true, "IT": true,
	"ES": true, "RU": true, "UA": true, "CN": true, "JP": true,
	"KR": true, "IN": true, "BR": true, "CA": true, "AU": true,
	"MX": true, "ZA": true, "EG": true, "SA": true, "IL": true,
	"IR": true, "TR": true,
}

// TopicCodes is the closed 29-topic vocabulary for PublishedArticle.Topics.
var TopicCodes = map[string]bool{
	"politics": true, "economy": true, "business": true, "markets": true,
	"technology": true, "science": true, "health": true, "climate": true,
	"energy": true, "military": true, "conflict": true, "diplomacy": true,
	"elections": true, "crime": true, "justice": true, "education": true,
	"sports": true, "culture": true, "entertainment": true, "media": true,
	"space": true, "transportation": true, "infrastructure": true,
	"disasters": true, "immigration": true, "labor": true, "trade": true,
	"cybersecurity": true, "society": true,
}

// DefaultTopicForCategory is the deterministic fallback used when the
// Tagger's topics list comes back empty after vocabulary filtering (C10).
func DefaultTopicForCategory(category string) string {
	switch category {
	case "business", "markets", "economy":
		return "economy"
	case "science", "technology":
		return "technology"
	case "health":
		return "health"
	case "sports":
		return "sports"
	case "entertainment", "culture":
		return "culture"
	default:
		return "society"
	}
}

// FilterCountries drops codes not present in the closed vocabulary, keeping
// at most 3 as required by the data model.
func FilterCountries(codes []string) []string {
	out := make([]string, 0, 3)
	for _, c := range codes {
		if CountryCodes[c] {
			out = append(out, c)
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}

// FilterTopics drops codes not present in the closed vocabulary, keeping at
// most 3, and applies DefaultTopicForCategory if the result would be empty.
func FilterTopics(codes []string, category string) []string {
	out := make([]string, 0, 3)
	for _, c := range codes {
		if TopicCodes[c] {
			out = append(out, c)
		}
		if len(out) == 3 {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultTopicForCategory(category))
	}
	return out
}
