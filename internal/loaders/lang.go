package loaders

import "strings"

// Stopword samples per language, enough to separate prose languages
// on document-sized inputs. Short or code-heavy content simply stays
// untagged.
var langStopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "is", "in", "that", "for", "with", "was"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "ein", "mit", "für", "von"},
	"fr": {"le", "la", "les", "et", "est", "pas", "une", "dans", "pour", "que"},
	"es": {"el", "la", "los", "que", "y", "es", "en", "un", "por", "para"},
	"nl": {"de", "het", "een", "en", "van", "is", "dat", "niet", "met", "voor"},
}

const minLangWords = 20

// detectLang tags prose content with a coarse language code, or ""
// when no language dominates.
func detectLang(content string) string {
	words := strings.Fields(strings.ToLower(content))
	if len(words) < minLangWords {
		return ""
	}

	counts := make(map[string]int, len(langStopwords))
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		for lang, stopwords := range langStopwords {
			for _, sw := range stopwords {
				if word == sw {
					counts[lang]++
					break
				}
			}
		}
	}

	best, bestCount := "", 0
	for lang, count := range counts {
		if count > bestCount {
			best, bestCount = lang, count
		}
	}

	// Require a minimum stopword density before committing.
	if bestCount*50 < len(words) {
		return ""
	}
	return best
}
