package query

import "strings"

// Natural-language source hints: without an explicit sources filter a user
// can type "the godfather movie" or "podcast joe rogan" and have the
// keyword stripped and turned into a source restriction. Rightmost suffix
// wins; if no suffix matches, leftmost prefix wins. "news", "ratings" and
// standalone "tv"/"show" are deliberately absent.

type multiWordHint struct {
	first, second string
	source        string
}

var multiWordHints = []multiWordHint{
	{"tv", "series", "tv"},
	{"tv", "show", "tv"},
	{"tv", "shows", "tv"},
}

var singleWordHints = map[string]string{
	"podcast":   "podcast",
	"podcasts":  "podcast",
	"movie":     "movie",
	"movies":    "movie",
	"video":     "video",
	"videos":    "video",
	"book":      "book",
	"books":     "book",
	"actor":     "person",
	"actors":    "person",
	"actress":   "person",
	"actresses": "person",
	"author":    "author",
	"authors":   "author",
	"artist":    "artist",
	"artists":   "artist",
	"album":     "album",
	"albums":    "album",
	"tvshow":    "tv",
	"tvseries":  "tv",
}

// minStrippedLength guards against hints eating the whole query: the hint
// is only honored when at least this much text remains.
const minStrippedLength = 3

// parseNaturalHint extracts a keyword source hint from the query suffix or
// prefix. Returns the cleaned query, the matched source and whether a hint
// was applied.
func parseNaturalHint(q string) (string, string, bool) {
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		return q, "", false
	}

	lower := make([]string, len(tokens))
	for i, t := range tokens {
		lower[i] = strings.ToLower(t)
	}

	source := ""
	stripCount := 0
	fromEnd := true

	// Suffix: multi-word first.
	if len(lower) >= 2 {
		for _, h := range multiWordHints {
			if lower[len(lower)-2] == h.first && lower[len(lower)-1] == h.second {
				source, stripCount, fromEnd = h.source, 2, true
				break
			}
		}
	}

	// Suffix: single-word.
	if source == "" {
		if s, ok := singleWordHints[lower[len(lower)-1]]; ok {
			source, stripCount, fromEnd = s, 1, true
		}
	}

	// Prefix: multi-word.
	if source == "" && len(lower) >= 2 {
		for _, h := range multiWordHints {
			if lower[0] == h.first && lower[1] == h.second {
				source, stripCount, fromEnd = h.source, 2, false
				break
			}
		}
	}

	// Prefix: single-word.
	if source == "" {
		if s, ok := singleWordHints[lower[0]]; ok {
			source, stripCount, fromEnd = s, 1, false
		}
	}

	if source == "" {
		return q, "", false
	}

	var remaining []string
	if fromEnd {
		remaining = tokens[:len(tokens)-stripCount]
	} else {
		remaining = tokens[stripCount:]
	}

	stripped := strings.TrimSpace(strings.Join(remaining, " "))
	if len(stripped) < minStrippedLength {
		return q, "", false
	}

	return stripped, source, true
}
