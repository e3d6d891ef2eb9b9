// Package query parses free-text search queries into per-source index
// queries: source-hint extraction, tag-filter lifting, and IPTC-aware tag
// normalization.
package query

import (
	"regexp"
	"strings"
)

// Filter is a conjunctive tag clause. Values are normalized and
// IPTC-expanded; multiple values form a disjunction on the field.
type Filter struct {
	Field  string
	Values []string
}

// Parsed is the outcome of parsing a raw query. Parsing never fails; the
// empty string is a legal parse.
type Parsed struct {
	SourceHint []string // nil when no hint was present
	Filters    []Filter
	Text       string
	Raw        bool // text bypasses query building and is forwarded verbatim
}

var (
	bracketFilterRe = regexp.MustCompile(`\[([a-zA-Z_][a-zA-Z0-9_]*)=([^\]]+)\]`)
	keywordQuoteRe  = regexp.MustCompile(`keyword:"([^"]*)"`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// Parse splits a raw query into source hint, filter clauses and remaining
// text. When raw is true the query is passed through untouched.
func Parse(q string, raw bool) Parsed {
	if raw {
		return Parsed{Text: q, Raw: true}
	}

	text := q
	var hint []string

	// Explicit source-hint prefix: "tv,movie:the office".
	if idx := strings.Index(text, ":"); idx > 0 {
		candidate := text[:idx]
		if tags, ok := parseHintTokens(candidate); ok {
			hint = tags
			text = text[idx+1:]
		}
	}

	expand := DefaultExpander()
	var filters []Filter

	// Bracketed [tag=value] segments.
	text = bracketFilterRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := bracketFilterRe.FindStringSubmatch(m)
		filters = append(filters, Filter{
			Field:  strings.ToLower(sub[1]),
			Values: expand.Expand(sub[2]),
		})
		return " "
	})

	// keyword:"name" segments.
	text = keywordQuoteRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := keywordQuoteRe.FindStringSubmatch(m)
		if strings.TrimSpace(sub[1]) != "" {
			filters = append(filters, Filter{
				Field:  "keywords",
				Values: expand.Expand(sub[1]),
			})
		}
		return " "
	})

	text = collapseWhitespace(text)

	// Natural-language hints only apply when nothing narrowed the search
	// explicitly.
	if hint == nil {
		if cleaned, source, ok := parseNaturalHint(text); ok {
			text = cleaned
			hint = []string{source}
		}
	}

	return Parsed{SourceHint: hint, Filters: filters, Text: text}
}

// ParseFilterList parses the request-level filters parameter: a
// comma-separated list of field=value pairs, bare values filtering on
// keywords.
func ParseFilterList(raw string) []Filter {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	expand := DefaultExpander()
	var filters []Filter
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := "keywords"
		value := part
		if idx := strings.Index(part, "="); idx > 0 {
			field = strings.ToLower(strings.TrimSpace(part[:idx]))
			value = part[idx+1:]
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		filters = append(filters, Filter{Field: field, Values: expand.Expand(value)})
	}
	return filters
}

// parseHintTokens validates a comma-separated source-hint prefix. Every
// token must name a known source for the prefix to count as a hint.
func parseHintTokens(candidate string) ([]string, bool) {
	if strings.ContainsAny(candidate, " \t") {
		return nil, false
	}
	parts := strings.Split(candidate, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" || !isSourceTag(tag) {
			return nil, false
		}
		tags = append(tags, tag)
	}
	return tags, len(tags) > 0
}

func isSourceTag(tag string) bool {
	switch tag {
	case "tv", "movie", "person", "podcast", "author", "book",
		"news", "video", "ratings", "artist", "album":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
