package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mediacircle/mediacircle/internal/media"
	"github.com/mediacircle/mediacircle/internal/query"
)

// Stopwords the index ignores; including them in a strict clause would
// match nothing.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"is": {}, "it": {},
}

// Query is a built index query ready for execution.
type Query struct {
	Source string
	Index  string
	Text   string // rendered RediSearch query string
	Limit  int
	NoOp   bool // executor must not contact the index

	// Tie-break fields applied after relevance, all descending.
	TieBreakers []string
}

// Build composes the index query for one source. Short queries (< 2
// non-whitespace characters) yield a no-op query even when filters are
// present. A text made only of stopwords is searched by its filters alone,
// or is a no-op when there are none.
func Build(source string, parsed query.Parsed, filters []query.Filter, mode media.Mode, limit int) Query {
	q := Query{
		Source:      source,
		Index:       IndexNames[source],
		Limit:       limit,
		TieBreakers: tieBreakers[source],
	}

	if limit <= 0 {
		q.NoOp = true
		return q
	}

	if parsed.Raw {
		q.Text = parsed.Text
		if strings.TrimSpace(q.Text) == "" {
			q.NoOp = true
		}
		return q
	}

	all := append(append([]query.Filter{}, parsed.Filters...), filters...)
	filterClauses := buildFilterClauses(source, all)

	text := strings.TrimSpace(parsed.Text)
	if countNonSpace(text) < 2 {
		q.NoOp = true
		return q
	}

	textClause := buildTextClause(source, text, mode)
	if textClause == "" && len(filterClauses) == 0 {
		q.NoOp = true
		return q
	}

	parts := make([]string, 0, 1+len(filterClauses))
	if textClause != "" {
		parts = append(parts, textClause)
	}
	parts = append(parts, filterClauses...)
	q.Text = strings.Join(parts, " ")
	return q
}

// buildTextClause renders the weighted full-text disjunction for a source.
// Autocomplete treats the trailing token as a prefix on the primary field;
// search mode uses fuzzy terms so typos still land.
func buildTextClause(source, text string, mode media.Mode) string {
	words := tokenize(text)
	if len(words) == 0 {
		return ""
	}

	var terms []string
	if mode == media.ModeAutocomplete {
		terms = make([]string, len(words))
		for i, w := range words {
			if i == len(words)-1 && len(w) >= 2 {
				terms[i] = w + "*"
			} else {
				terms[i] = w
			}
		}
	} else {
		terms = make([]string, len(words))
		for i, w := range words {
			if len(w) >= 3 {
				terms[i] = "%" + w + "%"
			} else {
				terms[i] = w
			}
		}
	}
	joined := strings.Join(terms, " ")
	plain := strings.Join(words, " ")

	fields := textFields[source]
	clauses := make([]string, 0, len(fields))
	for i, f := range fields {
		fieldTerms := joined
		if mode == media.ModeAutocomplete && i > 0 {
			fieldTerms = plain
		}
		if f.Weight != 1 {
			clauses = append(clauses, fmt.Sprintf("((@%s:(%s)) => { $weight: %g })", f.Name, fieldTerms, f.Weight))
		} else {
			clauses = append(clauses, fmt.Sprintf("(@%s:(%s))", f.Name, fieldTerms))
		}
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, " | ") + ")"
}

// buildFilterClauses renders conjunctive TAG and NUMERIC clauses. Filter
// values arrive normalized and IPTC-expanded; expansion fans into a
// disjunction inside a single TAG clause.
func buildFilterClauses(source string, filters []query.Filter) []string {
	mapping := tagFields[source]
	rangeField := rangeFields[source]

	var clauses []string
	for _, f := range filters {
		if (f.Field == "year" || f.Field == rangeField) && rangeField != "" {
			if clause := buildRangeClause(rangeField, f.Values); clause != "" {
				clauses = append(clauses, clause)
			}
			continue
		}

		field, ok := mapping[f.Field]
		if !ok || len(f.Values) == 0 {
			continue
		}
		escaped := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			if v != "" {
				escaped = append(escaped, escapeTag(v))
			}
		}
		if len(escaped) == 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("@%s:{%s}", field, strings.Join(escaped, "|")))
	}
	return clauses
}

// buildRangeClause renders a NUMERIC range from a normalized year value:
// "1990" is an exact year, "1990_2000" an inclusive range.
func buildRangeClause(field string, values []string) string {
	for _, v := range values {
		parts := strings.SplitN(v, "_", 2)
		min, errMin := strconv.Atoi(parts[0])
		if errMin != nil {
			continue
		}
		max := min
		if len(parts) == 2 {
			if m, err := strconv.Atoi(parts[1]); err == nil {
				max = m
			}
		}
		return fmt.Sprintf("@%s:[%d %d]", field, min, max)
	}
	return ""
}

// escapeTag escapes characters that terminate a TAG clause early.
func escapeTag(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "-", "\\-")
	v = strings.ReplaceAll(v, "|", "\\|")
	v = strings.ReplaceAll(v, "}", "\\}")
	return v
}

// tokenize lowercases, strips punctuation and drops stopwords.
func tokenize(text string) []string {
	raw := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = sanitizeToken(w)
		if w == "" {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		words = append(words, w)
	}
	return words
}

// sanitizeToken keeps only characters safe to embed in a query string.
func sanitizeToken(w string) string {
	var b strings.Builder
	b.Grow(len(w))
	for _, c := range w {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func countNonSpace(s string) int {
	n := 0
	for _, c := range s {
		if c != ' ' && c != '\t' {
			n++
		}
	}
	return n
}
