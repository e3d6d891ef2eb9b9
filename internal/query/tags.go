package query

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

//go:embed iptc_aliases.json
var iptcAliasData []byte

// NormalizeTag normalizes a value for use as an index TAG: lowercase,
// non-alphanumeric runs collapsed to a single underscore, leading/trailing
// underscores trimmed. Deterministic and total.
//
//	"Science Fiction" -> "science_fiction"
//	"Tom Hanks"       -> "tom_hanks"
//	"R&B"             -> "r_b"
func NormalizeTag(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, c := range strings.ToLower(value) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else if b.Len() > 0 && b.String()[b.Len()-1] != '_' {
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// TagExpander expands tags using IPTC Media Topic aliases. The alias map
// maps normalized terms to qcodes; the reverse map recovers every alias of
// a qcode so a single user tag fans out to its whole topic group.
type TagExpander struct {
	aliasMap   map[string]string   // alias -> qcode
	reverseMap map[string][]string // qcode -> aliases
}

var (
	expanderOnce sync.Once
	expander     *TagExpander
)

// DefaultExpander returns the process-wide expander backed by the embedded
// alias map.
func DefaultExpander() *TagExpander {
	expanderOnce.Do(func() {
		expander = newTagExpander(iptcAliasData)
	})
	return expander
}

func newTagExpander(data []byte) *TagExpander {
	aliasMap := map[string]string{}
	_ = json.Unmarshal(data, &aliasMap)

	reverse := make(map[string][]string, len(aliasMap))
	for alias, qcode := range aliasMap {
		reverse[qcode] = append(reverse[qcode], alias)
	}

	return &TagExpander{aliasMap: aliasMap, reverseMap: reverse}
}

// Expand expands a single tag to its normalized form plus every normalized
// IPTC alias sharing its topic. The result is sorted and always contains
// the normalized input.
func (e *TagExpander) Expand(tag string) []string {
	normalized := NormalizeTag(tag)
	seen := map[string]struct{}{}
	if normalized != "" {
		seen[normalized] = struct{}{}
	}

	// IPTC aliases use lowercase with spaces.
	lookup := strings.ToLower(strings.TrimSpace(tag))
	if qcode, ok := e.aliasMap[lookup]; ok {
		for _, alias := range e.reverseMap[qcode] {
			if n := NormalizeTag(alias); n != "" {
				seen[n] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ExpandAll expands a list of tags, deduplicating across inputs.
func (e *TagExpander) ExpandAll(tags []string) []string {
	seen := map[string]struct{}{}
	for _, tag := range tags {
		for _, t := range e.Expand(tag) {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
