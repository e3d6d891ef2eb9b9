package index

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mediacircle/mediacircle/internal/media"
)

// Unix-second timestamp fields stored as floats by some ingestion paths.
var timestampFields = []string{"last_update_time", "release_timestamp", "created_at", "updated_at"}

var trailingDigitsRe = regexp.MustCompile(`_(\d+)$`)

// NormalizeDoc converts a raw index document into its public shape. For a
// JSON index the document body lives under the "$" attribute; hash indexes
// return plain field maps. Normalization injects mc_id, reconciles
// title/search_title, converts Unix-second timestamps to integers and
// repairs legacy person ids. It never introduces fields the stored
// document does not have.
func NormalizeDoc(id string, fields map[string]string) media.Document {
	doc := media.Document{}

	if body, ok := fields["$"]; ok && body != "" {
		if err := json.Unmarshal([]byte(body), (*map[string]any)(&doc)); err != nil {
			return nil
		}
	} else {
		for k, v := range fields {
			doc[k] = parseScalar(v)
		}
	}

	doc["mc_id"] = id

	title, _ := doc["title"].(string)
	searchTitle, _ := doc["search_title"].(string)
	if title != "" && searchTitle == "" {
		doc["search_title"] = title
	} else if searchTitle != "" && title == "" {
		doc["title"] = searchTitle
	}

	for _, field := range timestampFields {
		if v, ok := doc[field].(float64); ok {
			doc[field] = int64(v)
		}
	}

	repairLegacyPerson(doc)

	return doc
}

// repairLegacyPerson fixes person documents ingested before ids carried
// the tmdb_ prefix, and derives source_id from the trailing digits.
// OpenLibrary authors keep their own id scheme.
func repairLegacyPerson(doc media.Document) {
	if doc.MCType() != media.TypePerson || doc.MCSubtype() == media.SubtypeAuthor {
		return
	}

	id := doc.ID()
	if strings.HasPrefix(id, "person_") && !strings.HasPrefix(id, "tmdb_") {
		id = "tmdb_" + id
		doc["mc_id"] = id
	}

	if s, _ := doc["source_id"].(string); s == "" {
		if m := trailingDigitsRe.FindStringSubmatch(id); m != nil {
			doc["source_id"] = m[1]
		}
	}
}

// CanonicalName lowercases, trims and strips punctuation from a primary
// name so exact-match comparison is a single string equality.
func CanonicalName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, c := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b.WriteRune(c)
			lastSpace = false
		case !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// parseScalar converts hash field strings into JSON-ish scalars.
func parseScalar(v string) any {
	if v == "" {
		return v
	}
	var n json.Number
	if err := json.Unmarshal([]byte(v), &n); err == nil {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	if strings.HasPrefix(v, "[") || strings.HasPrefix(v, "{") {
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return parsed
		}
	}
	return v
}
