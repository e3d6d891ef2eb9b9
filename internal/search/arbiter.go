package search

import (
	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
)

// exactCandidate finds the first document in docs whose canonical name
// equals the canonical query. Canonical names are precomputed during
// normalization so this is a plain string walk.
func exactCandidate(canonicalQuery string, docs []index.ScoredDoc) media.Document {
	if canonicalQuery == "" {
		return nil
	}
	for _, d := range docs {
		if d.Canonical == canonicalQuery {
			return d.Doc
		}
	}
	return nil
}

// PickExactMatch walks the accumulated indexed results in source-priority
// order (movie, tv, person, podcast, book, author) and returns the single
// exact-match payload, or nil. Media payloads get their cast restructured
// into {name, id|null} pairs.
func PickExactMatch(canonicalQuery string, resultsBySource map[string][]index.ScoredDoc) media.Document {
	for _, source := range media.ExactMatchPriority {
		if doc := exactCandidate(canonicalQuery, resultsBySource[source]); doc != nil {
			return ExactMatchPayload(doc)
		}
	}
	return nil
}

// ExactMatchPayload builds the exact-match item from a winning document.
// The document itself stays untouched; media items get a copy with cast
// zipped against cast_ids positionally, missing ids becoming null.
func ExactMatchPayload(doc media.Document) media.Document {
	mcType := doc.MCType()
	if mcType != media.TypeMovie && mcType != media.TypeTV {
		return doc
	}

	cast := doc.Strings("cast")
	if cast == nil {
		return doc
	}
	castIDs := doc.Strings("cast_ids")

	members := make([]media.CastMember, len(cast))
	for i, name := range cast {
		member := media.CastMember{Name: name}
		if i < len(castIDs) && castIDs[i] != "" {
			id := castIDs[i]
			member.ID = &id
		}
		members[i] = member
	}

	out := make(media.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	out["cast"] = members
	return out
}
