package search

import (
	"sort"
	"strings"

	"github.com/mediacircle/mediacircle/internal/index"
	"github.com/mediacircle/mediacircle/internal/media"
	"github.com/mediacircle/mediacircle/internal/query"
)

// Tiered match-quality re-ranking applied on top of index relevance.
// Lower tier is better; within a tier media sorts by year then popularity
// descending, people by name length ascending then popularity descending.
//
// Media tiers: exact title (raw, then normalized), exact director, exact
// cast, exact keyword, exact genre; then word containment over the same
// fields; then title substring, any-TAG substring, title prefix, any-TAG
// prefix; fallback last.

const (
	tierExactTitleRaw = iota
	tierExactTitleNorm
	tierExactDirector
	tierExactCast
	tierExactKeyword
	tierExactGenre
	tierWordTitle
	tierWordDirector
	tierWordCast
	tierWordKeyword
	tierWordGenre
	tierSubstringTitle
	tierSubstringTag
	tierPrefixTitle
	tierPrefixTag
	tierFallback
)

type mediaKey struct {
	tier       int
	year       int
	popularity float64
}

// RankMedia re-orders tv/movie results by match quality against the query.
func RankMedia(q string, docs []index.ScoredDoc) {
	queryLower := strings.ToLower(strings.TrimSpace(q))
	queryNorm := query.NormalizeTag(q)

	keys := make([]mediaKey, len(docs))
	for i, d := range docs {
		keys[i] = scoreMedia(queryLower, queryNorm, d.Doc)
	}

	sortByKeys(docs, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.year != b.year {
			return a.year > b.year
		}
		return a.popularity > b.popularity
	}, keys)
}

func scoreMedia(queryLower, queryNorm string, doc media.Document) mediaKey {
	titleRaw := strings.ToLower(strings.TrimSpace(doc.SearchTitle()))
	titleNorm := query.NormalizeTag(titleRaw)
	director, _ := doc["director_name"].(string)
	castNames := doc.Strings("cast_names")
	keywords := doc.Strings("keywords")
	genres := doc.Strings("genres")

	key := mediaKey{year: doc.Year(), popularity: doc.Popularity()}

	switch {
	case queryLower == titleRaw:
		key.tier = tierExactTitleRaw
	case queryNorm == titleNorm:
		key.tier = tierExactTitleNorm
	case director != "" && queryNorm == director:
		key.tier = tierExactDirector
	case containsExact(castNames, queryNorm):
		key.tier = tierExactCast
	case containsExact(keywords, queryNorm):
		key.tier = tierExactKeyword
	case containsExact(genres, queryNorm):
		key.tier = tierExactGenre
	case containsWord(titleNorm, queryNorm):
		key.tier = tierWordTitle
	case director != "" && containsWord(director, queryNorm):
		key.tier = tierWordDirector
	case anyContainsWord(castNames, queryNorm):
		key.tier = tierWordCast
	case anyContainsWord(keywords, queryNorm):
		key.tier = tierWordKeyword
	case anyContainsWord(genres, queryNorm):
		key.tier = tierWordGenre
	case strings.Contains(titleNorm, queryNorm):
		key.tier = tierSubstringTitle
	case strings.Contains(director, queryNorm) ||
		anyContains(castNames, queryNorm) ||
		anyContains(keywords, queryNorm) ||
		anyContains(genres, queryNorm):
		key.tier = tierSubstringTag
	case strings.HasPrefix(titleNorm, queryNorm):
		key.tier = tierPrefixTitle
	case strings.HasPrefix(director, queryNorm) ||
		anyHasPrefix(castNames, queryNorm) ||
		anyHasPrefix(keywords, queryNorm) ||
		anyHasPrefix(genres, queryNorm):
		key.tier = tierPrefixTag
	default:
		key.tier = tierFallback
	}
	return key
}

type personKey struct {
	tier       int
	nameLen    int
	popularity float64
}

// RankPerson re-orders person results: exact name, exact normalized name,
// word, substring, prefix, fallback.
func RankPerson(q string, docs []index.ScoredDoc) {
	queryLower := strings.ToLower(strings.TrimSpace(q))
	queryNorm := query.NormalizeTag(q)

	keys := make([]personKey, len(docs))
	for i, d := range docs {
		name := strings.ToLower(strings.TrimSpace(d.Doc.SearchTitle()))
		nameNorm := query.NormalizeTag(name)
		key := personKey{nameLen: len(name), popularity: d.Doc.Popularity()}
		switch {
		case queryLower == name:
			key.tier = 0
		case queryNorm == nameNorm:
			key.tier = 1
		case containsWord(nameNorm, queryNorm):
			key.tier = 2
		case strings.Contains(nameNorm, queryNorm):
			key.tier = 3
		case strings.HasPrefix(nameNorm, queryNorm):
			key.tier = 4
		default:
			key.tier = 5
		}
		keys[i] = key
	}

	sortByKeys(docs, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		if a.nameLen != b.nameLen {
			return a.nameLen < b.nameLen
		}
		return a.popularity > b.popularity
	}, keys)
}

// sortByKeys sorts docs and keys together with a stable order.
func sortByKeys[K any](docs []index.ScoredDoc, less func(i, j int) bool, keys []K) {
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })

	sortedDocs := make([]index.ScoredDoc, len(docs))
	sortedKeys := make([]K, len(keys))
	for pos, i := range idx {
		sortedDocs[pos] = docs[i]
		sortedKeys[pos] = keys[i]
	}
	copy(docs, sortedDocs)
	copy(keys, sortedKeys)
}

func containsExact(values []string, norm string) bool {
	for _, v := range values {
		if norm == v {
			return true
		}
	}
	return false
}

func containsWord(field, norm string) bool {
	for _, tok := range strings.Split(field, "_") {
		if tok == norm {
			return true
		}
	}
	return false
}

func anyContainsWord(values []string, norm string) bool {
	for _, v := range values {
		if containsWord(v, norm) {
			return true
		}
	}
	return false
}

func anyContains(values []string, norm string) bool {
	for _, v := range values {
		if strings.Contains(v, norm) {
			return true
		}
	}
	return false
}

func anyHasPrefix(values []string, norm string) bool {
	for _, v := range values {
		if strings.HasPrefix(v, norm) {
			return true
		}
	}
	return false
}
