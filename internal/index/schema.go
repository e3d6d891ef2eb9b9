// Package index builds and executes queries against the RediSearch-backed
// inverted index of media documents.
package index

import "github.com/mediacircle/mediacircle/internal/media"

// Index names per indexed source. The index definitions themselves are
// created by the ingestion pipeline; the query path treats the schema as a
// contract.
var IndexNames = map[string]string{
	media.SourceTV:      "idx:tv",
	media.SourceMovie:   "idx:movie",
	media.SourcePerson:  "idx:person",
	media.SourcePodcast: "idx:podcast",
	media.SourceBook:    "idx:book",
	media.SourceAuthor:  "idx:author",
}

// KeyPrefixes maps an indexed source to its document key prefix. tv and
// movie documents share the media: keyspace.
var KeyPrefixes = map[string]string{
	media.SourceTV:      "media:",
	media.SourceMovie:   "media:",
	media.SourcePerson:  "person:",
	media.SourcePodcast: "podcast:",
	media.SourceBook:    "book:",
	media.SourceAuthor:  "author:",
}

// textFields lists the weighted full-text clause per source: primary field
// first, which is also the field autocomplete prefixing applies to.
type weightedField struct {
	Name   string
	Weight float64
}

var textFields = map[string][]weightedField{
	media.SourceTV: {
		{"search_title", 5}, {"cast", 2}, {"director", 2}, {"keywords", 1},
	},
	media.SourceMovie: {
		{"search_title", 5}, {"cast", 2}, {"director", 2}, {"keywords", 1},
	},
	media.SourcePerson: {
		{"search_title", 5}, {"also_known_as", 3}, {"known_for_titles", 1},
	},
	media.SourcePodcast: {
		{"search_title", 5}, {"author", 3}, {"categories", 1},
	},
	media.SourceBook: {
		{"search_title", 5}, {"author_search", 3}, {"subjects_search", 1},
	},
	media.SourceAuthor: {
		{"search_title", 5}, {"name", 4},
	},
}

// tagFields maps request filter fields to index TAG fields, per source.
// Filters on unmapped fields are ignored for that source.
var tagFields = map[string]map[string]string{
	media.SourceTV: {
		"genre":    "genres",
		"genres":   "genres",
		"country":  "origin_country",
		"rating":   "us_rating",
		"cast":     "cast_names",
		"keyword":  "keywords",
		"keywords": "keywords",
		"type":     "mc_type",
	},
	media.SourceMovie: {
		"genre":    "genres",
		"genres":   "genres",
		"country":  "origin_country",
		"rating":   "us_rating",
		"cast":     "cast_names",
		"keyword":  "keywords",
		"keywords": "keywords",
		"type":     "mc_type",
	},
	media.SourcePerson: {
		"subtype":    "mc_subtype",
		"department": "known_for_department",
	},
	media.SourcePodcast: {
		"language":   "language",
		"category":   "categories",
		"categories": "categories",
	},
	media.SourceBook: {
		"language": "language",
		"subject":  "subjects_normalized",
		"subjects": "subjects_normalized",
	},
	media.SourceAuthor: {},
}

// rangeFields maps the year filter to the source's NUMERIC field.
var rangeFields = map[string]string{
	media.SourceTV:     "year",
	media.SourceMovie:  "year",
	media.SourceBook:   "first_publish_year",
}

// tieBreakers lists the SORTABLE fields used to break relevance ties,
// applied in order, all descending.
var tieBreakers = map[string][]string{
	media.SourceTV:      {"popularity", "year"},
	media.SourceMovie:   {"popularity", "year"},
	media.SourcePerson:  {"popularity"},
	media.SourcePodcast: {"popularity"},
	media.SourceBook:    {"popularity_score"},
	media.SourceAuthor:  {"quality_score"},
}
