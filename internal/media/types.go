// Package media defines the item shapes shared by every search source.
package media

import "encoding/json"

// MCType values identify the kind of entity a document describes.
const (
	TypeMovie       = "movie"
	TypeTV          = "tv"
	TypePerson      = "person"
	TypePodcast     = "podcast"
	TypeBook        = "book"
	TypeNewsArticle = "news_article"
	TypeVideo       = "video"
	TypeMusicAlbum  = "music_album"
)

// Person subtypes refine mc_type=person.
const (
	SubtypeActor       = "actor"
	SubtypeDirector    = "director"
	SubtypeWriter      = "writer"
	SubtypeAuthor      = "author"
	SubtypeMusicArtist = "music_artist"
	SubtypePodcaster   = "podcaster"
)

// Document is an indexed item as stored in the search index. Documents are
// schemaless at the edges: the index owns the field set and the query path
// must not invent fields, so the natural representation is a key/value map
// with typed accessors for the handful of fields the runtime reads.
type Document map[string]any

// ID returns the stable mc_id of the document.
func (d Document) ID() string { return d.str("mc_id") }

// MCType returns the document's mc_type.
func (d Document) MCType() string { return d.str("mc_type") }

// MCSubtype returns the document's mc_subtype.
func (d Document) MCSubtype() string { return d.str("mc_subtype") }

// SearchTitle returns the display name used for ranking and display.
func (d Document) SearchTitle() string { return d.str("search_title") }

// Source returns the provider tag.
func (d Document) Source() string { return d.str("source") }

// Popularity returns the normalized 0-100 popularity.
func (d Document) Popularity() float64 { return d.num("popularity") }

// Year returns the release/publish year, 0 when absent.
func (d Document) Year() int { return int(d.num("year")) }

// Strings returns a string-array field, tolerating []any from JSON decoding.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (d Document) str(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

func (d Document) num(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Link is an external link attached to a brokered item.
type Link struct {
	Rel string `json:"rel,omitempty"`
	URL string `json:"url"`
}

// Image is an image attached to a brokered item.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// BrokeredItem is the common envelope for items served by external
// providers (news, video, ratings, artist, album). Provider-specific
// payload fields are carried in Extra and flattened into the JSON object.
type BrokeredItem struct {
	MCID        string             `json:"mc_id"`
	MCType      string             `json:"mc_type"`
	MCSubtype   string             `json:"mc_subtype,omitempty"`
	Source      string             `json:"source"`
	SourceID    string             `json:"source_id"`
	SearchTitle string             `json:"search_title"`
	Popularity  float64            `json:"popularity"`
	Image       string             `json:"image,omitempty"`
	Overview    string             `json:"overview,omitempty"`
	Links       []Link             `json:"links,omitempty"`
	Images      []Image            `json:"images,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	ExternalIDs map[string]string  `json:"external_ids,omitempty"`
	Error       string             `json:"error,omitempty"`
	StatusCode  int                `json:"status_code,omitempty"`
	SortOrder   int                `json:"sort_order"`

	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object. Envelope fields win
// on key collision.
func (b BrokeredItem) MarshalJSON() ([]byte, error) {
	type alias BrokeredItem
	base, err := json.Marshal(alias(b))
	if err != nil {
		return nil, err
	}
	if len(b.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(b.Extra)+16)
	for k, v := range b.Extra {
		merged[k] = v
	}
	var envelope map[string]any
	if err := json.Unmarshal(base, &envelope); err != nil {
		return nil, err
	}
	for k, v := range envelope {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// CastMember is a {name, id|null} pair in an exact-match payload.
type CastMember struct {
	Name string  `json:"name"`
	ID   *string `json:"id"`
}
