package search

import "github.com/mediacircle/mediacircle/internal/media"

// Raw score ranges per source. A raw score r maps to
// 100 * clamp01((r-min)/(max-min)); the mapping is deterministic and
// monotonic. Sources whose ingestion already emits a composite 0-100
// score get the identity range.
type scoreRange struct {
	min, max float64
}

var popularityRanges = map[string]scoreRange{
	media.SourceMovie:   {0, 1000}, // TMDB popularity, capped at 1000
	media.SourceTV:      {0, 1000},
	media.SourcePerson:  {0, 100},
	media.SourcePodcast: {0, 29}, // PodcastIndex popularity scale
	media.SourceBook:    {0, 100},
	media.SourceAuthor:  {0, 100},
	media.SourceRatings: {0, 100},
	media.SourceArtist:  {0, 10_000_000}, // Last.fm listener counts
	media.SourceAlbum:   {0, 10_000_000},
	media.SourceNews:    {0, 100},
	media.SourceVideo:   {0, 100},
}

// NormalizePopularity maps a source-native raw score onto the common
// 0-100 popularity scale.
func NormalizePopularity(source string, raw float64) float64 {
	r, ok := popularityRanges[source]
	if !ok || r.max <= r.min {
		return clamp01(raw/100) * 100
	}
	return clamp01((raw-r.min)/(r.max-r.min)) * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
