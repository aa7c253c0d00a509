package app

import (
	"context"
	"math"
	"regexp"
	"strings"

	"venue_atlas/internal/domain"
)

// Candidate search box around the incoming point, roughly 100m at this latitude.
const bboxOffset = 0.001

const earthRadiusMeters = 6371000

var (
	quoteRe   = regexp.MustCompile("[«»\"'`]")
	genericRe = regexp.MustCompile(`(?i)\b(ресторан|кафе|бар|паб|столовая|кофейня|restaurant|cafe|bar|pub)\b`)
	spacesRe  = regexp.MustCompile(`\s+`)
)

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// normalizeName lowercases a venue name, strips quotes and generic venue-type
// words so "Ресторан «Плов»" and "Плов" compare as the same establishment.
func normalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = quoteRe.ReplaceAllString(s, "")
	s = genericRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NameSimilarity scores two venue names in [0,1]: 1.0 for an exact match
// after normalization, 0.9 when one contains the other, otherwise the Jaccard
// index over words longer than two characters.
func NameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	tokens := func(s string) map[string]struct{} {
		set := make(map[string]struct{})
		for _, w := range strings.Fields(s) {
			if len([]rune(w)) > 2 {
				set[w] = struct{}{}
			}
		}
		return set
	}
	sa, sb := tokens(na), tokens(nb)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// FindDuplicate looks for an already-stored venue that is the same physical
// establishment: within 50m with a name similarity above 0.5, or within 20m
// regardless of name. The first candidate that qualifies wins; exclude keeps
// a venue from matching its own source record.
func FindDuplicate(ctx context.Context, repo domain.VenueRepository, name string, lat, lng float64, exclude *domain.SourceRef) (*domain.Venue, error) {
	box := domain.BBox{
		MinLat: lat - bboxOffset, MaxLat: lat + bboxOffset,
		MinLng: lng - bboxOffset, MaxLng: lng + bboxOffset,
	}
	candidates, err := repo.FindInBBox(ctx, box, exclude)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		c := &candidates[i]
		dist := HaversineMeters(lat, lng, c.Latitude, c.Longitude)
		sim := NameSimilarity(name, c.Name)
		if (dist < 50 && sim > 0.5) || dist < 20 {
			return c, nil
		}
	}
	return nil, nil
}
