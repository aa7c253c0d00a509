package app

import (
	"math"
	"strings"

	"venue_atlas/internal/domain"
)

// MergeVenueData folds an incoming record into an existing venue. Identity
// fields of the existing record (id, slug, source, source id) never change;
// per-field winners are chosen by source priority, with empty slots filled
// from the lower-priority side. Ratings average, counts take the max, and
// list fields union up to the storage cap.
func MergeVenueData(existing, incoming domain.Venue) domain.Venue {
	merged := existing
	incomingWins := SourcePriority[incoming.Source] > SourcePriority[existing.Source]

	merged.Name = pickBestStr(existing.Name, incoming.Name, incomingWins)
	merged.Address = pickBestPtr(existing.Address, incoming.Address, incomingWins)
	merged.City = pickBestPtr(existing.City, incoming.City, incomingWins)
	merged.Country = pickBestPtr(existing.Country, incoming.Country, incomingWins)
	merged.Phone = pickBestPtr(existing.Phone, incoming.Phone, incomingWins)
	merged.Website = pickBestPtr(existing.Website, incoming.Website, incomingWins)
	merged.Email = pickBestPtr(existing.Email, incoming.Email, incomingWins)
	merged.PriceRange = pickBestPtr(existing.PriceRange, incoming.PriceRange, incomingWins)
	merged.Brand = pickBestPtr(existing.Brand, incoming.Brand, incomingWins)
	if incomingWins {
		merged.Latitude = incoming.Latitude
		merged.Longitude = incoming.Longitude
	}

	switch {
	case existing.Rating != nil && incoming.Rating != nil:
		avg := math.Round((*existing.Rating+*incoming.Rating)/2*10) / 10
		merged.Rating = &avg
	case incoming.Rating != nil:
		merged.Rating = incoming.Rating
	}
	if incoming.RatingCount > merged.RatingCount {
		merged.RatingCount = incoming.RatingCount
	}

	merged.Images = unionCapped(existing.Images, incoming.Images, 10)
	merged.Cuisine = unionCapped(existing.Cuisine, incoming.Cuisine, 10)

	merged.Description = mergeDescription(existing, incoming)
	return merged
}

func pickBestStr(existing, incoming string, incomingWins bool) string {
	if incomingWins && incoming != "" {
		return incoming
	}
	if existing == "" {
		return incoming
	}
	return existing
}

func pickBestPtr(existing, incoming *string, incomingWins bool) *string {
	if incomingWins && incoming != nil && *incoming != "" {
		return incoming
	}
	if existing == nil || *existing == "" {
		return incoming
	}
	return existing
}

func unionCapped(a, b []string, limit int) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func mergeDescription(existing, incoming domain.Venue) *string {
	if existing.Description != nil && *existing.Description != "" {
		return existing.Description
	}
	if incoming.Description != nil && *incoming.Description != "" {
		return incoming.Description
	}
	sources := []string{existing.Source}
	if incoming.Source != existing.Source {
		sources = append(sources, incoming.Source)
	}
	note := "Данные из источников: " + strings.Join(sources, ", ")
	return &note
}
