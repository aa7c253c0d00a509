package app_test

import (
	"testing"

	"venue_atlas/internal/app"
	"venue_atlas/internal/domain"
)

func TestFingerprint_StableAndSensitive(t *testing.T) {
	v := domain.Venue{
		Name: "Плов Центр", Address: ptr("Чорсу, 5"), Phone: ptr("+998901234567"),
		Rating: pfloat(4.5), RatingCount: 120,
		Images: []string{"a.jpg", "b.jpg"},
	}
	h1 := app.Fingerprint(v)
	h2 := app.Fingerprint(v)
	if h1 != h2 || len(h1) != 40 {
		t.Fatalf("fingerprint not stable: %q vs %q", h1, h2)
	}

	changed := v
	changed.Rating = pfloat(4.6)
	if app.Fingerprint(changed) == h1 {
		t.Fatal("rating change not reflected")
	}
}

func TestFingerprint_IgnoresTrailingImages(t *testing.T) {
	v := domain.Venue{Name: "X", Images: []string{"1", "2", "3", "4"}}
	w := domain.Venue{Name: "X", Images: []string{"1", "2", "3", "different"}}
	if app.Fingerprint(v) != app.Fingerprint(w) {
		t.Fatal("fourth image should not matter")
	}
	u := domain.Venue{Name: "X", Images: []string{"1", "2", "changed", "4"}}
	if app.Fingerprint(v) == app.Fingerprint(u) {
		t.Fatal("third image should matter")
	}
}

func TestHasChanged(t *testing.T) {
	incoming := domain.Venue{Name: "X", RatingCount: 10}
	if !app.HasChanged(nil, incoming) {
		t.Fatal("nil stored must count as changed")
	}

	stored := incoming
	stored.DataHash = app.Fingerprint(stored)
	if app.HasChanged(&stored, incoming) {
		t.Fatal("identical records flagged as changed")
	}

	// stored row from before fingerprints were recorded
	legacy := incoming
	legacy.DataHash = ""
	if app.HasChanged(&legacy, incoming) {
		t.Fatal("empty stored hash should fall back to recomputing")
	}

	incoming.RatingCount = 11
	if !app.HasChanged(&stored, incoming) {
		t.Fatal("rating count change missed")
	}
}
