package app_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"venue_atlas/internal/app"
	"venue_atlas/internal/domain"
)

func TestNormalize_GoogleRecord(t *testing.T) {
	raw := map[string]any{
		"title":   "Плов Центр",
		"placeId": "ChIJabc123",
		"address": "Чорсу, 5, Tashkent",
		"location": map[string]any{
			"lat": 41.3110, "lng": 69.2400,
		},
		"totalScore":   4.5,
		"reviewsCount": float64(230),
		"phone":        "+998 90 123 45 67",
		"website":      "https://plov.uz",
		"imageUrls":    []any{"a.jpg", "b.jpg"},
		"categories":   []any{"Uzbek restaurant"},
		"countryCode":  "UZ",
	}

	rec, err := app.Normalize("google", raw)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	v := rec.Venue
	if v.Name != "Плов Центр" || v.Source != "google" || v.SourceID != "ChIJabc123" {
		t.Fatalf("identity: %+v", v)
	}
	if v.Latitude != 41.3110 || v.Longitude != 69.2400 {
		t.Fatalf("coords: %+v", v)
	}
	if v.Rating == nil || *v.Rating != 4.5 || v.RatingCount != 230 {
		t.Fatalf("rating: %+v", v)
	}
	if v.City == nil || *v.City != "Ташкент" {
		t.Fatalf("city: %+v", v.City)
	}
	if v.Country == nil || *v.Country != "Узбекистан" {
		t.Fatalf("country: %+v", v.Country)
	}
	if !strings.HasPrefix(v.Slug, "плов-центр-") {
		t.Fatalf("slug: %q", v.Slug)
	}
	if len(v.Images) != 2 {
		t.Fatalf("images: %v", v.Images)
	}
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	_, err := app.Normalize("google", map[string]any{"location": map[string]any{"lat": 41.3, "lng": 69.2}})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}

	_, err = app.Normalize("yandex", map[string]any{"name": "X"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNormalize_SyntheticSourceID(t *testing.T) {
	raw := map[string]any{
		"name": "Безымянное кафе",
		"lat":  41.31, "lon": 69.24,
	}
	r1, err := app.Normalize("2gis", raw)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	r2, _ := app.Normalize("2gis", raw)
	if !strings.HasPrefix(r1.Venue.SourceID, "syn-") {
		t.Fatalf("source id: %q", r1.Venue.SourceID)
	}
	if r1.Venue.SourceID != r2.Venue.SourceID {
		t.Fatal("synthetic id must be stable")
	}
}

func TestNormalize_UnknownSource(t *testing.T) {
	if _, err := app.Normalize("tripadvisor", map[string]any{"name": "X"}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestNormalize_CityFallsBackToUnknown(t *testing.T) {
	rec, err := app.Normalize("yandex", map[string]any{
		"name": "Чайхана",
		"coordinates": map[string]any{
			"lat": 41.0, "lon": 69.0,
		},
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rec.Venue.City == nil || *rec.Venue.City != "Неизвестно" {
		t.Fatalf("city: %+v", rec.Venue.City)
	}
}

func TestNormalizeCuisine(t *testing.T) {
	got := app.NormalizeCuisine([]string{"Uzbek restaurant"}, "Плов Центр")
	joined := strings.Join(got, "|")
	if !strings.Contains(joined, "Uzbek restaurant") {
		t.Fatalf("original label dropped: %v", got)
	}
	if !strings.Contains(joined, "Узбекская кухня") || !strings.Contains(joined, "Ресторан") {
		t.Fatalf("canonical labels missing: %v", got)
	}

	long := strings.Repeat("x", 60)
	many := app.NormalizeCuisine([]string{long, "cafe", "bar", "pizza", "sushi", "плов", "хинкали", "french", "wok", "pub", "кофе"}, "")
	if len(many) > 10 {
		t.Fatalf("cap exceeded: %v", many)
	}
	for _, c := range many {
		if c == long {
			t.Fatalf("over-long category kept: %v", many)
		}
	}
}

func TestGenerateSlug(t *testing.T) {
	s := app.GenerateSlug("Ресторан «Плов Центр»!", "ChIJabcdef123456")
	if s != "ресторан-плов-центр-ChIJabcd" {
		t.Fatalf("slug: %q", s)
	}
}

func TestGenerateSlug_TruncatesLongCyrillicNameOnRunes(t *testing.T) {
	s := app.GenerateSlug(strings.Repeat("щ", 60), "id123")
	want := strings.Repeat("щ", 50) + "-id123"
	if s != want {
		t.Fatalf("slug: %q", s)
	}
	if !utf8.ValidString(s) {
		t.Fatalf("slug is not valid UTF-8: %q", s)
	}
}
