package app_test

import (
	"testing"
	"time"

	"venue_atlas/internal/app"
	"venue_atlas/internal/domain"
)

func TestNormalizeReviews_MappingAndFiltering(t *testing.T) {
	in := []map[string]any{
		{"name": "Ali", "text": "Great food", "stars": 5.0, "publishedAtDate": "2024-03-01T10:00:00Z"},
		{"reviewer": "Vali", "snippet": "Неплохо", "rating": 4.0},
		{"name": "Empty"},                      // no text, no rating: dropped
		{"text": "anonymous but with content"}, // kept, author defaulted
	}
	got := app.NormalizeReviews("google", in)
	if len(got) != 3 {
		t.Fatalf("reviews: %+v", got)
	}
	if got[0].Author != "Ali" || got[0].Text != "Great food" || *got[0].Rating != 5.0 {
		t.Fatalf("first review: %+v", got[0])
	}
	if !got[0].Date.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("date: %v", got[0].Date)
	}
	if got[1].Author != "Vali" || got[1].Text != "Неплохо" {
		t.Fatalf("aliased review: %+v", got[1])
	}
	if got[2].Author != "Аноним" {
		t.Fatalf("default author: %+v", got[2])
	}
}

func TestNormalizeReviews_BadDateFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	got := app.NormalizeReviews("yandex", []map[string]any{
		{"author": "A", "text": "ok", "date": "yesterday-ish"},
	})
	if len(got) != 1 {
		t.Fatalf("reviews: %+v", got)
	}
	if got[0].Date.Before(before.Add(-time.Minute)) || got[0].Date.After(time.Now().UTC().Add(time.Minute)) {
		t.Fatalf("fallback date: %v", got[0].Date)
	}
}

func TestNormalizeReviews_CapsAtTwenty(t *testing.T) {
	in := make([]map[string]any, 30)
	for i := range in {
		in[i] = map[string]any{"author": "A", "text": "review", "stars": 4.0}
	}
	got := app.NormalizeReviews("google", in)
	if len(got) != 20 {
		t.Fatalf("cap: %d", len(got))
	}
}

func TestFilterNewReviews_DedupBySourceIDAndAuthorText(t *testing.T) {
	existing := map[string]struct{}{
		domain.Review{Source: "google", SourceID: ptr("r1")}.Key(): {},
		domain.Review{Author: "Ali", Text: "Great food"}.Key():     {},
	}
	in := []domain.Review{
		{Source: "google", SourceID: ptr("r1"), Author: "Someone", Text: "changed text"}, // known id
		{Source: "google", Author: "Ali", Text: "Great food"},                            // known author/text
		{Source: "google", Author: "Vali", Text: "Новый отзыв"},
		{Source: "google", Author: "Vali", Text: "Новый отзыв"}, // duplicate inside the batch
	}
	got := app.FilterNewReviews(existing, in)
	if len(got) != 1 || got[0].Author != "Vali" {
		t.Fatalf("filtered: %+v", got)
	}
}
