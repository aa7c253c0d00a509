package places_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"venue_atlas/internal/adapters/places"
)

func TestClient_GetDetails_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			if got := r.Header.Get("X-Goog-FieldMask"); got != "rating" {
				t.Errorf("field mask header: %q", got)
			}
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{"rating": 4.5})
		}
	}))
	defer ts.Close()

	cl, err := places.New(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := cl.GetDetails(ctx, "ChIJabc", "rating")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r, ok := got["rating"].(float64); !ok || r != 4.5 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_GetDetails_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl, err := places.New(ts.URL, "test-key", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := cl.GetDetails(ctx, "ChIJmissing", "rating"); !errors.Is(err, places.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_FindPlaceID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/places:searchText" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["textQuery"] != "Плов Центр" {
			t.Errorf("text query: %v", body["textQuery"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"places": []map[string]any{{"id": "ChIJfound"}},
		})
	}))
	defer ts.Close()

	cl, _ := places.New(ts.URL, "test-key", 100)
	id, err := cl.FindPlaceID(context.Background(), "Плов Центр", 41.31, 69.24)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if id != "ChIJfound" {
		t.Fatalf("place id: %q", id)
	}
}

func TestClient_FindPlaceID_EmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer ts.Close()

	cl, _ := places.New(ts.URL, "test-key", 100)
	if _, err := cl.FindPlaceID(context.Background(), "nowhere", 0, 0); !errors.Is(err, places.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_RequiresKey(t *testing.T) {
	if _, err := places.New("http://example.com", "", 5); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestClient_RetryAfterHonored(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"rating": 4.0})
	}))
	defer ts.Close()

	cl, _ := places.New(ts.URL, "test-key", 100)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := cl.GetDetails(ctx, "ChIJx", "rating"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("hits: %d", hits)
	}
}
