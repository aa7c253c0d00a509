package httpserver_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	httpserver "venue_atlas/internal/adapters/http_server"
	"venue_atlas/internal/adapters/observability"
)

func TestMetricsMiddleware_RouteLabels(t *testing.T) {
	reg := observability.InitRegistry()

	m := chi.NewRouter()
	m.Use(httpserver.Metrics)
	m.Get("/v1/venues/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	ts := httptest.NewServer(m)
	defer ts.Close()

	for _, path := range []string{"/v1/venues/7", "/v1/venues/8", "/no/such/path"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		res.Body.Close()
	}

	rr := httptest.NewRecorder()
	observability.MetricsHandler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	out := string(body)

	// both matched requests land on the pattern label, never the raw path
	if !strings.Contains(out, `route="/v1/venues/{id}",status="200"} 2`) {
		t.Fatalf("expected pattern-labeled series, got:\n%s", out)
	}
	if strings.Contains(out, "/v1/venues/7") {
		t.Fatalf("venue ID leaked into metric labels")
	}
	if !strings.Contains(out, `route="unrouted"`) {
		t.Fatalf("unmatched request not collapsed to unrouted label")
	}
}
