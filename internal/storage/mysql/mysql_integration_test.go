//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"venue_atlas/internal/domain"
	mysqlrepo "venue_atlas/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=venues",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "venues")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func sampleVenue(source, sourceID string) domain.Venue {
	return domain.Venue{
		Name: "Плов Центр", Slug: "плов-центр-" + sourceID,
		Address: pstr("Чорсу, 5"), City: pstr("Ташкент"), Country: pstr("Узбекистан"),
		Latitude: 41.3110, Longitude: 69.2400,
		Phone: pstr("+998901234567"), Rating: pfloat(4.5), RatingCount: 120,
		Images: []string{"a.jpg"}, Cuisine: []string{"Узбекская кухня"},
		Source: source, SourceID: sourceID,
		DataHash: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", LastSynced: time.Now().UTC(),
	}
}

func TestRepo_MySQL_VenueLifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	hours := []domain.WorkingHours{
		{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "22:00"},
		{DayOfWeek: 2, OpenTime: "00:00", CloseTime: "00:00", IsClosed: true},
	}
	reviews := []domain.Review{
		{Source: "google", SourceID: pstr("r1"), Author: "Ali", Text: "Great food", Rating: pfloat(5), Date: time.Now().UTC()},
		{Source: "google", Author: "Vali", Text: "Неплохо", Rating: pfloat(4), Date: time.Now().UTC()},
	}

	id, err := repo.CreateVenue(ctx, sampleVenue("google", "g1"), hours, reviews)
	if err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}

	got, err := repo.GetVenue(ctx, id)
	if err != nil {
		t.Fatalf("GetVenue: %v", err)
	}
	if got.Name != "Плов Центр" || got.Source != "google" || got.SourceID != "g1" {
		t.Fatalf("venue: %+v", got)
	}
	if got.Rating == nil || *got.Rating != 4.5 || got.RatingCount != 120 {
		t.Fatalf("rating: %+v", got)
	}
	if len(got.Images) != 1 || len(got.Cuisine) != 1 {
		t.Fatalf("json lists: %+v", got)
	}

	hrs, err := repo.ListHours(ctx, id)
	if err != nil || len(hrs) != 2 {
		t.Fatalf("ListHours: %v %+v", err, hrs)
	}
	if !hrs[1].IsClosed {
		t.Fatalf("closed flag lost: %+v", hrs[1])
	}

	page, err := repo.ListReviews(ctx, id, domain.PageQuery{Limit: 10})
	if err != nil || len(page.Items) != 2 {
		t.Fatalf("ListReviews: %v %+v", err, page)
	}

	keys, err := repo.ReviewKeys(ctx, id)
	if err != nil {
		t.Fatalf("ReviewKeys: %v", err)
	}
	if _, ok := keys["google\x00r1"]; !ok {
		t.Fatalf("id-based key missing: %v", keys)
	}
	if _, ok := keys["Vali\x00Неплохо"]; !ok {
		t.Fatalf("author/text key missing: %v", keys)
	}

	// duplicate id-carrying review is ignored, not an error
	if err := repo.UpdateVenue(ctx, id, got, nil, domain.HoursKeepExisting, reviews[:1]); err != nil {
		t.Fatalf("UpdateVenue with dup review: %v", err)
	}
	page, _ = repo.ListReviews(ctx, id, domain.PageQuery{Limit: 10})
	if len(page.Items) != 2 {
		t.Fatalf("dup review inserted: %d", len(page.Items))
	}
}

func TestRepo_MySQL_HoursModes(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	initial := []domain.WorkingHours{{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "18:00"}}
	id, err := repo.CreateVenue(ctx, sampleVenue("google", "g1"), initial, nil)
	if err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	v, _ := repo.GetVenue(ctx, id)

	// keep-existing must not touch a populated schedule
	other := []domain.WorkingHours{{DayOfWeek: 1, OpenTime: "10:00", CloseTime: "20:00"}}
	if err := repo.UpdateVenue(ctx, id, v, other, domain.HoursKeepExisting, nil); err != nil {
		t.Fatalf("UpdateVenue: %v", err)
	}
	hrs, _ := repo.ListHours(ctx, id)
	if len(hrs) != 1 || hrs[0].OpenTime != "09:00" {
		t.Fatalf("keep-existing overwrote: %+v", hrs)
	}

	// replace swaps the schedule wholesale
	replacement := []domain.WorkingHours{
		{DayOfWeek: 5, OpenTime: "12:00", CloseTime: "23:00"},
	}
	if err := repo.UpdateVenue(ctx, id, v, replacement, domain.HoursReplace, nil); err != nil {
		t.Fatalf("UpdateVenue: %v", err)
	}
	hrs, _ = repo.ListHours(ctx, id)
	if len(hrs) != 1 || hrs[0].DayOfWeek != 5 || hrs[0].OpenTime != "12:00" {
		t.Fatalf("replace failed: %+v", hrs)
	}
}

func TestRepo_MySQL_FindAndOrdering(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	gID, err := repo.CreateVenue(ctx, sampleVenue("google", "g1"), nil, nil)
	if err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	d := sampleVenue("2gis", "d1")
	d.Latitude, d.Longitude = 41.3111, 69.2401
	if _, err := repo.CreateVenue(ctx, d, nil, nil); err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}
	far := sampleVenue("yandex", "y1")
	far.Latitude, far.Longitude = 41.40, 69.30
	if _, err := repo.CreateVenue(ctx, far, nil, nil); err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}

	found, err := repo.FindBySource(ctx, "google", "g1")
	if err != nil || found == nil || found.ID != gID {
		t.Fatalf("FindBySource: %v %+v", err, found)
	}
	if miss, _ := repo.FindBySource(ctx, "google", "nope"); miss != nil {
		t.Fatalf("FindBySource miss: %+v", miss)
	}

	box := domain.BBox{MinLat: 41.3100, MaxLat: 41.3120, MinLng: 69.2390, MaxLng: 69.2410}
	inBox, err := repo.FindInBBox(ctx, box, &domain.SourceRef{Source: "google", SourceID: "g1"})
	if err != nil {
		t.Fatalf("FindInBBox: %v", err)
	}
	if len(inBox) != 1 || inBox[0].Source != "2gis" {
		t.Fatalf("bbox with exclude: %+v", inBox)
	}

	all, err := repo.ListAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListAll: %v %+v", err, all)
	}
	if all[0].Source != "google" || all[1].Source != "yandex" || all[2].Source != "2gis" {
		t.Fatalf("priority order: %s %s %s", all[0].Source, all[1].Source, all[2].Source)
	}

	stats, err := repo.SourceStats(ctx)
	if err != nil || len(stats) != 3 {
		t.Fatalf("SourceStats: %v %+v", err, stats)
	}
}

func TestRepo_MySQL_DeleteCascadesAndSyncMeta(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	id, err := repo.CreateVenue(ctx, sampleVenue("google", "g1"),
		[]domain.WorkingHours{{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "18:00"}},
		[]domain.Review{{Source: "google", Author: "Ali", Text: "ok", Date: time.Now().UTC()}})
	if err != nil {
		t.Fatalf("CreateVenue: %v", err)
	}

	if _, err := repo.GetSyncMeta(ctx, id); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound before touch, got %v", err)
	}
	if err := repo.TouchSyncMeta(ctx, id, domain.SyncReviewsOnly); err != nil {
		t.Fatalf("TouchSyncMeta: %v", err)
	}
	meta, err := repo.GetSyncMeta(ctx, id)
	if err != nil {
		t.Fatalf("GetSyncMeta: %v", err)
	}
	if meta.LastReviewsSync == nil || meta.LastBasicInfoSync != nil {
		t.Fatalf("meta: %+v", meta)
	}

	if err := repo.DeleteVenues(ctx, []int64{id}); err != nil {
		t.Fatalf("DeleteVenues: %v", err)
	}
	if _, err := repo.GetVenue(ctx, id); err != domain.ErrNotFound {
		t.Fatalf("venue survived delete: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM reviews WHERE venue_id = ?`, id).Scan(&n); err != nil || n != 0 {
		t.Fatalf("reviews not cascaded: %v %d", err, n)
	}
}
