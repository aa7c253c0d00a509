package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"venue_atlas/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
func jsonList(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// CreateVenue inserts the venue with its schedule and reviews in one
// transaction so a half-written venue never becomes visible.
func (r *Repo) CreateVenue(ctx context.Context, v domain.Venue, hours []domain.WorkingHours, reviews []domain.Review) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertVenueSQL, venueArgs(v)...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := writeHours(ctx, tx, id, hours); err != nil {
		return 0, err
	}
	if err := writeReviews(ctx, tx, id, reviews); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) UpdateVenue(ctx context.Context, id int64, v domain.Venue, hours []domain.WorkingHours, mode domain.HoursMode, reviews []domain.Review) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, updateVenueSQL, append(updateArgs(v), id)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and an identical update;
		// only the missing row is an error.
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM venues WHERE id = ?`, id).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return domain.ErrNotFound
			}
			return err
		}
	}

	if len(hours) > 0 {
		write := true
		if mode == domain.HoursKeepExisting {
			var n int
			if err := tx.QueryRowContext(ctx, countHoursSQL, id).Scan(&n); err != nil {
				return err
			}
			write = n == 0
		} else {
			if _, err := tx.ExecContext(ctx, `DELETE FROM working_hours WHERE venue_id = ?`, id); err != nil {
				return err
			}
		}
		if write {
			if err := writeHours(ctx, tx, id, hours); err != nil {
				return err
			}
		}
	}
	if err := writeReviews(ctx, tx, id, reviews); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) DeleteVenues(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// hours, reviews and sync_meta go with the venue via ON DELETE CASCADE
	_, err := r.db.ExecContext(ctx, "DELETE FROM venues WHERE id IN ("+ph+")", args...)
	return err
}

func (r *Repo) TouchSyncMeta(ctx context.Context, venueID int64, mode domain.SyncMode) error {
	var cols []string
	switch mode {
	case domain.SyncFull:
		cols = []string{"last_basic_info_sync", "last_reviews_sync", "last_photos_sync", "last_hours_sync"}
	case domain.SyncReviewsOnly:
		cols = []string{"last_reviews_sync"}
	case domain.SyncBasicInfo:
		cols = []string{"last_basic_info_sync"}
	default:
		return fmt.Errorf("unknown sync mode %q", mode)
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = CURRENT_TIMESTAMP"
	}
	q := "INSERT INTO sync_meta (venue_id, " + strings.Join(cols, ", ") + ")\n" +
		"VALUES (?" + strings.Repeat(", CURRENT_TIMESTAMP", len(cols)) + ")\n" +
		"ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	_, err := r.db.ExecContext(ctx, q, venueID)
	return err
}

func (r *Repo) GetVenue(ctx context.Context, id int64) (domain.Venue, error) {
	row := r.db.QueryRowContext(ctx, getVenueSQL, id)
	v, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return domain.Venue{}, domain.ErrNotFound
	}
	return v, err
}

func (r *Repo) FindBySource(ctx context.Context, source, sourceID string) (*domain.Venue, error) {
	row := r.db.QueryRowContext(ctx, findBySourceSQL, source, sourceID)
	v, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) FindInBBox(ctx context.Context, b domain.BBox, exclude *domain.SourceRef) ([]domain.Venue, error) {
	exSource, exID := "", ""
	if exclude != nil {
		exSource, exID = exclude.Source, exclude.SourceID
	}
	rows, err := r.db.QueryContext(ctx, findInBBoxSQL, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng, exSource, exID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVenues(rows)
}

func (r *Repo) ListAll(ctx context.Context) ([]domain.Venue, error) {
	rows, err := r.db.QueryContext(ctx, listAllSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVenues(rows)
}

func (r *Repo) SourceStats(ctx context.Context) ([]domain.SourceStat, error) {
	rows, err := r.db.QueryContext(ctx, sourceStatsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SourceStat
	for rows.Next() {
		var st domain.SourceStat
		var avg sql.NullFloat64
		if err := rows.Scan(&st.Source, &st.Count, &avg); err != nil {
			return nil, err
		}
		if avg.Valid {
			a := avg.Float64
			st.AvgRating = &a
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *Repo) ListHours(ctx context.Context, venueID int64) ([]domain.WorkingHours, error) {
	rows, err := r.db.QueryContext(ctx, listHoursSQL, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WorkingHours
	for rows.Next() {
		var wh domain.WorkingHours
		if err := rows.Scan(&wh.VenueID, &wh.DayOfWeek, &wh.OpenTime, &wh.CloseTime, &wh.IsClosed); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

func (r *Repo) ListReviews(ctx context.Context, venueID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, venueID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var sourceID, sourceURL, avatar, ownerResp, lang, translated sql.NullString
		var authorReviews, authorPhotos sql.NullInt64
		var rating sql.NullFloat64
		var ownerDate sql.NullTime
		var photosJSON []byte
		if err := rows.Scan(
			&rv.ID, &rv.VenueID, &rv.Source, &sourceID, &sourceURL, &rv.Author, &avatar,
			&authorReviews, &authorPhotos, &rv.IsLocalGuide, &rating, &rv.Text, &rv.Date,
			&photosJSON, &ownerResp, &ownerDate, &rv.LikesCount, &lang, &translated,
		); err != nil {
			return domain.ReviewsPage{}, err
		}
		rv.SourceID = nullStr(sourceID)
		rv.SourceURL = nullStr(sourceURL)
		rv.AuthorAvatar = nullStr(avatar)
		rv.OwnerResponse = nullStr(ownerResp)
		rv.Language = nullStr(lang)
		rv.TranslatedText = nullStr(translated)
		if authorReviews.Valid {
			n := int(authorReviews.Int64)
			rv.AuthorReviews = &n
		}
		if authorPhotos.Valid {
			n := int(authorPhotos.Int64)
			rv.AuthorPhotos = &n
		}
		if rating.Valid {
			f := rating.Float64
			rv.Rating = &f
		}
		if ownerDate.Valid {
			t := ownerDate.Time
			rv.OwnerReplyDate = &t
		}
		_ = json.Unmarshal(photosJSON, &rv.Photos)
		out = append(out, rv)
	}
	return domain.ReviewsPage{Items: out}, rows.Err()
}

func (r *Repo) ReviewKeys(ctx context.Context, venueID int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, reviewKeysSQL, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var rv domain.Review
		var sourceID sql.NullString
		if err := rows.Scan(&rv.Source, &sourceID, &rv.Author, &rv.Text); err != nil {
			return nil, err
		}
		rv.SourceID = nullStr(sourceID)
		keys[rv.Key()] = struct{}{}
	}
	return keys, rows.Err()
}

func (r *Repo) GetSyncMeta(ctx context.Context, venueID int64) (domain.SyncMeta, error) {
	row := r.db.QueryRowContext(ctx, getSyncMetaSQL, venueID)
	var m domain.SyncMeta
	var basic, revs, photos, hrs sql.NullTime
	if err := row.Scan(&m.VenueID, &basic, &revs, &photos, &hrs); err != nil {
		if err == sql.ErrNoRows {
			return domain.SyncMeta{}, domain.ErrNotFound
		}
		return domain.SyncMeta{}, err
	}
	m.LastBasicInfoSync = nullTime(basic)
	m.LastReviewsSync = nullTime(revs)
	m.LastPhotosSync = nullTime(photos)
	m.LastHoursSync = nullTime(hrs)
	return m, nil
}

// ---------- helpers ----------

func venueArgs(v domain.Venue) []any {
	return []any{
		v.Name, v.Slug, valStr(v.Address), valStr(v.City), valStr(v.Country),
		v.Latitude, v.Longitude, valStr(v.Phone), valStr(v.Website), valStr(v.Email),
		valF64(v.Rating), v.RatingCount, valStr(v.PriceRange), valStr(v.Description), valStr(v.Brand),
		jsonList(v.Images), jsonList(v.Cuisine),
		v.Source, v.SourceID, valStr(v.SourceURL), v.DataHash, timeOrNil(v.LastSynced),
	}
}

func updateArgs(v domain.Venue) []any {
	return []any{
		v.Name, valStr(v.Address), valStr(v.City), valStr(v.Country),
		v.Latitude, v.Longitude, valStr(v.Phone), valStr(v.Website), valStr(v.Email),
		valF64(v.Rating), v.RatingCount, valStr(v.PriceRange), valStr(v.Description), valStr(v.Brand),
		jsonList(v.Images), jsonList(v.Cuisine),
		valStr(v.SourceURL), v.DataHash, timeOrNil(v.LastSynced),
	}
}

type rowScanner interface{ Scan(dest ...any) error }

func scanVenue(row rowScanner) (domain.Venue, error) {
	var v domain.Venue
	var address, city, country, phone, website, email sql.NullString
	var priceRange, description, brand, sourceURL sql.NullString
	var rating sql.NullFloat64
	var lastSynced sql.NullTime
	var imagesJSON, cuisineJSON []byte

	if err := row.Scan(
		&v.ID, &v.Name, &v.Slug, &address, &city, &country, &v.Latitude, &v.Longitude,
		&phone, &website, &email, &rating, &v.RatingCount, &priceRange, &description, &brand,
		&imagesJSON, &cuisineJSON, &v.Source, &v.SourceID, &sourceURL, &v.DataHash,
		&lastSynced, &v.CreatedAt,
	); err != nil {
		return domain.Venue{}, err
	}

	v.Address = nullStr(address)
	v.City = nullStr(city)
	v.Country = nullStr(country)
	v.Phone = nullStr(phone)
	v.Website = nullStr(website)
	v.Email = nullStr(email)
	v.PriceRange = nullStr(priceRange)
	v.Description = nullStr(description)
	v.Brand = nullStr(brand)
	v.SourceURL = nullStr(sourceURL)
	if rating.Valid {
		f := rating.Float64
		v.Rating = &f
	}
	if lastSynced.Valid {
		v.LastSynced = lastSynced.Time
	}
	_ = json.Unmarshal(imagesJSON, &v.Images)
	_ = json.Unmarshal(cuisineJSON, &v.Cuisine)
	return v, nil
}

func collectVenues(rows *sql.Rows) ([]domain.Venue, error) {
	var out []domain.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func writeHours(ctx context.Context, tx *sql.Tx, venueID int64, hours []domain.WorkingHours) error {
	for _, wh := range hours {
		if _, err := tx.ExecContext(ctx, upsertHoursSQL,
			venueID, wh.DayOfWeek, wh.OpenTime, wh.CloseTime, wh.IsClosed); err != nil {
			return err
		}
	}
	return nil
}

func writeReviews(ctx context.Context, tx *sql.Tx, venueID int64, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	values := make([]string, 0, len(reviews))
	args := make([]any, 0, len(reviews)*18)
	for _, rv := range reviews {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			venueID,
			rv.Source,
			valStr(rv.SourceID),
			valStr(rv.SourceURL),
			rv.Author,
			valStr(rv.AuthorAvatar),
			valInt(rv.AuthorReviews),
			valInt(rv.AuthorPhotos),
			rv.IsLocalGuide,
			valF64(rv.Rating),
			rv.Text,
			rv.Date,
			jsonList(rv.Photos),
			valStr(rv.OwnerResponse),
			valTime(rv.OwnerReplyDate),
			rv.LikesCount,
			valStr(rv.Language),
			valStr(rv.TranslatedText),
		)
	}
	_, err := tx.ExecContext(ctx, insertReviewsPrefix+strings.Join(values, ","), args...)
	return err
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
