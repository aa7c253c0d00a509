package domain

import "context"

// HoursMode controls what an update does to a venue's schedule.
type HoursMode int

const (
	// HoursKeepExisting attaches hours only when the venue has none yet
	// (first write wins; used when merging a duplicate in).
	HoursKeepExisting HoursMode = iota
	// HoursReplace drops the stored schedule and writes the new one
	// (used when a source re-delivers its own record).
	HoursReplace
)

// SourceRef identifies a record by its origin.
type SourceRef struct {
	Source   string
	SourceID string
}

type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

type SourceStat struct {
	Source    string
	Count     int
	AvgRating *float64
}

type VenueRepository interface {
	// Write paths. CreateVenue and UpdateVenue persist the venue row plus its
	// hours and reviews in a single transaction.
	CreateVenue(ctx context.Context, v Venue, hours []WorkingHours, reviews []Review) (int64, error)
	UpdateVenue(ctx context.Context, id int64, v Venue, hours []WorkingHours, mode HoursMode, reviews []Review) error
	DeleteVenues(ctx context.Context, ids []int64) error
	TouchSyncMeta(ctx context.Context, venueID int64, mode SyncMode) error

	// Read paths
	GetVenue(ctx context.Context, id int64) (Venue, error)
	FindBySource(ctx context.Context, source, sourceID string) (*Venue, error)
	FindInBBox(ctx context.Context, b BBox, exclude *SourceRef) ([]Venue, error)
	ListAll(ctx context.Context) ([]Venue, error) // ordered by source priority, then created_at
	SourceStats(ctx context.Context) ([]SourceStat, error)
	ListHours(ctx context.Context, venueID int64) ([]WorkingHours, error)
	ListReviews(ctx context.Context, venueID int64, pg PageQuery) (ReviewsPage, error)
	ReviewKeys(ctx context.Context, venueID int64) (map[string]struct{}, error)
	GetSyncMeta(ctx context.Context, venueID int64) (SyncMeta, error)
}

// PlacesClient is the outbound port for point refreshes of a single venue
// against the upstream places API.
type PlacesClient interface {
	FindPlaceID(ctx context.Context, name string, lat, lng float64) (string, error)
	GetDetails(ctx context.Context, placeID, fieldMask string) (map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type PageQuery struct {
	Limit  int
	Cursor *string
	Sort   string
}

type ReviewsPage struct {
	Items      []Review
	NextCursor *string
}
