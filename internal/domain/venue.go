package domain

import "time"

// Venue is the canonical record for one physical business. A venue keeps the
// (source, source_id) pair of the record that created it, but its fields may
// carry merged data contributed by other sources.
type Venue struct {
	ID          int64
	Name        string
	Slug        string
	Address     *string
	City        *string
	Country     *string
	Latitude    float64
	Longitude   float64
	Phone       *string
	Website     *string
	Email       *string
	Rating      *float64 // 0..5
	RatingCount int
	PriceRange  *string
	Description *string
	Brand       *string
	Images      []string // capped at 10
	Cuisine     []string // capped at 10
	Source      string
	SourceID    string
	SourceURL   *string
	DataHash    string // fingerprint over change-relevant fields
	LastSynced  time.Time
	CreatedAt   time.Time
}

// WorkingHours is one weekday row of a venue's schedule.
// DayOfWeek: 0=Sunday .. 6=Saturday. Times are 24h "HH:MM".
type WorkingHours struct {
	VenueID   int64
	DayOfWeek int
	OpenTime  string
	CloseTime string
	IsClosed  bool
}

type SyncMode string

const (
	SyncFull        SyncMode = "full"
	SyncReviewsOnly SyncMode = "reviews_only"
	SyncBasicInfo   SyncMode = "basic_info"
)

// SyncMeta tracks when each slice of a venue's data was last refreshed.
// Used only by the incremental-refresh decision, not by consolidation.
type SyncMeta struct {
	VenueID           int64
	LastBasicInfoSync *time.Time
	LastReviewsSync   *time.Time
	LastPhotosSync    *time.Time
	LastHoursSync     *time.Time
}
