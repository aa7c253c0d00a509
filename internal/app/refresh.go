package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"venue_atlas/internal/domain"
)

// SyncNone marks a venue whose data slices are all fresh enough.
const SyncNone domain.SyncMode = ""

// SyncConfig holds per-slice refresh intervals in days.
type SyncConfig struct {
	ReviewsIntervalDays   int
	BasicInfoIntervalDays int
	PhotosIntervalDays    int
	HoursIntervalDays     int
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		ReviewsIntervalDays:   1,
		BasicInfoIntervalDays: 7,
		PhotosIntervalDays:    14,
		HoursIntervalDays:     30,
	}
}

// RefreshService re-fetches stored venues from the upstream places API,
// choosing how much to fetch from how stale each data slice is.
type RefreshService struct {
	repo   domain.VenueRepository
	places domain.PlacesClient
	cache  domain.Cache
	cfg    SyncConfig
}

func NewRefreshService(r domain.VenueRepository, p domain.PlacesClient, cache domain.Cache, cfg SyncConfig) *RefreshService {
	return &RefreshService{repo: r, places: p, cache: cache, cfg: cfg}
}

// DetermineSyncMode picks the cheapest refresh that covers everything stale.
// Basic info stale means a full refresh; otherwise reviews alone when only
// they are due; SyncNone when nothing is.
func (s *RefreshService) DetermineSyncMode(meta domain.SyncMeta, now time.Time) domain.SyncMode {
	stale := func(last *time.Time, days int) bool {
		if last == nil {
			return true
		}
		return now.Sub(*last) > time.Duration(days)*24*time.Hour
	}
	basicStale := stale(meta.LastBasicInfoSync, s.cfg.BasicInfoIntervalDays)
	hoursStale := stale(meta.LastHoursSync, s.cfg.HoursIntervalDays)
	photosStale := stale(meta.LastPhotosSync, s.cfg.PhotosIntervalDays)
	reviewsStale := stale(meta.LastReviewsSync, s.cfg.ReviewsIntervalDays)

	switch {
	case basicStale || hoursStale || photosStale:
		return domain.SyncFull
	case reviewsStale:
		return domain.SyncReviewsOnly
	default:
		return SyncNone
	}
}

// RefreshPlan is one venue due for a refresh.
type RefreshPlan struct {
	VenueID int64
	Mode    domain.SyncMode
}

// Plan returns up to limit venues that need refreshing, stalest-first order
// as delivered by the repository.
func (s *RefreshService) Plan(ctx context.Context, limit int) ([]RefreshPlan, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var plans []RefreshPlan
	for _, v := range all {
		if limit > 0 && len(plans) >= limit {
			break
		}
		meta, err := s.repo.GetSyncMeta(ctx, v.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				plans = append(plans, RefreshPlan{VenueID: v.ID, Mode: domain.SyncFull})
				continue
			}
			return nil, err
		}
		if mode := s.DetermineSyncMode(meta, now); mode != SyncNone {
			plans = append(plans, RefreshPlan{VenueID: v.ID, Mode: mode})
		}
	}
	return plans, nil
}

const refreshCooldown = 24 * time.Hour

var priceLevels = map[string]string{
	"PRICE_LEVEL_INEXPENSIVE":    "$",
	"PRICE_LEVEL_MODERATE":       "$$",
	"PRICE_LEVEL_EXPENSIVE":      "$$$",
	"PRICE_LEVEL_VERY_EXPENSIVE": "$$$$",
}

// RefreshVenue re-pulls one venue from the places API and writes the fresh
// fields back. A venue synced in the last 24h is skipped unless force is set.
func (s *RefreshService) RefreshVenue(ctx context.Context, id int64, mode domain.SyncMode, force bool) error {
	v, err := s.repo.GetVenue(ctx, id)
	if err != nil {
		return err
	}
	if !force && time.Since(v.LastSynced) < refreshCooldown {
		return nil
	}

	placeID := v.SourceID
	if !strings.HasPrefix(placeID, "ChIJ") {
		placeID, err = s.places.FindPlaceID(ctx, v.Name, v.Latitude, v.Longitude)
		if err != nil {
			return fmt.Errorf("resolve place id for venue %d: %w", id, err)
		}
	}

	details, err := s.places.GetDetails(ctx, placeID, fieldMaskFor(mode))
	if err != nil {
		return fmt.Errorf("fetch details for venue %d: %w", id, err)
	}

	if mode == domain.SyncFull || mode == domain.SyncBasicInfo {
		if r := getFloatFlexible(details, "rating"); r != nil {
			v.Rating = r
		}
		if n := firstIntFlexible(details, "userRatingCount"); n != nil {
			v.RatingCount = *n
		}
		if p := firstNonEmptyAlias(details, placesAliases, "phone"); p != nil {
			v.Phone = p
		}
		if w := firstNonEmptyAlias(details, placesAliases, "website"); w != nil {
			v.Website = w
		}
		if lvl := lookupStr(details, "priceLevel"); lvl != "" {
			if pr, ok := priceLevels[lvl]; ok {
				v.PriceRange = ptrStr(pr)
			}
		}
	}

	var hours []domain.WorkingHours
	hoursMode := domain.HoursKeepExisting
	if mode == domain.SyncFull {
		if periods, ok := lookupAny(details, "currentOpeningHours.periods").([]any); ok {
			hours = periodsToHours(periods)
			hoursMode = domain.HoursReplace
		}
	}

	var reviews []domain.Review
	if mode == domain.SyncFull || mode == domain.SyncReviewsOnly {
		raw := firstSliceMaps(details, "reviews")
		all := NormalizeReviews(v.Source, flattenPlacesReviews(raw))
		reviews, err = s.newReviews(ctx, id, all)
		if err != nil {
			return err
		}
	}

	v.DataHash = Fingerprint(v)
	v.LastSynced = time.Now().UTC()
	if err := s.repo.UpdateVenue(ctx, id, v, hours, hoursMode, reviews); err != nil {
		return err
	}
	if err := s.repo.TouchSyncMeta(ctx, id, mode); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, fmt.Sprintf("venue:%d", id))
		_ = s.cache.Del(ctx, fmt.Sprintf("hours:%d", id))
	}
	log.Info().Int64("venue_id", id).Str("mode", string(mode)).Msg("venue refreshed")
	return nil
}

var placesAliases = map[string][]string{
	"phone":   {"nationalPhoneNumber", "internationalPhoneNumber"},
	"website": {"websiteUri"},
}

func fieldMaskFor(mode domain.SyncMode) string {
	switch mode {
	case domain.SyncReviewsOnly:
		return "reviews"
	case domain.SyncBasicInfo:
		return "rating,userRatingCount,nationalPhoneNumber,websiteUri,priceLevel"
	default:
		return "rating,userRatingCount,nationalPhoneNumber,websiteUri,priceLevel,currentOpeningHours,reviews"
	}
}

// periodsToHours converts Places API opening periods (open/close day+hour+minute)
// into weekly schedule rows.
func periodsToHours(periods []any) []domain.WorkingHours {
	var out []domain.WorkingHours
	seen := make(map[int]struct{}, 7)
	for _, p := range periods {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		open, okO := pm["open"].(map[string]any)
		if !okO {
			continue
		}
		day := -1
		if d, ok := open["day"].(float64); ok {
			day = int(d)
		}
		if day < 0 || day > 6 {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		openT := hhmm(open)
		closeT := "23:59"
		if cl, ok := pm["close"].(map[string]any); ok {
			closeT = hhmm(cl)
		}
		out = append(out, domain.WorkingHours{DayOfWeek: day, OpenTime: openT, CloseTime: closeT})
	}
	return out
}

func hhmm(point map[string]any) string {
	h, m := 0, 0
	if v, ok := point["hour"].(float64); ok {
		h = int(v)
	}
	if v, ok := point["minute"].(float64); ok {
		m = int(v)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// flattenPlacesReviews reshapes Places API review objects into the flat
// key set the review normalizer understands.
func flattenPlacesReviews(in []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, r := range in {
		flat := map[string]any{}
		for k, v := range r {
			flat[k] = v
		}
		if a, ok := lookupAny(r, "authorAttribution.displayName").(string); ok {
			flat["author"] = a
		}
		if av, ok := lookupAny(r, "authorAttribution.photoUri").(string); ok {
			flat["profilePhotoUrl"] = av
		}
		if t, ok := lookupAny(r, "text.text").(string); ok {
			flat["text"] = t
		} else if t, ok := lookupAny(r, "originalText.text").(string); ok {
			flat["text"] = t
		} else if _, isStr := flat["text"].(string); !isStr {
			delete(flat, "text")
		}
		if d, ok := r["publishTime"].(string); ok {
			flat["publishedAtDate"] = d
		}
		out = append(out, flat)
	}
	return out
}

func (s *RefreshService) newReviews(ctx context.Context, venueID int64, reviews []domain.Review) ([]domain.Review, error) {
	if len(reviews) == 0 {
		return nil, nil
	}
	keys, err := s.repo.ReviewKeys(ctx, venueID)
	if err != nil {
		return nil, err
	}
	return FilterNewReviews(keys, reviews), nil
}
