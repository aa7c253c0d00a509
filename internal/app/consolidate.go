package app

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"venue_atlas/internal/domain"
)

// Outcome of a single record write.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionMerged    = "merged"
	ActionUnchanged = "unchanged"
)

type ConsolidationService struct {
	repo  domain.VenueRepository
	cache domain.Cache
	sf    singleflight.Group
}

func NewConsolidationService(r domain.VenueRepository, cache domain.Cache) *ConsolidationService {
	return &ConsolidationService{repo: r, cache: cache}
}

type SaveOptions struct {
	// Incremental skips records whose fingerprint matches the stored one.
	Incremental bool
}

type SaveResult struct {
	Action     string  `json:"action"`
	ID         int64   `json:"id"`
	MergedWith *string `json:"merged_with,omitempty"`
}

// SaveWithConsolidation runs one raw record through the full pipeline:
// normalize, fingerprint, duplicate lookup, then merge-update or create.
func (s *ConsolidationService) SaveWithConsolidation(ctx context.Context, source string, raw map[string]any, opts SaveOptions) (SaveResult, error) {
	rec, err := Normalize(source, raw)
	if err != nil {
		return SaveResult{}, err
	}
	v := rec.Venue
	v.Cuisine = NormalizeCuisine(v.Cuisine, v.Name)
	v.DataHash = Fingerprint(v)
	v.LastSynced = time.Now().UTC()

	stored, err := s.repo.FindBySource(ctx, v.Source, v.SourceID)
	if err != nil {
		return SaveResult{}, err
	}
	if opts.Incremental && stored != nil && !HasChanged(stored, v) {
		return SaveResult{Action: ActionUnchanged, ID: stored.ID}, nil
	}

	hours := ParseHours(rec.RawHours)
	reviews := NormalizeReviews(v.Source, rec.RawReviews)

	// The duplicate scan runs before the own-row lookup: a record folds into
	// a matching neighbour from another source even when its own
	// (source, sourceID) row exists. The stale own row is swept up by the
	// next full consolidation.
	dup, err := FindDuplicate(ctx, s.repo, v.Name, v.Latitude, v.Longitude, &domain.SourceRef{Source: v.Source, SourceID: v.SourceID})
	if err != nil {
		return SaveResult{}, err
	}
	if dup != nil {
		merged := MergeVenueData(*dup, v)
		merged.DataHash = Fingerprint(merged)
		merged.LastSynced = time.Now().UTC()
		newReviews, err := s.newReviewsFor(ctx, dup.ID, reviews)
		if err != nil {
			return SaveResult{}, err
		}
		if err := s.repo.UpdateVenue(ctx, dup.ID, merged, hours, domain.HoursKeepExisting, newReviews); err != nil {
			return SaveResult{}, err
		}
		s.invalidateVenue(ctx, dup.ID)
		ref := dup.Source + ":" + dup.SourceID
		return SaveResult{Action: ActionMerged, ID: dup.ID, MergedWith: &ref}, nil
	}

	// Same-source re-delivery with no duplicate nearby: refresh the row in place.
	if stored != nil {
		newReviews, err := s.newReviewsFor(ctx, stored.ID, reviews)
		if err != nil {
			return SaveResult{}, err
		}
		upd := applyRefreshOn(*stored, v)
		if err := s.repo.UpdateVenue(ctx, stored.ID, upd, hours, domain.HoursReplace, newReviews); err != nil {
			return SaveResult{}, err
		}
		s.invalidateVenue(ctx, stored.ID)
		return SaveResult{Action: ActionUpdated, ID: stored.ID}, nil
	}

	id, err := s.repo.CreateVenue(ctx, v, hours, reviews)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Action: ActionCreated, ID: id}, nil
}

// applyRefreshOn overlays a fresh same-source snapshot on the stored venue,
// keeping the database identity and creation time.
func applyRefreshOn(stored domain.Venue, fresh domain.Venue) domain.Venue {
	fresh.ID = stored.ID
	fresh.Slug = stored.Slug
	fresh.CreatedAt = stored.CreatedAt
	return fresh
}

func (s *ConsolidationService) newReviewsFor(ctx context.Context, venueID int64, reviews []domain.Review) ([]domain.Review, error) {
	if len(reviews) == 0 {
		return nil, nil
	}
	keys, err := s.repo.ReviewKeys(ctx, venueID)
	if err != nil {
		return nil, err
	}
	return FilterNewReviews(keys, reviews), nil
}

func (s *ConsolidationService) invalidateVenue(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{
		fmt.Sprintf("venue:%d", id),
		fmt.Sprintf("hours:%d", id),
	} {
		_ = s.cache.Del(ctx, key)
	}
	for _, limit := range []int{10, 20, 50} {
		_ = s.cache.Del(ctx, fmt.Sprintf("reviews:%d:%d", id, limit))
	}
}

type ImportStats struct {
	Total         int      `json:"total"`
	Processed     int      `json:"processed"`
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Merged        int      `json:"merged"`
	Unchanged     int      `json:"unchanged"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// ImportBatch feeds records through SaveWithConsolidation one by one.
// Records are independent: a bad one is counted and skipped, transient
// storage failures get a few retries before the record is given up on.
func (s *ConsolidationService) ImportBatch(ctx context.Context, source string, records []map[string]any, opts SaveOptions) (ImportStats, error) {
	stats := ImportStats{Total: len(records)}
	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := s.saveWithRetry(ctx, source, raw, opts)
		if err != nil {
			if domain.IsValidation(err) {
				stats.Skipped++
			} else {
				stats.Errors++
				if len(stats.ErrorMessages) < 10 {
					stats.ErrorMessages = append(stats.ErrorMessages, err.Error())
				}
			}
			continue
		}
		stats.Processed++
		switch res.Action {
		case ActionCreated:
			stats.Created++
		case ActionUpdated:
			stats.Updated++
		case ActionMerged:
			stats.Merged++
		case ActionUnchanged:
			stats.Unchanged++
		}
		if (i+1)%100 == 0 {
			log.Info().Str("source", source).Int("done", i+1).Int("total", len(records)).Msg("import progress")
		}
	}
	return stats, nil
}

func (s *ConsolidationService) saveWithRetry(ctx context.Context, source string, raw map[string]any, opts SaveOptions) (SaveResult, error) {
	var res SaveResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = s.SaveWithConsolidation(ctx, source, raw, opts)
		if err == nil || domain.IsValidation(err) {
			return res, err
		}
		if i < 2 && !sleepCtx(ctx, backoff(i)) {
			return res, ctx.Err()
		}
	}
	return res, err
}

type ConsolidationReport struct {
	Processed int `json:"processed"`
	Merged    int `json:"merged"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
}

// RunFullConsolidation re-scans the whole table for duplicates that slipped
// past ingest-time matching, folds them into the higher-priority record and
// deletes the absorbed rows. Concurrent calls collapse into one run.
func (s *ConsolidationService) RunFullConsolidation(ctx context.Context) (ConsolidationReport, error) {
	v, err, _ := s.sf.Do("full", func() (any, error) {
		return s.runFullConsolidation(ctx)
	})
	if err != nil {
		return ConsolidationReport{}, err
	}
	return v.(ConsolidationReport), nil
}

func (s *ConsolidationService) runFullConsolidation(ctx context.Context) (ConsolidationReport, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return ConsolidationReport{}, err
	}
	report := ConsolidationReport{Processed: len(all)}
	absorbed := make(map[int64]struct{})
	var toDelete []int64

	for i := range all {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		keeper := &all[i]
		if _, gone := absorbed[keeper.ID]; gone {
			continue
		}
		for j := i + 1; j < len(all); j++ {
			cand := &all[j]
			if _, gone := absorbed[cand.ID]; gone {
				continue
			}
			dist := HaversineMeters(keeper.Latitude, keeper.Longitude, cand.Latitude, cand.Longitude)
			if dist >= 50 {
				continue
			}
			sim := NameSimilarity(keeper.Name, cand.Name)
			if !(sim > 0.5 || dist < 20) {
				continue
			}
			// Pairs are independent: one failed write must not stop the sweep.
			if err := s.absorbDuplicate(ctx, keeper, *cand); err != nil {
				report.Failed++
				log.Warn().Err(err).
					Int64("kept", keeper.ID).Int64("candidate", cand.ID).
					Msg("consolidation pair failed")
				continue
			}
			absorbed[cand.ID] = struct{}{}
			toDelete = append(toDelete, cand.ID)
			report.Merged++
			s.invalidateVenue(ctx, keeper.ID)
			log.Info().
				Int64("kept", keeper.ID).Int64("absorbed", cand.ID).
				Str("kept_source", keeper.Source).Str("absorbed_source", cand.Source).
				Msg("consolidated duplicate")
		}
	}

	if len(toDelete) > 0 {
		if err := s.repo.DeleteVenues(ctx, toDelete); err != nil {
			return report, err
		}
		for _, id := range toDelete {
			s.invalidateVenue(ctx, id)
		}
		report.Deleted = len(toDelete)
	}
	return report, nil
}

// absorbDuplicate folds cand into keeper: merged fields, the candidate's
// hours (only if the keeper has none) and its not-yet-seen reviews. The
// keeper is updated in place on success so later pairs merge against the
// combined record.
func (s *ConsolidationService) absorbDuplicate(ctx context.Context, keeper *domain.Venue, cand domain.Venue) error {
	merged := MergeVenueData(*keeper, cand)
	merged.DataHash = Fingerprint(merged)
	merged.LastSynced = time.Now().UTC()
	candHours, err := s.repo.ListHours(ctx, cand.ID)
	if err != nil {
		return err
	}
	candReviews, err := s.collectReviews(ctx, cand.ID)
	if err != nil {
		return err
	}
	newReviews, err := s.newReviewsFor(ctx, keeper.ID, candReviews)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateVenue(ctx, keeper.ID, merged, candHours, domain.HoursKeepExisting, newReviews); err != nil {
		return err
	}
	*keeper = merged
	return nil
}

type ConsolidationOverview struct {
	Total               int                 `json:"total"`
	BySource            []domain.SourceStat `json:"by_source"`
	PotentialDuplicates int                 `json:"potential_duplicates"`
}

// Overview reports per-source counts plus a coarse estimate of duplicates
// still in the store. The estimate only looks at coordinate proximity
// (0.0005 degrees is roughly 50 m), not names, so it overshoots in dense
// areas; it is a health signal, not the merge rule.
func (s *ConsolidationService) Overview(ctx context.Context) (ConsolidationOverview, error) {
	stats, err := s.repo.SourceStats(ctx)
	if err != nil {
		return ConsolidationOverview{}, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return ConsolidationOverview{}, err
	}
	out := ConsolidationOverview{Total: len(all), BySource: stats}

	counted := make(map[int64]struct{})
	for i := range all {
		if _, dup := counted[all[i].ID]; dup {
			continue
		}
		for j := i + 1; j < len(all); j++ {
			if _, dup := counted[all[j].ID]; dup {
				continue
			}
			latDiff := math.Abs(all[i].Latitude - all[j].Latitude)
			lngDiff := math.Abs(all[i].Longitude - all[j].Longitude)
			if latDiff < 0.0005 && lngDiff < 0.0005 {
				out.PotentialDuplicates++
				counted[all[j].ID] = struct{}{}
			}
		}
	}
	return out, nil
}

func (s *ConsolidationService) collectReviews(ctx context.Context, venueID int64) ([]domain.Review, error) {
	page, err := s.repo.ListReviews(ctx, venueID, domain.PageQuery{Limit: maxReviewsPerIngest})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// sleepCtx sleeps for d or until ctx is done; returns false when interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff returns an exponential delay with up to +50% jitter.
// i = retry attempt (0,1,2,...), base 200ms doubling each attempt.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
