package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"venue_atlas/internal/domain"
)

type QueryService struct {
	repo     domain.VenueRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.VenueRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetVenue(ctx context.Context, id int64) (domain.Venue, error) {
	key := fmt.Sprintf("venue:%d", id)
	var v domain.Venue
	if ok, _ := s.cache.Get(ctx, key, &v); ok {
		return v, nil
	}
	v, err := s.repo.GetVenue(ctx, id)
	if err != nil {
		return domain.Venue{}, err
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
	return v, nil
}

func (s *QueryService) ListHours(ctx context.Context, id int64) ([]domain.WorkingHours, error) {
	key := fmt.Sprintf("hours:%d", id)
	var out []domain.WorkingHours
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	hrs, err := s.repo.ListHours(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, hrs, int(s.cacheTTL.Seconds()))
	return hrs, nil
}

func (s *QueryService) ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := fmt.Sprintf("reviews:%d:%d", id, pg.Limit)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rs, err := s.repo.ListReviews(ctx, id, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the repo's backing array (prevents callers from mutating cached value)
	copyRS := deepCopyReviewsPage(rs)

	// optional size guard
	if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func (s *QueryService) SourceStats(ctx context.Context) ([]domain.SourceStat, error) {
	return s.repo.SourceStats(ctx)
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
