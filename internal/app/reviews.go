package app

import (
	"strings"
	"time"

	"venue_atlas/internal/domain"
)

const maxReviewsPerIngest = 20

var reviewAliases = map[string][]string{
	"author":     {"name", "author", "reviewer", "userName", "reviewer.name"},
	"text":       {"text", "snippet", "review", "comment", "content", "body"},
	"avatar":     {"profilePhotoUrl", "reviewerPhotoUrl", "authorAvatar", "avatar"},
	"date":       {"publishedAtDate", "publishAt", "date", "publishedAt", "created_at"},
	"lang":       {"language", "lang", "originalLanguage"},
	"translated": {"textTranslated", "translatedText"},
	"source_id":  {"reviewId", "review_id", "id"},
	"source_url": {"reviewUrl", "url"},
	"owner":      {"responseFromOwnerText", "ownerResponse", "owner_answer"},
	"owner_date": {"responseFromOwnerDate", "ownerResponseDate"},
}

var reviewDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeReviews maps arbitrary review payloads into canonical records,
// capped at 20. A review is kept only when it carries text or a rating.
// Bad dates fall back to now instead of failing the record.
func NormalizeReviews(source string, in []map[string]any) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		if len(out) >= maxReviewsPerIngest {
			break
		}
		rv := domain.Review{Source: source}

		rv.Author = deref(firstNonEmptyAlias(r, reviewAliases, "author"))
		if rv.Author == "" {
			rv.Author = "Аноним"
		}
		rv.Text = deref(firstNonEmptyAlias(r, reviewAliases, "text"))
		rv.Rating = getFloatFlexible(r, "stars", "rating", "score", "rating.value")
		if rv.Text == "" && rv.Rating == nil {
			continue
		}

		rv.SourceID = firstNonEmptyAlias(r, reviewAliases, "source_id")
		rv.SourceURL = firstNonEmptyAlias(r, reviewAliases, "source_url")
		rv.AuthorAvatar = firstNonEmptyAlias(r, reviewAliases, "avatar")
		rv.AuthorReviews = firstIntFlexible(r, "reviewerNumberOfReviews", "authorReviewsCount")
		rv.AuthorPhotos = firstIntFlexible(r, "reviewerNumberOfPhotos", "authorPhotosCount")
		if b, ok := lookupAny(r, "isLocalGuide").(bool); ok {
			rv.IsLocalGuide = b
		}
		rv.Date = parseReviewDate(deref(firstNonEmptyAlias(r, reviewAliases, "date")))
		rv.Photos = firstSliceStrings(r, "reviewImageUrls", "photos", "images")
		rv.OwnerResponse = firstNonEmptyAlias(r, reviewAliases, "owner")
		if d := firstNonEmptyAlias(r, reviewAliases, "owner_date"); d != nil {
			t := parseReviewDate(*d)
			rv.OwnerReplyDate = &t
		}
		if n := firstIntFlexible(r, "likesCount", "likes"); n != nil {
			rv.LikesCount = *n
		}
		rv.Language = firstNonEmptyAlias(r, reviewAliases, "lang")
		rv.TranslatedText = firstNonEmptyAlias(r, reviewAliases, "translated")

		out = append(out, rv)
	}
	return out
}

func parseReviewDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range reviewDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// FilterNewReviews drops reviews whose identity already exists on the venue.
// Existing reviews are never overwritten.
func FilterNewReviews(existing map[string]struct{}, in []domain.Review) []domain.Review {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Review, 0, len(in))
	for _, rv := range in {
		if _, dup := existing[rv.Key()]; dup {
			continue
		}
		// also guard against duplicates inside one batch
		existing[rv.Key()] = struct{}{}
		out = append(out, rv)
	}
	return out
}
