package domain

import "time"

type Review struct {
	ID             int64
	VenueID        int64
	Source         string
	SourceID       *string
	SourceURL      *string
	Author         string
	AuthorAvatar   *string
	AuthorReviews  *int
	AuthorPhotos   *int
	IsLocalGuide   bool
	Rating         *float64 // 1..5
	Text           string
	Date           time.Time
	Photos         []string
	OwnerResponse  *string
	OwnerReplyDate *time.Time
	LikesCount     int
	Language       *string
	TranslatedText *string
}

// Key returns the identity used for dedup against stored reviews:
// the stable per-source id when the source supplies one, else (author, text).
func (r Review) Key() string {
	if r.SourceID != nil && *r.SourceID != "" {
		return r.Source + "\x00" + *r.SourceID
	}
	return r.Author + "\x00" + r.Text
}
