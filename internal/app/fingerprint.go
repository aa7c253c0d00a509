package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"venue_atlas/internal/domain"
)

// Fingerprint hashes the fields that signal a visible change: name, address,
// phone, rating, rating count and the first three images. Volatile fields
// (sync timestamps, raw categories, remaining photos) are excluded on purpose
// so scraper noise does not trigger reprocessing.
func Fingerprint(v domain.Venue) string {
	imgs := v.Images
	if len(imgs) > 3 {
		imgs = imgs[:3]
	}
	rating := ""
	if v.Rating != nil {
		rating = fmt.Sprintf("%.1f", *v.Rating)
	}
	sig := strings.Join([]string{
		v.Name,
		deref(v.Address),
		deref(v.Phone),
		rating,
		strconv.Itoa(v.RatingCount),
		strings.Join(imgs, ","),
	}, "|")
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}

// HasChanged reports whether the incoming record differs from the stored one.
// A venue with no stored counterpart always counts as changed.
func HasChanged(stored *domain.Venue, incoming domain.Venue) bool {
	if stored == nil {
		return true
	}
	hash := stored.DataHash
	if hash == "" {
		hash = Fingerprint(*stored)
	}
	return hash != Fingerprint(incoming)
}
