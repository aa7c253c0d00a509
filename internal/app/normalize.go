package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"venue_atlas/internal/domain"
)

// Known scrape sources, highest-quality data first.
const (
	SourceGoogle = "google"
	SourceYandex = "yandex"
	SourceTwoGIS = "2gis"
)

// SourcePriority ranks origins for merge tie-breaking. Unknown sources rank 0.
var SourcePriority = map[string]int{
	SourceGoogle: 3,
	SourceYandex: 2,
	SourceTwoGIS: 1,
}

// NormalizedRecord is the output of per-source normalization: the canonical
// venue shape plus the raw hours/reviews payloads for the dedicated parsers.
type NormalizedRecord struct {
	Venue      domain.Venue
	RawHours   any
	RawReviews []map[string]any
}

/********** alias registries (single source of truth) **********/

var googleAliases = map[string][]string{
	"name":         {"title", "name"},
	"source_id":    {"placeId", "place_id", "cid", "id"},
	"address":      {"address", "formatted_address", "street"},
	"city":         {"city"},
	"phone":        {"phone", "phoneUnformatted", "formatted_phone_number"},
	"website":      {"website", "websiteUri"},
	"email":        {"email"},
	"rating":       {"totalScore", "rating", "stars"},
	"rating_count": {"reviewsCount", "userRatingsTotal", "user_ratings_total"},
	"price":        {"price", "priceRange"},
	"brand":        {"brand", "chainName"},
	"source_url":   {"url", "googleMapsUrl", "googleMapsUri"},
	"description":  {"description", "editorialSummary.text", "about"},
}

var yandexAliases = map[string][]string{
	"name":         {"name", "title"},
	"source_id":    {"id", "placeId"},
	"address":      {"address", "formattedAddress"},
	"city":         {"city"},
	"phone":        {"phone"},
	"website":      {"website", "url"},
	"email":        {"email"},
	"rating":       {"rating", "totalScore"},
	"rating_count": {"reviewsCount", "ratingCount"},
	"price":        {"price", "priceCategory"},
	"brand":        {"brand", "chain"},
	"source_url":   {"url", "sourceUrl"},
	"description":  {"description", "shortDescription"},
}

var twoGISAliases = map[string][]string{
	"name":         {"name", "title"},
	"source_id":    {"id", "firm_id"},
	"address":      {"address_name", "address"},
	"city":         {"city"},
	"phone":        {"phone"},
	"website":      {"website", "url"},
	"email":        {"email"},
	"rating":       {"rating"},
	"rating_count": {"reviews_count", "reviewCount"},
	"price":        {"price"},
	"brand":        {"brand"},
	"source_url":   {"link", "url"},
	"description":  {"description", "external_content.description"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstIntFlexible: int from several paths (float64/int/string).
func firstIntFlexible(m map[string]any, paths ...string) *int {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int(v)
			return &x
		case int:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.Atoi(s); err == nil {
				return &n
			}
		}
	}
	return nil
}

// firstSliceStrings: accept []any with either strings or {url/src/photoUrl}.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		switch raw := lookupAny(m, k).(type) {
		case []any:
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					if t != "" {
						out = append(out, t)
					}
				case map[string]any:
					for _, field := range []string{"url", "src", "photoUrl", "photo_reference"} {
						if u, ok := t[field].(string); ok && u != "" {
							out = append(out, u)
							break
						}
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if raw != "" {
				return []string{raw}
			}
		}
	}
	return nil
}

// firstSliceMaps: []map[string]any at the first matching path.
func firstSliceMaps(m map[string]any, paths ...string) []map[string]any {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(raw))
		for _, it := range raw {
			if obj, ok := it.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

/********** slug, city **********/

var slugStrip = regexp.MustCompile(`[^a-zа-яё0-9\s]`)
var slugSpaces = regexp.MustCompile(`\s+`)

// GenerateSlug builds a stable slug from the name plus a sourceID suffix.
func GenerateSlug(name, sourceID string) string {
	base := strings.ToLower(name)
	base = slugStrip.ReplaceAllString(base, "")
	base = slugSpaces.ReplaceAllString(strings.TrimSpace(base), "-")
	// truncate on runes; Cyrillic names must not be cut mid-character
	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	suffix := sourceID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + "-" + suffix
}

// cityNames folds transliterated spellings onto one canonical form.
var cityNames = map[string]string{
	"Tashkent": "Ташкент",
	"Toshkent": "Ташкент",
	"Тоshkent": "Ташкент",
	"Dustlik":  "Дустлик",
}

// extractCity falls back to the last comma-separated address component when
// no explicit city field is present.
func extractCity(raw map[string]any, address string) string {
	city := strings.TrimSpace(lookupStr(raw, "city"))
	if city == "" || city == "null" {
		if strings.Contains(lookupStr(raw, "state"), "Tashkent") ||
			strings.Contains(address, "Tashkent") {
			city = "Ташкент"
		} else if n := strings.TrimSpace(lookupStr(raw, "neighborhood")); n != "" {
			city = n
		} else if parts := strings.Split(address, ","); len(parts) > 1 {
			city = strings.TrimSpace(parts[len(parts)-1])
		}
	}
	if canon, ok := cityNames[city]; ok {
		return canon
	}
	if city == "" {
		return "Неизвестно"
	}
	return city
}

// syntheticSourceID derives a stable id when the payload carries none.
func syntheticSourceID(name string, lat, lng float64) string {
	sig := fmt.Sprintf("%s|%.6f|%.6f", strings.ToLower(strings.TrimSpace(name)), lat, lng)
	sum := sha1.Sum([]byte(sig))
	return "syn-" + hex.EncodeToString(sum[:8])
}

/********** per-source normalizers **********/

// Normalize maps a raw scraped record into the canonical venue shape.
// Missing name or coordinates fail the single record with a ValidationError;
// callers must not abort a batch on it.
func Normalize(source string, raw map[string]any) (NormalizedRecord, error) {
	switch source {
	case SourceGoogle:
		return normalizeWith(source, raw, googleAliases, coordPaths{
			lat: []string{"location.lat", "coordinates.latitude", "latitude", "lat"},
			lng: []string{"location.lng", "coordinates.longitude", "longitude", "lng"},
		})
	case SourceYandex:
		return normalizeWith(source, raw, yandexAliases, coordPaths{
			lat: []string{"coordinates.lat", "location.lat", "lat", "latitude"},
			lng: []string{"coordinates.lon", "location.lon", "lon", "lng", "longitude"},
		})
	case SourceTwoGIS:
		return normalizeWith(source, raw, twoGISAliases, coordPaths{
			lat: []string{"point.lat", "lat", "latitude"},
			lng: []string{"point.lon", "lon", "lng", "longitude"},
		})
	default:
		return NormalizedRecord{}, fmt.Errorf("unknown source %q", source)
	}
}

type coordPaths struct {
	lat, lng []string
}

func normalizeWith(source string, raw map[string]any, aliases map[string][]string, cp coordPaths) (NormalizedRecord, error) {
	name := deref(firstNonEmptyAlias(raw, aliases, "name"))
	if name == "" {
		return NormalizedRecord{}, &domain.ValidationError{Field: "name"}
	}
	lat := getFloatFlexible(raw, cp.lat...)
	if lat == nil || *lat == 0 {
		return NormalizedRecord{}, &domain.ValidationError{Field: "latitude"}
	}
	lng := getFloatFlexible(raw, cp.lng...)
	if lng == nil || *lng == 0 {
		return NormalizedRecord{}, &domain.ValidationError{Field: "longitude"}
	}

	sourceID := deref(firstNonEmptyAlias(raw, aliases, "source_id"))
	if sourceID == "" {
		sourceID = syntheticSourceID(name, *lat, *lng)
	}

	address := deref(firstNonEmptyAlias(raw, aliases, "address"))

	v := domain.Venue{
		Name:        name,
		Slug:        GenerateSlug(name, sourceID),
		Address:     ptrStr(address),
		City:        ptrStr(extractCity(raw, address)),
		Latitude:    *lat,
		Longitude:   *lng,
		Phone:       normalizePhone(firstNonEmptyAlias(raw, aliases, "phone"), raw),
		Website:     firstNonEmptyAlias(raw, aliases, "website"),
		Email:       firstNonEmptyAlias(raw, aliases, "email"),
		Rating:      getFloatFlexible(raw, aliases["rating"]...),
		Description: firstNonEmptyAlias(raw, aliases, "description"),
		Brand:       firstNonEmptyAlias(raw, aliases, "brand"),
		Images:      capStrings(extractImages(raw), 10),
		Cuisine:     extractCategories(raw),
		Source:      source,
		SourceID:    sourceID,
		SourceURL:   firstNonEmptyAlias(raw, aliases, "source_url"),
	}
	if n := firstIntFlexible(raw, aliases["rating_count"]...); n != nil {
		v.RatingCount = *n
	}
	if cc := lookupStr(raw, "countryCode"); cc != "" {
		if cc == "UZ" {
			v.Country = ptrStr("Узбекистан")
		} else {
			v.Country = ptrStr(cc)
		}
	}
	v.PriceRange = extractPrice(raw, aliases)

	return NormalizedRecord{
		Venue:      v,
		RawHours:   firstRawHours(raw),
		RawReviews: firstSliceMaps(raw, "reviews", "reviewsData"),
	}, nil
}

// normalizePhone prefers the aliased field but also unwraps the common
// nested shapes (phones[0], contacts.phones[0].formatted).
func normalizePhone(direct *string, raw map[string]any) *string {
	if direct != nil {
		return direct
	}
	if phones, ok := lookupAny(raw, "phones").([]any); ok && len(phones) > 0 {
		if s, ok := phones[0].(string); ok && s != "" {
			return &s
		}
	}
	if phones, ok := lookupAny(raw, "contacts.phones").([]any); ok && len(phones) > 0 {
		if obj, ok := phones[0].(map[string]any); ok {
			if s, ok := obj["formatted"].(string); ok && s != "" {
				return &s
			}
		}
	}
	return nil
}

// extractPrice: textual price first, else "$" repeated priceLevel times.
func extractPrice(raw map[string]any, aliases map[string][]string) *string {
	if s := firstNonEmptyAlias(raw, aliases, "price"); s != nil {
		return s
	}
	if lvl := firstIntFlexible(raw, "priceLevel", "price_level"); lvl != nil && *lvl > 0 && *lvl <= 4 {
		return ptrStr(strings.Repeat("$", *lvl))
	}
	return nil
}

func extractImages(raw map[string]any) []string {
	return firstSliceStrings(raw, "imageUrls", "images", "photos", "imageUrl", "thumbnail")
}

func extractCategories(raw map[string]any) []string {
	if cs := firstSliceStrings(raw, "categories", "rubrics", "types", "category"); cs != nil {
		return cs
	}
	if s := strings.TrimSpace(lookupStr(raw, "categoryName")); s != "" {
		return []string{s}
	}
	return nil
}

func firstRawHours(raw map[string]any) any {
	for _, k := range []string{"openingHours", "workingHours", "opening_hours", "hours"} {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
