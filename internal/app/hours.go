package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"venue_atlas/internal/domain"
)

// Day names as the scrapers deliver them, English and Russian, full and short.
var dayNames = map[string]int{
	"sunday": 0, "sun": 0, "su": 0, "воскресенье": 0, "вс": 0,
	"monday": 1, "mon": 1, "mo": 1, "понедельник": 1, "пн": 1,
	"tuesday": 2, "tue": 2, "tu": 2, "вторник": 2, "вт": 2,
	"wednesday": 3, "wed": 3, "we": 3, "среда": 3, "ср": 3,
	"thursday": 4, "thu": 4, "th": 4, "четверг": 4, "чт": 4,
	"friday": 5, "fri": 5, "fr": 5, "пятница": 5, "пт": 5,
	"saturday": 6, "sat": 6, "sa": 6, "суббота": 6, "сб": 6,
}

var (
	dayLineRe    = regexp.MustCompile(`(?i)^([а-яa-z]+)[\s:,]+(.+)$`)
	closedRe     = regexp.MustCompile(`(?i)closed|закрыто|выходной|не работает|off`)
	roundClockRe = regexp.MustCompile(`(?i)24\s*/\s*7|24\s*hours|круглосуточно`)
	rangeSplitRe = regexp.MustCompile(`(?i)\s*[–\-—]\s*|\s+to\s+|\s+до\s+`)
	plain24Re    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	ampmRe       = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)`)
	bareHourRe   = regexp.MustCompile(`^(\d{1,2})$`)
)

// ParseHours normalizes a working-hours payload into weekly schedule rows.
// Accepted shapes: array of "Day: range" strings, array of day/time objects,
// or a map keyed by day name. Unparseable entries are dropped silently; the
// result only contains days 0-6, one row per day.
func ParseHours(payload any) []domain.WorkingHours {
	var out []domain.WorkingHours
	seen := make(map[int]struct{}, 7)

	push := func(day int, open, close string, closed bool) {
		if day < 0 || day > 6 {
			return
		}
		if _, dup := seen[day]; dup {
			return
		}
		seen[day] = struct{}{}
		out = append(out, domain.WorkingHours{
			DayOfWeek: day, OpenTime: open, CloseTime: close, IsClosed: closed,
		})
	}

	switch hours := payload.(type) {
	case []any:
		for _, entry := range hours {
			switch e := entry.(type) {
			case string:
				parseDayLine(e, push)
			case map[string]any:
				parseDayObject(e, push)
			}
		}
	case map[string]any:
		for dayName, v := range hours {
			day, ok := dayNames[strings.ToLower(strings.TrimSpace(dayName))]
			if !ok {
				continue
			}
			if s, ok := v.(string); ok {
				applyRange(day, s, push)
			}
		}
	}
	return out
}

func parseDayLine(line string, push func(int, string, string, bool)) {
	m := dayLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return
	}
	day, ok := dayNames[strings.ToLower(m[1])]
	if !ok {
		return
	}
	applyRange(day, m[2], push)
}

func parseDayObject(e map[string]any, push func(int, string, string, bool)) {
	day := -1
	if s, ok := e["day"].(string); ok {
		if d, ok := dayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
			day = d
		}
	}
	if day < 0 {
		switch d := e["dayOfWeek"].(type) {
		case float64:
			day = int(d)
		case int:
			day = d
		case string:
			if dd, ok := dayNames[strings.ToLower(strings.TrimSpace(d))]; ok {
				day = dd
			}
		}
	}
	if day < 0 || day > 6 {
		return
	}

	rangeStr := ""
	for _, k := range []string{"hours", "time", "openingHours"} {
		if s, ok := e[k].(string); ok && s != "" {
			rangeStr = s
			break
		}
	}
	if flag, ok := e["isClosed"].(bool); ok && flag {
		push(day, "00:00", "00:00", true)
		return
	}
	if rangeStr != "" {
		applyRange(day, rangeStr, push)
		return
	}
	// direct openTime/closeTime fields
	rawOpen, okO := e["openTime"].(string)
	rawClose, okC := e["closeTime"].(string)
	if okO && okC {
		open, openOK := to24Hour(rawOpen)
		close, closeOK := to24Hour(rawClose)
		if openOK && closeOK {
			push(day, open, close, false)
		}
	}
}

func applyRange(day int, rangeStr string, push func(int, string, string, bool)) {
	rangeStr = strings.TrimSpace(rangeStr)
	if closedRe.MatchString(rangeStr) {
		push(day, "00:00", "00:00", true)
		return
	}
	open, close, ok := parseTimeRange(rangeStr)
	if !ok {
		return
	}
	push(day, open, close, false)
}

// parseTimeRange splits "9:00 AM – 10:00 PM" / "09:00-22:00" style ranges.
// "24/7" and "круглосуточно" map to 00:00-23:59.
func parseTimeRange(s string) (open, close string, ok bool) {
	if roundClockRe.MatchString(s) {
		return "00:00", "23:59", true
	}
	parts := rangeSplitRe.Split(s, -1)
	if len(parts) < 2 {
		return "", "", false
	}
	open, openOK := to24Hour(strings.TrimSpace(parts[0]))
	close, closeOK := to24Hour(strings.TrimSpace(parts[1]))
	if !openOK || !closeOK {
		return "", "", false
	}
	return open, close, true
}

// to24Hour converts "9:00", "9:00 AM", "10:30 pm" or a bare hour to "HH:MM".
// The second return is false when the input is not a recognizable time.
func to24Hour(t string) (string, bool) {
	t = strings.TrimSpace(t)
	if m := ampmRe.FindStringSubmatch(t); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := m[2]
		if min == "" {
			min = "00"
		}
		period := strings.ToUpper(strings.ReplaceAll(m[3], ".", ""))
		if strings.HasPrefix(period, "P") && h != 12 {
			h += 12
		}
		if strings.HasPrefix(period, "A") && h == 12 {
			h = 0
		}
		if h > 23 {
			return "", false
		}
		return fmt.Sprintf("%02d:%s", h, min), true
	}
	if m := plain24Re.FindStringSubmatch(t); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h > 23 {
			return "", false
		}
		return fmt.Sprintf("%02d:%s", h, m[2]), true
	}
	if m := bareHourRe.FindStringSubmatch(t); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h > 23 {
			return "", false
		}
		return fmt.Sprintf("%02d:00", h), true
	}
	return "", false
}
