package app

import "strings"

// cuisineTaxonomy maps keywords found in free-text categories or the venue
// name onto a small set of canonical labels. Originals are kept alongside.
// Ordered so the derived labels come out deterministically.
var cuisineTaxonomy = []struct {
	label    string
	keywords []string
}{
	{"Узбекская кухня", []string{"uzbek", "plov", "samsa", "lagman", "shurpa", "chaikhana", "плов", "самса", "лагман", "чайхана"}},
	{"Европейская кухня", []string{"european", "italian", "french", "mediterranean", "continental"}},
	{"Азиатская кухня", []string{"asian", "chinese", "japanese", "korean", "thai", "vietnamese", "wok", "sushi", "суши"}},
	{"Грузинская кухня", []string{"georgian", "хачапури", "хинкали", "грузинск"}},
	{"Кафе", []string{"cafe", "coffee", "кафе", "кофе"}},
	{"Ресторан", []string{"restaurant", "ресторан", "dining"}},
	{"Фастфуд", []string{"fast food", "burger", "pizza", "фастфуд", "бургер", "пицц"}},
	{"Бар", []string{"bar", "pub", "бар", "паб"}},
}

// NormalizeCuisine keeps the original category labels (sane ones) and adds
// standardized labels matched by keyword against categories plus the name.
// The result is capped at 10 entries.
func NormalizeCuisine(categories []string, name string) []string {
	out := make([]string, 0, len(categories)+4)
	seen := make(map[string]struct{}, len(categories)+4)

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, c := range categories {
		if len(c) < 50 {
			add(c)
		}
	}

	allText := strings.ToLower(strings.Join(append(append([]string{}, categories...), name), " "))
	for _, entry := range cuisineTaxonomy {
		for _, kw := range entry.keywords {
			if strings.Contains(allText, kw) {
				add(entry.label)
				break
			}
		}
	}

	if len(out) > 10 {
		out = out[:10]
	}
	return out
}
