package server

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// makeSlug builds a URL-friendly jam slug from the jam name and date,
// e.g. "Friday Blues Night" + "2026-08-28" -> "friday-blues-night-2026-08-28".
func makeSlug(name, jamDate string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "jam"
	}
	if jamDate != "" {
		slug += "-" + jamDate
	}
	return slug
}

// uniqueSlug appends a numeric suffix until the slug is not in taken.
func uniqueSlug(slug string, taken []string) string {
	if !slices.Contains(taken, slug) {
		return slug
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", slug, i)
		if !slices.Contains(taken, candidate) {
			return candidate
		}
	}
}
