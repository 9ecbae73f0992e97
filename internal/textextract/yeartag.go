package textextract

import (
	"regexp"
	"strings"
)

// Mixed is the PYQ tag of a question with no recognisable exam year.
const Mixed = "Mixed"

var (
	examYearRe = regexp.MustCompile(`\[JEE \(Main\)-(\d{4})\]`)
	yearRe     = regexp.MustCompile(`^\(?(20[0-4]\d)\)?[.,:\]]*$`)
)

// YearTag returns the exam year printed with a previous-year question:
// a "[JEE (Main)-YYYY]" tag anywhere, or else a 20xx year among the first
// fifty words.
func YearTag(text string) string {
	if m := examYearRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	words := strings.Fields(text)
	if len(words) > 50 {
		words = words[:50]
	}
	for _, w := range words {
		if m := yearRe.FindStringSubmatch(w); m != nil {
			return m[1]
		}
	}
	return Mixed
}
