package ledger

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SafeFolderName makes a batch or chapter identifier safe as a directory
// name on every platform.
func SafeFolderName(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(name, "._")
}

// BatchFolder names the output folder of a manifest batch.
func BatchFolder(prefix, chapter string, start, end int) string {
	parts := make([]string, 0, 3)
	if p := SafeFolderName(prefix); p != "" {
		parts = append(parts, p)
	}
	if c := SafeFolderName(chapter); c != "" {
		parts = append(parts, c)
	}
	if start > 0 {
		parts = append(parts, fmt.Sprintf("p%d_p%d", start, end))
	}
	if len(parts) == 0 {
		return "batch"
	}
	return strings.Join(parts, "_")
}
