package answerkey

import (
	"regexp"
	"sort"
	"strings"
)

// Question type labels written to the ledger.
const (
	TypeSingle     = "Single Correct"
	TypeMultiple   = "One or more options correct"
	TypeNumerical  = "Numerical type"
	TypeMatrix     = "Matrix Match"
	TypeSubjective = "Subjective"
)

var (
	matrixRe  = regexp.MustCompile(`^[A-Za-z]\s*[-:–→]\s*[A-Za-z0-9]`)
	numericRe = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?$`)
	optionSep = strings.NewReplacer(",", "", " ", "", "&", "", "(", "", ")", "", "and", "", "AND", "")
)

// Classify normalises a raw answer token and labels its question type.
// It depends on nothing but raw. An empty token yields empty strings.
func Classify(raw string) (answer, questionType string) {
	token := strings.Join(strings.Fields(raw), " ")
	if token == "" {
		return "", ""
	}
	if matrixRe.MatchString(token) {
		return token, TypeMatrix
	}
	if options := optionLetters(token); len(options) == 1 {
		return options[0], TypeSingle
	} else if len(options) > 1 {
		return strings.Join(options, ", "), TypeMultiple
	}
	if numericRe.MatchString(token) {
		return token, TypeNumerical
	}
	return token, TypeSubjective
}

// optionLetters returns the sorted distinct option letters of a token made
// only of A-D letters and separators, or nil.
func optionLetters(token string) []string {
	stripped := strings.ToUpper(optionSep.Replace(token))
	if stripped == "" {
		return nil
	}
	seen := make(map[rune]bool)
	for _, r := range stripped {
		if r < 'A' || r > 'D' {
			return nil
		}
		seen[r] = true
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// OptionCode maps a bare option number 1-4 to its letter. Other tokens are
// returned unchanged.
func OptionCode(token string) string {
	t := strings.TrimSpace(token)
	if len(t) == 1 && t[0] >= '1' && t[0] <= '4' {
		return string(rune('A' + t[0] - '1'))
	}
	return token
}
