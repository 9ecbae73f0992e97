package anchor

import (
	"sort"
)

// SequenceConfig tunes sequence cleaning and section splitting.
type SequenceConfig struct {
	// StartCeiling is the largest plausible first question number.
	StartCeiling int `json:"start_ceiling"`
	// MaxStep bounds the gap between consecutive accepted numbers.
	MaxStep int `json:"max_step"`
	// ResetFloor is how far a sequence must have run before a return to 1
	// counts as a new section.
	ResetFloor int `json:"reset_floor"`
	// HeaderMinProgress ignores headings in the first part of the document.
	HeaderMinProgress float64 `json:"header_min_progress"`
}

// DefaultSequenceConfig returns the standard sequence constants.
func DefaultSequenceConfig() SequenceConfig {
	return SequenceConfig{
		StartCeiling:      100,
		MaxStep:           20,
		ResetFloor:        20,
		HeaderMinProgress: 0.2,
	}
}

// Split reasons.
const (
	SplitNone   = "none"
	SplitHeader = "header"
	SplitReset  = "reset"
)

// Sections is a cleaned anchor stream divided at the solutions boundary.
type Sections struct {
	Questions   []Anchor    `json:"questions"`
	Solutions   []Anchor    `json:"solutions"`
	SplitReason string      `json:"split_reason"`
	Dropped     []Rejection `json:"dropped,omitempty"`
}

// Continues reports whether candidate is a plausible successor of last.
func Continues(last, candidate int, cfg SequenceConfig) bool {
	if last == 0 && candidate <= cfg.StartCeiling {
		return true
	}
	step := candidate - last
	if last > 0 && step > 0 && step < cfg.MaxStep {
		return true
	}
	return candidate == 1
}

// Split sorts raw anchors into reading order and divides them into the
// question and solution sections. The split is the first restart at 1 after
// a qualifying heading, or failing that the first sharp reset. Each section
// is then filtered with Clean.
func Split(raw []Anchor, markers []Marker, cfg SequenceConfig) Sections {
	sorted := make([]Anchor, len(raw))
	copy(sorted, raw)
	SortReadingOrder(sorted)

	var qualified []Marker
	for _, m := range markers {
		if m.Progress > cfg.HeaderMinProgress {
			qualified = append(qualified, m)
		}
	}

	split, reason := -1, SplitNone
	last := 0
	for i, a := range sorted {
		if a.QuestionNumber == 1 && last > 0 && headingBefore(qualified, a) {
			split, reason = i, SplitHeader
			break
		}
		last = advance(last, a.QuestionNumber, cfg)
	}
	if split < 0 {
		last = 0
		for i, a := range sorted {
			if last > cfg.ResetFloor && a.QuestionNumber == 1 {
				split, reason = i, SplitReset
				break
			}
			last = advance(last, a.QuestionNumber, cfg)
		}
	}

	var out Sections
	out.SplitReason = reason
	questions := sorted
	if split >= 0 {
		questions = sorted[:split]
		var dropped []Rejection
		out.Solutions, dropped = Clean(sorted[split:], cfg)
		out.Dropped = append(out.Dropped, dropped...)
	}
	var dropped []Rejection
	out.Questions, dropped = Clean(questions, cfg)
	out.Dropped = append(out.Dropped, dropped...)
	return out
}

// Clean filters one section: anchors must continue the highest number kept
// so far, the first occurrence of a number wins, and the result is sorted by
// question number.
// Input is expected in reading order.
func Clean(section []Anchor, cfg SequenceConfig) ([]Anchor, []Rejection) {
	var kept []Anchor
	var dropped []Rejection
	seen := make(map[int]bool)
	last := 0
	for _, a := range section {
		if !Continues(last, a.QuestionNumber, cfg) {
			dropped = append(dropped, rejectionOf(a, RuleSequence))
			continue
		}
		if seen[a.QuestionNumber] {
			dropped = append(dropped, rejectionOf(a, RuleDuplicate))
			continue
		}
		seen[a.QuestionNumber] = true
		last = max(last, a.QuestionNumber)
		kept = append(kept, a)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].QuestionNumber < kept[j].QuestionNumber
	})
	return kept, dropped
}

// advance returns the highest number accepted so far. A restart at 1 never
// lowers it.
func advance(last, candidate int, cfg SequenceConfig) int {
	if Continues(last, candidate, cfg) {
		return max(last, candidate)
	}
	return last
}

func headingBefore(markers []Marker, a Anchor) bool {
	for _, m := range markers {
		if !a.Before(m.at()) {
			return true
		}
	}
	return false
}
