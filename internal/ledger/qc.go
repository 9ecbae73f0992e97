package ledger

import (
	"fmt"
	"strings"
)

// Geometry limits for rendered question images, in pixels at 300 DPI.
const (
	MinHeightNumerical = 50
	MinHeightMCQ       = 100
	MinHeightDefault   = 75
	MaxHeight          = 3000
	MinAspect          = 0.25
	MaxAspect          = 20.0
)

// EvaluateGeometry checks an image's size against the limits for its
// question type. It returns the failure reasons, or nil when the image looks
// like a complete question.
func EvaluateGeometry(questionType string, width, height int) []string {
	if width <= 0 || height <= 0 {
		return []string{"Missing image"}
	}
	qt := strings.ToLower(questionType)
	limit, label := MinHeightDefault, "General"
	switch {
	case strings.Contains(qt, "numerical"):
		limit, label = MinHeightNumerical, "Numerical"
	case strings.Contains(qt, "single"), strings.Contains(qt, "multiple"), strings.Contains(qt, "options correct"):
		limit, label = MinHeightMCQ, "MCQ"
	}

	var reasons []string
	if height < limit {
		reasons = append(reasons, fmt.Sprintf("Too Short for %s (%dpx < %dpx)", label, height, limit))
	}
	if height > MaxHeight {
		reasons = append(reasons, fmt.Sprintf("Too Tall (%dpx)", height))
	}
	aspect := float64(width) / float64(height)
	if aspect < MinAspect {
		reasons = append(reasons, fmt.Sprintf("Too Thin (Ratio %.2f)", aspect))
	} else if aspect > MaxAspect {
		reasons = append(reasons, fmt.Sprintf("Too Wide (Ratio %.2f)", aspect))
	}
	return reasons
}

// ApplyQC sets the record's QC status from its geometry: ReviewNeeded with
// reasons on failure, def otherwise. Records without an image are left to
// text-only review.
func ApplyQC(r *QuestionRecord, def QCStatus) {
	if r.ImageFile == "" {
		r.QCStatus = QCReviewNeeded
		r.QCReason = "No image"
		return
	}
	if reasons := EvaluateGeometry(r.QuestionType, r.ImageWidth, r.ImageHeight); len(reasons) > 0 {
		r.QCStatus = QCReviewNeeded
		r.QCReason = strings.Join(reasons, "; ")
		return
	}
	r.QCStatus = def
	r.QCReason = ""
}
