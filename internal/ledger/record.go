// Package ledger owns the persisted state of an extraction run: the
// question ledger CSV, the input manifest and the global ID counter.
package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// QCStatus is the review state of a question.
type QCStatus string

const (
	QCPass         QCStatus = "Pass"
	QCFail         QCStatus = "Fail"
	QCPending      QCStatus = "Pending"
	QCReviewNeeded QCStatus = "ReviewNeeded"
)

// ParseQCStatus validates a status name. Empty means Pending.
func ParseQCStatus(s string) (QCStatus, error) {
	switch st := QCStatus(strings.TrimSpace(s)); st {
	case QCPass, QCFail, QCPending, QCReviewNeeded:
		return st, nil
	case "":
		return QCPending, nil
	default:
		return "", fmt.Errorf("unknown QC status %q", s)
	}
}

// Ledger column names, in output order.
const (
	ColUniqueID      = "unique_id"
	ColQuestionNo    = "Question No."
	ColFolder        = "Folder"
	ColSubject       = "Subject"
	ColChapter       = "Chapter"
	ColTopic         = "Topic"
	ColTopicL2       = "Topic_L2"
	ColExam          = "Exam"
	ColPYQ           = "PYQ"
	ColDifficulty    = "Difficulty"
	ColQuestionType  = "Question type"
	ColCorrectAnswer = "Correct Answer"
	ColAnswerRaw     = "Answer key raw"
	ColText          = "pdf_Text"
	ColTextAvailable = "PDF_Text_Available"
	ColTextSource    = "Text_Source"
	ColImage         = "image_url"
	ColSolution      = "solution_url"
	ColWidth         = "q_width"
	ColHeight        = "q_height"
	ColQCStatus      = "QC_Status"
	ColQCReason      = "QC_Reason"
	ColSourceFile    = "Source File"
)

// Columns is the header of a new ledger.
var Columns = []string{
	ColUniqueID, ColQuestionNo, ColFolder, ColSubject, ColChapter, ColTopic,
	ColTopicL2, ColExam, ColPYQ, ColDifficulty, ColQuestionType, ColCorrectAnswer,
	ColAnswerRaw, ColText, ColTextAvailable, ColTextSource, ColImage, ColSolution,
	ColWidth, ColHeight, ColQCStatus, ColQCReason, ColSourceFile,
}

// QuestionRecord is one ledger row.
type QuestionRecord struct {
	UniqueID       int      `json:"unique_id"`
	QuestionNumber int      `json:"question_number"`
	Folder         string   `json:"folder"`
	Subject        string   `json:"subject"`
	Chapter        string   `json:"chapter"`
	Topic          string   `json:"topic"`
	TopicL2        string   `json:"topic_l2,omitempty"`
	Exam           string   `json:"exam,omitempty"`
	PYQ            string   `json:"pyq,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	QuestionType   string   `json:"question_type"`
	CorrectAnswer  string   `json:"correct_answer"`
	AnswerRaw      string   `json:"answer_raw,omitempty"`
	Text           string   `json:"text"`
	TextAvailable  bool     `json:"text_available"`
	TextSource     string   `json:"text_source,omitempty"`
	ImageFile      string   `json:"image_file,omitempty"`
	SolutionFile   string   `json:"solution_file,omitempty"`
	ImageWidth     int      `json:"image_width"`
	ImageHeight    int      `json:"image_height"`
	QCStatus       QCStatus `json:"qc_status"`
	QCReason       string   `json:"qc_reason,omitempty"`
	SourceFile     string   `json:"source_file,omitempty"`
}

// NewQuestionRecord validates r and fills defaults.
func NewQuestionRecord(r QuestionRecord) (QuestionRecord, error) {
	if r.UniqueID <= 0 {
		return r, fmt.Errorf("unique id must be positive, got %d", r.UniqueID)
	}
	if r.QuestionNumber <= 0 {
		return r, fmt.Errorf("question number must be positive, got %d", r.QuestionNumber)
	}
	if strings.TrimSpace(r.Folder) == "" {
		return r, fmt.Errorf("question %d has no folder", r.QuestionNumber)
	}
	status, err := ParseQCStatus(string(r.QCStatus))
	if err != nil {
		return r, err
	}
	r.QCStatus = status
	if want := fmt.Sprintf("Q_%d.png", r.QuestionNumber); r.ImageFile != "" && r.ImageFile != want {
		return r, fmt.Errorf("image file %q does not match question %d", r.ImageFile, r.QuestionNumber)
	}
	if want := fmt.Sprintf("Sol_%d.png", r.QuestionNumber); r.SolutionFile != "" && r.SolutionFile != want {
		return r, fmt.Errorf("solution file %q does not match question %d", r.SolutionFile, r.QuestionNumber)
	}
	if r.ImageWidth < 0 || r.ImageHeight < 0 {
		return r, fmt.Errorf("negative image size %dx%d", r.ImageWidth, r.ImageHeight)
	}
	if r.ImageFile == "" {
		r.ImageWidth, r.ImageHeight = 0, 0
	}
	return r, nil
}

// Values returns the record keyed by column name.
func (r QuestionRecord) Values() map[string]string {
	available := "No"
	if r.TextAvailable {
		available = "Yes"
	}
	width, height := "", ""
	if r.ImageFile != "" {
		width, height = strconv.Itoa(r.ImageWidth), strconv.Itoa(r.ImageHeight)
	}
	return map[string]string{
		ColUniqueID:      strconv.Itoa(r.UniqueID),
		ColQuestionNo:    strconv.Itoa(r.QuestionNumber),
		ColFolder:        r.Folder,
		ColSubject:       r.Subject,
		ColChapter:       r.Chapter,
		ColTopic:         r.Topic,
		ColTopicL2:       r.TopicL2,
		ColExam:          r.Exam,
		ColPYQ:           r.PYQ,
		ColDifficulty:    r.Difficulty,
		ColQuestionType:  r.QuestionType,
		ColCorrectAnswer: r.CorrectAnswer,
		ColAnswerRaw:     r.AnswerRaw,
		ColText:          r.Text,
		ColTextAvailable: available,
		ColTextSource:    r.TextSource,
		ColImage:         r.ImageFile,
		ColSolution:      r.SolutionFile,
		ColWidth:         width,
		ColHeight:        height,
		ColQCStatus:      string(r.QCStatus),
		ColQCReason:      r.QCReason,
		ColSourceFile:    r.SourceFile,
	}
}
